package uniqueid

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/sonyflake/v2"
)

var (
	flakeOnce sync.Once
	flake     *sonyflake.Sonyflake
)

func generator() *sonyflake.Sonyflake {
	flakeOnce.Do(func() {
		var err error
		flake, err = sonyflake.New(sonyflake.Settings{})
		if err != nil {
			slog.Warn("sonyflake unavailable, falling back to random ids", "err", err)
			flake = nil
		}
	})
	return flake
}

// SortKey returns a time-ordered identifier that sorts lexically in
// generation order. Without a usable machine id it falls back to a random
// UUID, which keeps uniqueness but not ordering.
func SortKey() string {
	if f := generator(); f != nil {
		id, err := f.NextID()
		if err == nil {
			return fmt.Sprintf("%019d", int64(id))
		}
		slog.Warn("sonyflake NextID failed", "err", err)
	}
	return uuid.NewString()
}

// RequestID returns a random identifier for correlating one request.
func RequestID() string {
	return uuid.NewString()
}
