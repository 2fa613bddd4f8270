package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/threading"

	"reply-gateway/internal/domain"
)

const defaultAuditTimeout = 5 * time.Second

type AuditStore interface {
	RecordAttempt(ctx context.Context, rec domain.AuditRecord) error
	SaveExchange(ctx context.Context, ex domain.Exchange) error
}

// AuditRecorder writes audit records in the background. Writes never block
// the caller and their failures are only logged.
type AuditRecorder struct {
	store   AuditStore
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewAuditRecorder returns a recorder; a nil store disables auditing.
func NewAuditRecorder(store AuditStore, timeout time.Duration, logger *slog.Logger) *AuditRecorder {
	if timeout <= 0 {
		timeout = defaultAuditTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRecorder{store: store, timeout: timeout, logger: logger}
}

func (r *AuditRecorder) Success(callerID, query, reply string, cached bool) {
	now := nowFunc()
	r.dispatch(func(ctx context.Context) {
		rec := domain.AuditRecord{
			CallerID:  callerID,
			Success:   true,
			Cached:    cached,
			Query:     query,
			Result:    reply,
			Timestamp: now,
		}
		if err := r.store.RecordAttempt(ctx, rec); err != nil {
			r.logger.Error("audit attempt write failed",
				"err", newError(ErrorAudit, "record_attempt", err), "caller_id", callerID)
		}
		ex := domain.Exchange{
			CallerID:    callerID,
			UserMessage: query,
			Reply:       reply,
			Timestamp:   now,
		}
		if err := r.store.SaveExchange(ctx, ex); err != nil {
			r.logger.Error("audit exchange write failed",
				"err", newError(ErrorAudit, "save_exchange", err), "caller_id", callerID)
		}
	})
}

func (r *AuditRecorder) Failure(callerID, query string, cause error) {
	now := nowFunc()
	result := "unknown error"
	if cause != nil {
		result = cause.Error()
	}
	r.dispatch(func(ctx context.Context) {
		rec := domain.AuditRecord{
			CallerID:  callerID,
			Success:   false,
			Query:     query,
			Result:    result,
			Timestamp: now,
		}
		if err := r.store.RecordAttempt(ctx, rec); err != nil {
			r.logger.Error("audit failure write failed",
				"err", newError(ErrorAudit, "record_attempt", err), "caller_id", callerID)
		}
	})
}

// Wait blocks until every dispatched write has finished.
func (r *AuditRecorder) Wait() {
	r.wg.Wait()
}

func (r *AuditRecorder) dispatch(write func(ctx context.Context)) {
	if r == nil || r.store == nil {
		return
	}
	r.wg.Add(1)
	threading.GoSafe(func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		write(ctx)
	})
}

var nowFunc = func() time.Time {
	return time.Now().UTC()
}
