package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that a getter holds no value for a name.
var ErrNotFound = errors.New("paramstore: parameter not found")

// Static serves parameters from an in-memory map. Empty values count as
// missing.
type Static map[string]string

func (s Static) GetParameter(_ context.Context, name string) (string, error) {
	v := strings.TrimSpace(s[strings.TrimSpace(name)])
	if v == "" {
		return "", fmt.Errorf("paramstore: %q: %w", name, ErrNotFound)
	}
	return v, nil
}

// Chain asks each getter in order and returns the first value found.
type Chain []Getter

func (c Chain) GetParameter(ctx context.Context, name string) (string, error) {
	if len(c) == 0 {
		return "", errors.New("paramstore: empty chain")
	}
	var errs []error
	for _, g := range c {
		if g == nil {
			continue
		}
		v, err := g.GetParameter(ctx, name)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("paramstore: resolve %q: %w", name, errors.Join(errs...))
}
