package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// tokenPayload is the JSON shape a secret may be stored in.
type tokenPayload struct {
	Token string `json:"token"`
}

// Secret resolves a named credential on first use and reuses it for the
// lifetime of the process. Failed lookups are not cached.
type Secret struct {
	getter Getter
	name   string

	mu     sync.Mutex
	value  string
	loaded bool
}

func NewSecret(g Getter, name string) (*Secret, error) {
	if g == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("paramstore: secret name is empty")
	}
	return &Secret{getter: g, name: name}, nil
}

func (s *Secret) Name() string {
	return s.name
}

func (s *Secret) Value(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.value, nil
	}

	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch secret: %w", err)
	}
	value, err := parseSecret(raw)
	if err != nil {
		return "", err
	}
	s.value = value
	s.loaded = true
	return value, nil
}

// parseSecret accepts either a JSON object {"token": "..."} or the bare
// secret string.
func parseSecret(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("paramstore: unmarshal secret value as JSON: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", errors.New("paramstore: secret value is empty")
	}
	return raw, nil
}
