package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"reply-gateway/internal/domain"
)

type stubLLM struct {
	reply string
	err   error
	// delay before answering; zero answers immediately. A call whose context
	// ends first returns the context error.
	delay time.Duration

	calls     atomic.Int32
	mu        sync.Mutex
	captured  []domain.ChatMessage
	model     string
	cancelled chan struct{}
}

func newStubLLM(reply string) *stubLLM {
	return &stubLLM{reply: reply, cancelled: make(chan struct{}, 16)}
}

func (s *stubLLM) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.captured = messages
	s.model = model
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			s.cancelled <- struct{}{}
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func (s *stubLLM) lastMessages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

type statusError struct{ code int }

func (e *statusError) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *statusError) HTTPStatusCode() int { return e.code }

type fakeAuditStore struct {
	mu          sync.Mutex
	attempts    []domain.AuditRecord
	exchanges   []domain.Exchange
	attemptErr  error
	exchangeErr error
}

func (f *fakeAuditStore) RecordAttempt(_ context.Context, rec domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, rec)
	return f.attemptErr
}

func (f *fakeAuditStore) SaveExchange(_ context.Context, ex domain.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, ex)
	return f.exchangeErr
}

func (f *fakeAuditStore) snapshot() ([]domain.AuditRecord, []domain.Exchange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AuditRecord(nil), f.attempts...), append([]domain.Exchange(nil), f.exchanges...)
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]string{}} }

func (m *mapCache) Lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapCache) Store(key, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = reply
}

type panickingEnricher struct{}

func (panickingEnricher) Enrich(context.Context, domain.Location) string {
	panic(errors.New("enricher exploded"))
}
