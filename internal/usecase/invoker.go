package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reply-gateway/internal/domain"
)

const defaultBudget = 6 * time.Second

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// ReplyCache is the fingerprint cache consumed by the gateway.
type ReplyCache interface {
	Lookup(key string) (string, bool)
	Store(key, reply string)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Invoker performs one upstream completion under a fixed latency budget.
type Invoker struct {
	llm    LLMClient
	cache  ReplyCache
	model  string
	budget time.Duration
}

func NewInvoker(llm LLMClient, cache ReplyCache, model string, budget time.Duration) (*Invoker, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if cache == nil {
		return nil, errors.New("usecase: reply cache must not be nil")
	}
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Invoker{llm: llm, cache: cache, model: model, budget: budget}, nil
}

type chatResult struct {
	reply string
	err   error
}

// Invoke races the upstream call against the budget. The call's context is
// cancelled as soon as Invoke returns, so a call that loses the race is torn
// down. A successful reply is stored under key before it is returned.
func (iv *Invoker) Invoke(ctx context.Context, key string, messages []domain.ChatMessage) (string, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan chatResult, 1)
	go func() {
		reply, err := iv.llm.Chat(callCtx, iv.model, messages)
		done <- chatResult{reply: reply, err: err}
	}()

	timer := time.NewTimer(iv.budget)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return "", classifyUpstreamError(res.err)
		}
		reply := strings.TrimSpace(res.reply)
		if reply == "" {
			return "", newError(ErrorUpstreamProtocol, "empty_completion", domain.ErrMalformedCompletion)
		}
		iv.cache.Store(key, reply)
		return reply, nil
	case <-timer.C:
		return "", newError(ErrorUpstreamTimeout, "budget_exceeded", fmt.Errorf("no reply within %s", iv.budget))
	case <-ctx.Done():
		return "", newError(ErrorUpstreamTimeout, "caller_cancelled", ctx.Err())
	}
}

func classifyUpstreamError(err error) *Error {
	switch {
	case errors.Is(err, domain.ErrMalformedCompletion):
		return newError(ErrorUpstreamProtocol, "malformed_completion", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorUpstreamTimeout, "transport_deadline", err)
	}
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, "upstream_rate_limited", err)
	}
	return newError(ErrorUpstream, "upstream_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
