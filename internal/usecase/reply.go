package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/logging"
)

const (
	defaultHistoryLimit    = 6
	defaultKeyHistoryLimit = 2
	defaultEnrichTimeout   = 3 * time.Second
)

// Reply sources reported in ReplyOutput.Source.
const (
	SourceRejected = "rejected"
	SourceCache    = "cache"
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

// Enricher produces text appended to the user turn for a located request.
type Enricher interface {
	Enrich(ctx context.Context, loc domain.Location) string
}

type ReplyConfig struct {
	Model           string
	Budget          time.Duration
	HistoryLimit    int
	KeyHistoryLimit int
	EnrichTimeout   time.Duration
}

type ReplyInput struct {
	Message  string
	CallerID string
	History  []domain.RawTurn
	Location *domain.Location
}

type ReplyOutput struct {
	Reply  string
	Source string
}

// ReplyService turns a chat request into a reply. It never returns an error
// or an empty reply; failures degrade to a fallback sentence.
type ReplyService struct {
	invoker  *Invoker
	cache    ReplyCache
	enricher Enricher
	audit    *AuditRecorder
	flight   singleflight.Group

	historyLimit    int
	keyHistoryLimit int
	enrichTimeout   time.Duration
}

// NewReplyService wires the gateway. enricher may be nil to disable
// enrichment; audit may be nil to disable auditing.
func NewReplyService(llm LLMClient, enricher Enricher, rc ReplyCache, audit *AuditRecorder, cfg ReplyConfig) (*ReplyService, error) {
	if rc == nil {
		return nil, errors.New("usecase: reply cache must not be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	inv, err := NewInvoker(llm, rc, cfg.Model, cfg.Budget)
	if err != nil {
		return nil, err
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.KeyHistoryLimit <= 0 {
		cfg.KeyHistoryLimit = defaultKeyHistoryLimit
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = defaultEnrichTimeout
	}
	if audit == nil {
		audit = NewAuditRecorder(nil, 0, nil)
	}
	return &ReplyService{
		invoker:         inv,
		cache:           rc,
		enricher:        enricher,
		audit:           audit,
		historyLimit:    cfg.HistoryLimit,
		keyHistoryLimit: cfg.KeyHistoryLimit,
		enrichTimeout:   cfg.EnrichTimeout,
	}, nil
}

func (s *ReplyService) Reply(ctx context.Context, in ReplyInput) ReplyOutput {
	logger := logging.FromContext(ctx)

	if strings.TrimSpace(in.Message) == "" {
		logger.Warn("rejected request", "err", newError(ErrorInvalidInput, "empty_message", nil))
		return ReplyOutput{Reply: invalidRequestReply, Source: SourceRejected}
	}

	key := CacheKey(in.Message, in.History, s.keyHistoryLimit)
	if reply, ok := s.cache.Lookup(key); ok {
		logger.Info("reply served from cache", "caller_id", in.CallerID)
		s.audit.Success(in.CallerID, in.Message, reply, true)
		return ReplyOutput{Reply: reply, Source: SourceCache}
	}

	userTurn := in.Message + s.enrichment(ctx, in)
	messages := buildPromptMessages(normalizeHistory(in.History, s.historyLimit), userTurn)

	reply, err := s.invokeShared(ctx, key, messages)
	if err != nil {
		logger.Error("upstream call failed", "err", err, "caller_id", in.CallerID)
		s.audit.Failure(in.CallerID, in.Message, err)
		return ReplyOutput{Reply: fallbackReply(), Source: SourceFallback}
	}

	s.audit.Success(in.CallerID, in.Message, reply, false)
	return ReplyOutput{Reply: reply, Source: SourceUpstream}
}

// invokeShared collapses concurrent misses on the same key into one upstream
// call. The shared call is detached from any single caller's cancellation
// and bounded by the invoker budget; each caller still stops waiting when its
// own context ends.
func (s *ReplyService) invokeShared(ctx context.Context, key string, messages []domain.ChatMessage) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.invoker.Invoke(detached, key, messages)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		reply, _ := res.Val.(string)
		return reply, nil
	case <-ctx.Done():
		return "", newError(ErrorUpstreamTimeout, "caller_cancelled", ctx.Err())
	}
}

func (s *ReplyService) enrichment(ctx context.Context, in ReplyInput) (text string) {
	if s.enricher == nil || in.Location == nil || !isAskingNearby(in.Message) {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("enrichment panicked",
				"err", newError(ErrorEnrichment, "panic", fmt.Errorf("%v", r)))
			text = ""
		}
	}()

	enrichCtx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()
	return s.enricher.Enrich(enrichCtx, *in.Location)
}
