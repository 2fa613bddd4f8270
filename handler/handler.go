package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/logging"
	"reply-gateway/internal/uniqueid"
	"reply-gateway/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 64 << 10
)

type ReplyUseCase interface {
	Reply(ctx context.Context, in usecase.ReplyInput) usecase.ReplyOutput
}

type Handler struct {
	uc ReplyUseCase
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func NewHandler(uc ReplyUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: reply use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle serves API Gateway proxy events. It always answers 200 with a
// non-empty reply; malformed bodies are answered like empty messages.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uniqueid.RequestID()
	}
	logger := logging.FromContext(ctx).With("correlation_id", correlationID)
	ctx = logging.WithContext(ctx, logger)

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			logger.Warn("undecodable request body", "err", err)
			decoded = nil
		}
		body = decoded
	}

	out := h.reply(ctx, body)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: encodeReply(out.Reply),
	}, nil
}

// ServeHTTP is the net/http adapter used by the local server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(r.Header.Get(correlationHeader))
	if correlationID == "" {
		correlationID = uniqueid.RequestID()
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx).With("correlation_id", correlationID)
	ctx = logging.WithContext(ctx, logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("unreadable request body", "err", err)
		body = nil
	}

	out := h.reply(ctx, body)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, correlationID)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, encodeReply(out.Reply))
}

func (h *Handler) reply(ctx context.Context, body []byte) usecase.ReplyOutput {
	in := parseRequest(ctx, body)
	out := h.uc.Reply(ctx, in)
	logging.FromContext(ctx).Info("reply sent", "source", out.Source, "caller_id", in.CallerID)
	return out
}

func encodeReply(reply string) string {
	// Marshal of a single string field cannot fail.
	b, _ := json.Marshal(replyResponse{Reply: reply})
	return string(b)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseRequest decodes the request field by field so one malformed field
// does not discard the others. Unknown or mistyped fields are ignored.
func parseRequest(ctx context.Context, body []byte) usecase.ReplyInput {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		logging.FromContext(ctx).Warn("request body is not a JSON object", "err", err)
		return usecase.ReplyInput{}
	}

	in := usecase.ReplyInput{
		Message:  stringField(fields, "message"),
		CallerID: stringField(fields, "callerId", "userId"),
		History:  parseHistory(fields["history"]),
	}
	if loc, ok := parseLocation(fields, "location", "userLocation"); ok {
		in.Location = &loc
	}
	return in
}

func stringField(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func parseHistory(raw json.RawMessage) []domain.RawTurn {
	var entries []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	turns := make([]domain.RawTurn, 0, len(entries))
	for _, e := range entries {
		var fields map[string]json.RawMessage
		if json.Unmarshal(e, &fields) != nil {
			// Keeps the slot so the window is applied to the raw sequence.
			turns = append(turns, domain.RawTurn{})
			continue
		}
		turns = append(turns, domain.RawTurn{
			Role:    stringField(fields, "role"),
			Content: stringField(fields, "content"),
			Text:    stringField(fields, "text"),
		})
	}
	return turns
}

type coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func parseLocation(fields map[string]json.RawMessage, keys ...string) (domain.Location, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var c coordinates
		if json.Unmarshal(raw, &c) != nil || c.Latitude == nil || c.Longitude == nil {
			continue
		}
		if !domain.CoordinatesInRange(*c.Latitude, *c.Longitude) {
			continue
		}
		return domain.Location{Latitude: *c.Latitude, Longitude: *c.Longitude}, true
	}
	return domain.Location{}, false
}
