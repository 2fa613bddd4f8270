package amap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reply-gateway/internal/domain"
)

const (
	DefaultBaseURL = "https://restapi.amap.com"

	aroundPath     = "/v3/place/around"
	pageSize       = 20
	defaultRadius  = 1000
	statusOK       = "1"
	requestTimeout = 10 * time.Second
)

// KeySource supplies the web service key. *paramstore.Secret satisfies it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

// AroundQuery selects points of interest within Radius meters of Location.
type AroundQuery struct {
	Location domain.Location
	Radius   int
	Types    string
	Keyword  string
}

// POI is one place returned by the around search. AMap encodes missing
// string fields as empty arrays, which Text absorbs.
type POI struct {
	ID       Text   `json:"id"`
	Name     Text   `json:"name"`
	Type     Text   `json:"type"`
	Address  Text   `json:"address"`
	Tel      Text   `json:"tel"`
	Location Text   `json:"location"`
	Distance Text   `json:"distance"`
	BizExt   BizExt `json:"biz_ext"`
}

type BizExt struct {
	Rating Text `json:"rating"`
}

type aroundResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
	Count    Text   `json:"count"`
	POIs     []POI  `json:"pois"`
}

// Text is a string field that tolerates the array and number encodings
// AMap uses for empty or numeric values.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case data[0] == '[':
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			*t = ""
			return nil
		}
		*t = Text(strings.Join(parts, ";"))
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string {
	return strings.TrimSpace(string(t))
}

// HTTPStatusError captures non-2xx responses. The URL never includes the key.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("amap: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// APIError is a well-formed response whose status is not success.
type APIError struct {
	Info     string
	InfoCode string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amap: api error: %s (infocode %s)", e.Info, e.InfoCode)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	key        KeySource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(key KeySource, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, errors.New("amap: key source must not be nil")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		key:        key,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func aroundURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + aroundPath
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Around returns the first page of places around q.Location.
func (c *Client) Around(ctx context.Context, q AroundQuery) ([]POI, error) {
	apiKey, err := c.key.Value(ctx)
	if err != nil {
		return nil, fmt.Errorf("amap: resolve key: %w", err)
	}
	radius := q.Radius
	if radius <= 0 {
		radius = defaultRadius
	}

	params := url.Values{}
	params.Set("key", apiKey)
	params.Set("location", formatCoord(q.Location.Longitude)+","+formatCoord(q.Location.Latitude))
	params.Set("radius", strconv.Itoa(radius))
	params.Set("types", q.Types)
	params.Set("extensions", "all")
	params.Set("offset", strconv.Itoa(pageSize))
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		params.Set("keywords", kw)
	}

	endpoint := aroundURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("amap: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		// The transport error embeds the full URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("amap: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	var payload aroundResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("amap: decode response: %w", err)
	}
	if payload.Status != statusOK {
		return nil, &APIError{Info: payload.Info, InfoCode: payload.InfoCode}
	}
	return payload.POIs, nil
}
