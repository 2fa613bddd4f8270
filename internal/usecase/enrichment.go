package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/logging"
)

const (
	directoryFetchLimit = 10
	maxSuggestions      = 5

	ingestRadiusMeters = 1000
	ingestCategory     = "050000" // AMap catering category

	// An existing but empty directory is repopulated at most this often.
	repopulateInterval = 10 * time.Minute

	enrichmentHeader = "\n\n📍 附近商户推荐:\n"
	degradedNote     = "\n\n（系统提示：已获取用户位置，但暂时没有可用的附近商户数据。" +
		"请根据常识给出简短的通用建议，不要说没有用户的位置信息。）"
)

// Directory lists venues from the geospatial directory. It returns an error
// wrapping domain.ErrCollectionNotFound when the backing collection is absent.
type Directory interface {
	ListVenues(ctx context.Context, limit int) ([]domain.Venue, error)
}

// Ingester populates the directory around a point.
type Ingester interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error)
}

// VenueSummary is a venue prepared for the prompt, with its approximate
// distance from the user in degrees when the venue has coordinates.
type VenueSummary struct {
	Name           string
	Category       string
	Address        string
	ApproxDistance *float64
	Distance       int
	Rating         float64
}

type EnrichmentProvider struct {
	directory Directory
	ingester  Ingester

	populate     singleflight.Group
	mu           sync.Mutex
	lastEmptyRun time.Time
}

// NewEnrichmentProvider builds a provider. A nil ingester disables the
// populate-and-retry path.
func NewEnrichmentProvider(d Directory, ing Ingester) (*EnrichmentProvider, error) {
	if d == nil {
		return nil, errors.New("usecase: directory must not be nil")
	}
	return &EnrichmentProvider{directory: d, ingester: ing}, nil
}

// NearbyVenues returns at most five venues ordered by approximate distance
// from loc. Failures are logged and produce an empty list.
func (p *EnrichmentProvider) NearbyVenues(ctx context.Context, loc domain.Location) []VenueSummary {
	venues, err := p.fetch(ctx, loc)
	if err != nil {
		logging.FromContext(ctx).Warn("enrichment fetch failed",
			"err", newError(ErrorEnrichment, "directory_fetch_error", err))
		return []VenueSummary{}
	}
	return rankVenues(venues, loc)
}

func (p *EnrichmentProvider) fetch(ctx context.Context, loc domain.Location) ([]domain.Venue, error) {
	venues, err := p.directory.ListVenues(ctx, directoryFetchLimit)
	if err == nil && len(venues) > 0 {
		return venues, nil
	}
	if p.ingester == nil {
		return venues, err
	}
	switch {
	case err != nil && !errors.Is(err, domain.ErrCollectionNotFound):
		return nil, err
	case err == nil && !p.claimEmptyRun():
		return venues, nil
	}

	if err := p.populateDirectory(ctx, loc); err != nil {
		return nil, fmt.Errorf("populate directory: %w", err)
	}
	venues, err = p.directory.ListVenues(ctx, directoryFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("retry after populate: %w", err)
	}
	return venues, nil
}

// claimEmptyRun reports whether an empty directory may be repopulated now.
func (p *EnrichmentProvider) claimEmptyRun() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := nowFunc()
	if !p.lastEmptyRun.IsZero() && now.Sub(p.lastEmptyRun) < repopulateInterval {
		return false
	}
	p.lastEmptyRun = now
	return true
}

// populateDirectory runs one ingestion shared by all concurrent callers. The
// ingestion is detached from ctx and bounded by the ingester's own timeout,
// so it completes even when this request stops waiting for it.
func (p *EnrichmentProvider) populateDirectory(ctx context.Context, loc domain.Location) error {
	detached := context.WithoutCancel(ctx)
	ch := p.populate.DoChan("populate", func() (any, error) {
		return p.ingester.Ingest(detached, domain.IngestRequest{
			Location: loc,
			Radius:   ingestRadiusMeters,
			Category: ingestCategory,
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		if r, ok := res.Val.(domain.IngestResult); ok {
			logging.FromContext(ctx).Info("directory populated", "total", r.Total, "saved", r.Saved)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("directory still populating: %w", ctx.Err())
	}
}

// Enrich returns the text appended to the user turn: a venue list when any
// venues are known, otherwise the degraded note.
func (p *EnrichmentProvider) Enrich(ctx context.Context, loc domain.Location) string {
	venues := p.NearbyVenues(ctx, loc)
	if len(venues) == 0 {
		return degradedNote
	}
	return formatVenues(venues)
}

func rankVenues(venues []domain.Venue, loc domain.Location) []VenueSummary {
	out := make([]VenueSummary, 0, len(venues))
	for _, v := range venues {
		s := VenueSummary{
			Name:     strings.TrimSpace(v.Name),
			Category: strings.TrimSpace(v.Category),
			Address:  strings.TrimSpace(v.Address),
			Distance: v.Distance,
			Rating:   v.Rating,
		}
		if s.Rating < 0 {
			s.Rating = 0
		}
		if v.HasCoordinates() {
			d := math.Hypot(v.Location.Latitude-loc.Latitude, v.Location.Longitude-loc.Longitude)
			s.ApproxDistance = &d
		}
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b VenueSummary) int {
		switch {
		case a.ApproxDistance == nil && b.ApproxDistance == nil:
			return 0
		case a.ApproxDistance == nil:
			return 1
		case b.ApproxDistance == nil:
			return -1
		}
		return cmp.Compare(*a.ApproxDistance, *b.ApproxDistance)
	})

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func formatVenues(venues []VenueSummary) string {
	if len(venues) > maxSuggestions {
		venues = venues[:maxSuggestions]
	}

	var b strings.Builder
	b.WriteString(enrichmentHeader)
	for i, v := range venues {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(v.Name)
		if v.Category != "" {
			b.WriteString("(")
			b.WriteString(v.Category)
			b.WriteString(")")
		}
		b.WriteString("\n   📍 ")
		b.WriteString(v.Address)
		if v.Distance > 0 {
			b.WriteString(" - ")
			b.WriteString(strconv.Itoa(v.Distance))
			b.WriteString("米")
		}
		if v.Rating > 0 {
			b.WriteString(" - ⭐")
			b.WriteString(strconv.FormatFloat(v.Rating, 'f', -1, 64))
			b.WriteString("分")
		}
		b.WriteString("\n")
	}
	return b.String()
}
