package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/integrations/amap"
	"reply-gateway/internal/logging"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultRadius   = 1000
	defaultCategory = "050000"
	sourceAmap      = "amap"
)

type Source interface {
	Around(ctx context.Context, q amap.AroundQuery) ([]amap.POI, error)
}

type Store interface {
	EnsureTable(ctx context.Context) error
	UpsertVenue(ctx context.Context, v domain.Venue) (bool, error)
}

// Pipeline fetches places around a point and upserts them into the
// directory.
type Pipeline struct {
	source  Source
	store   Store
	timeout time.Duration
}

func NewPipeline(source Source, store Store, timeout time.Duration) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("ingest: source must not be nil")
	}
	if store == nil {
		return nil, errors.New("ingest: store must not be nil")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pipeline{source: source, store: store, timeout: timeout}, nil
}

// Ingest returns the number of places fetched and the number newly saved.
// Individual records that fail validation or storage are skipped.
func (p *Pipeline) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	if !domain.CoordinatesInRange(req.Location.Latitude, req.Location.Longitude) {
		return domain.IngestResult{}, fmt.Errorf("ingest: invalid origin %v,%v", req.Location.Latitude, req.Location.Longitude)
	}
	if req.Radius <= 0 {
		req.Radius = defaultRadius
	}
	if strings.TrimSpace(req.Category) == "" {
		req.Category = defaultCategory
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	pois, err := p.source.Around(ctx, amap.AroundQuery{
		Location: req.Location,
		Radius:   req.Radius,
		Types:    req.Category,
		Keyword:  req.Keyword,
	})
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("ingest: fetch places: %w", err)
	}
	logger.Info("places fetched", "count", len(pois), "radius", req.Radius, "types", req.Category)

	if err := p.store.EnsureTable(ctx); err != nil {
		return domain.IngestResult{}, fmt.Errorf("ingest: ensure directory: %w", err)
	}

	res := domain.IngestResult{Total: len(pois)}
	now := nowFunc().UnixMilli()
	seen := make(map[string]struct{}, len(pois))
	for _, poi := range pois {
		v, ok := toVenue(poi, now)
		if !ok {
			logger.Warn("skipping invalid place", "name", poi.Name.String(), "location", poi.Location.String())
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}

		created, err := p.store.UpsertVenue(ctx, v)
		if err != nil {
			logger.Error("save venue failed", "err", err, "id", v.ID, slog.String("name", v.Name))
			continue
		}
		if created {
			res.Saved++
		}
	}
	return res, nil
}

// toVenue validates and cleans one place. Records without a name, id or
// parseable in-range coordinates are rejected.
func toVenue(poi amap.POI, updatedAt int64) (domain.Venue, bool) {
	name := poi.Name.String()
	id := poi.ID.String()
	if name == "" || id == "" {
		return domain.Venue{}, false
	}
	loc, ok := parseLocation(poi.Location.String())
	if !ok {
		return domain.Venue{}, false
	}

	rating, err := strconv.ParseFloat(poi.BizExt.Rating.String(), 64)
	if err != nil || rating < 0 {
		rating = 0
	}
	distance, err := strconv.Atoi(poi.Distance.String())
	if err != nil || distance < 0 {
		distance = 0
	}

	return domain.Venue{
		ID:        id,
		Name:      name,
		Address:   poi.Address.String(),
		Category:  poi.Type.String(),
		Phone:     poi.Tel.String(),
		Rating:    rating,
		Distance:  distance,
		Location:  &loc,
		Source:    sourceAmap,
		UpdatedAt: updatedAt,
	}, true
}

// parseLocation reads AMap's "lng,lat" form.
func parseLocation(raw string) (domain.Location, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return domain.Location{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Location{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Location{}, false
	}
	if !domain.CoordinatesInRange(lat, lng) {
		return domain.Location{}, false
	}
	return domain.Location{Latitude: lat, Longitude: lng}, true
}

var nowFunc = time.Now
