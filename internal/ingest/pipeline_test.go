package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/integrations/amap"
)

type fakeSource struct {
	pois  []amap.POI
	err   error
	query amap.AroundQuery
}

func (f *fakeSource) Around(_ context.Context, q amap.AroundQuery) ([]amap.POI, error) {
	f.query = q
	return f.pois, f.err
}

type fakeStore struct {
	ensureErr error
	ensured   int
	existing  map[string]bool
	failIDs   map[string]bool
	saved     []domain.Venue
}

func (f *fakeStore) EnsureTable(_ context.Context) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeStore) UpsertVenue(_ context.Context, v domain.Venue) (bool, error) {
	if f.failIDs[v.ID] {
		return false, errors.New("write failed")
	}
	f.saved = append(f.saved, v)
	return !f.existing[v.ID], nil
}

func poi(id, name, location, rating, distance string) amap.POI {
	return amap.POI{
		ID:       amap.Text(id),
		Name:     amap.Text(name),
		Type:     amap.Text(" 餐饮服务;中餐厅 "),
		Address:  amap.Text(" 东城区1号 "),
		Location: amap.Text(location),
		Distance: amap.Text(distance),
		BizExt:   amap.BizExt{Rating: amap.Text(rating)},
	}
}

var origin = domain.Location{Latitude: 39.9, Longitude: 116.4}

func newTestPipeline(t *testing.T, src Source, store Store) *Pipeline {
	t.Helper()
	p, err := NewPipeline(src, store, time.Second)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil, &fakeStore{}, 0)
	require.Error(t, err)
	_, err = NewPipeline(&fakeSource{}, nil, 0)
	require.Error(t, err)
}

func TestIngest_ValidatesCleansAndCounts(t *testing.T) {
	orig := nowFunc
	nowFunc = func() time.Time { return time.UnixMilli(1700000000000) }
	t.Cleanup(func() { nowFunc = orig })

	src := &fakeSource{pois: []amap.POI{
		poi("B1", " 烤鸭店 ", "116.41,39.91", "4.7", "356"),
		poi("B2", "面馆", "116.40,39.90", "", "abc"),
		poi("B1", "烤鸭店", "116.41,39.91", "4.7", "356"),
		poi("B3", "坐标错", "200,39.9", "4", "10"),
		poi("B4", "坐标缺", "", "4", "10"),
		poi("B5", "", "116.4,39.9", "4", "10"),
		poi("", "无编号", "116.4,39.9", "4", "10"),
		poi("B6", "旧店", "116.42,39.92", "3.9", "500"),
	}}
	store := &fakeStore{existing: map[string]bool{"B6": true}}

	res, err := newTestPipeline(t, src, store).Ingest(context.Background(), domain.IngestRequest{Location: origin})
	require.NoError(t, err)

	require.Equal(t, domain.IngestResult{Total: 8, Saved: 2}, res)
	require.Equal(t, 1, store.ensured)
	require.Equal(t, 1000, src.query.Radius)
	require.Equal(t, "050000", src.query.Types)

	require.Len(t, store.saved, 3)
	first := store.saved[0]
	require.Equal(t, "烤鸭店", first.Name)
	require.Equal(t, "东城区1号", first.Address)
	require.Equal(t, "餐饮服务;中餐厅", first.Category)
	require.InDelta(t, 4.7, first.Rating, 1e-9)
	require.Equal(t, 356, first.Distance)
	require.Equal(t, &domain.Location{Latitude: 39.91, Longitude: 116.41}, first.Location)
	require.Equal(t, "amap", first.Source)
	require.EqualValues(t, 1700000000000, first.UpdatedAt)

	second := store.saved[1]
	require.Zero(t, second.Rating)
	require.Zero(t, second.Distance)
}

func TestIngest_StoreErrorsSkipRecord(t *testing.T) {
	src := &fakeSource{pois: []amap.POI{
		poi("B1", "A", "116.41,39.91", "4", "1"),
		poi("B2", "B", "116.42,39.92", "4", "1"),
	}}
	store := &fakeStore{failIDs: map[string]bool{"B1": true}}

	res, err := newTestPipeline(t, src, store).Ingest(context.Background(), domain.IngestRequest{Location: origin})
	require.NoError(t, err)
	require.Equal(t, domain.IngestResult{Total: 2, Saved: 1}, res)
}

func TestIngest_Failures(t *testing.T) {
	_, err := newTestPipeline(t, &fakeSource{err: errors.New("amap down")}, &fakeStore{}).
		Ingest(context.Background(), domain.IngestRequest{Location: origin})
	require.ErrorContains(t, err, "fetch places")

	_, err = newTestPipeline(t, &fakeSource{}, &fakeStore{ensureErr: errors.New("denied")}).
		Ingest(context.Background(), domain.IngestRequest{Location: origin})
	require.ErrorContains(t, err, "ensure directory")

	_, err = newTestPipeline(t, &fakeSource{}, &fakeStore{}).
		Ingest(context.Background(), domain.IngestRequest{Location: domain.Location{Latitude: 100, Longitude: 0}})
	require.ErrorContains(t, err, "invalid origin")
}

func TestParseLocation(t *testing.T) {
	loc, ok := parseLocation("116.397128, 39.916527")
	require.True(t, ok)
	require.Equal(t, domain.Location{Latitude: 39.916527, Longitude: 116.397128}, loc)

	for _, raw := range []string{"", "116.4", "a,b", "116.4,39.9,1", "116.4,-91"} {
		_, ok := parseLocation(raw)
		require.False(t, ok, "raw=%q", raw)
	}
}
