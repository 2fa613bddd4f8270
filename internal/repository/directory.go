package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/logging"
)

const (
	venueKey           = "amapId"
	defaultTableWait   = 2 * time.Minute
	defaultPollMin     = time.Second
	defaultPollMax     = 5 * time.Second
	defaultVenueSource = "amap"
)

// directoryAPI is the minimal DynamoDB interface required by Directory.
// *dynamodb.Client satisfies it.
type directoryAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Directory is the venue table, keyed by AMap POI id.
type Directory struct {
	api       directoryAPI
	tableName string
	tableWait time.Duration
	pollMin   time.Duration
	pollMax   time.Duration
}

type DirectoryOption func(*Directory)

// WithTablePolling sets the delay bounds between DescribeTable polls while
// EnsureTable waits for a new table.
func WithTablePolling(minDelay, maxDelay time.Duration) DirectoryOption {
	return func(d *Directory) {
		if minDelay > 0 && maxDelay >= minDelay {
			d.pollMin = minDelay
			d.pollMax = maxDelay
		}
	}
}

func NewDirectory(api directoryAPI, tableName string, opts ...DirectoryOption) (*Directory, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	d := &Directory{
		api:       api,
		tableName: tableName,
		tableWait: defaultTableWait,
		pollMin:   defaultPollMin,
		pollMax:   defaultPollMax,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func isTableMissing(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}

// ListVenues reads up to limit venues with no geographic filter. A missing
// table is reported as domain.ErrCollectionNotFound. Items without an id or
// name are skipped.
func (d *Directory) ListVenues(ctx context.Context, limit int) ([]domain.Venue, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(d.tableName)}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := d.api.Scan(ctx, in)
	if err != nil {
		if isTableMissing(err) {
			return nil, fmt.Errorf("repository: ListVenues scan: %w: %w", domain.ErrCollectionNotFound, err)
		}
		return nil, fmt.Errorf("repository: ListVenues scan: %w", err)
	}

	venues := make([]domain.Venue, 0, len(out.Items))
	for _, item := range out.Items {
		v, err := itemToVenue(item)
		if err != nil {
			logging.FromContext(ctx).Warn("skipping malformed venue", "err", err, "table", d.tableName)
			continue
		}
		venues = append(venues, v)
	}
	return venues, nil
}

// EnsureTable creates the venue table when absent and waits until it is
// active or ctx ends.
func (d *Directory) EnsureTable(ctx context.Context) error {
	_, err := d.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(venueKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(venueKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("repository: EnsureTable create: %w", err)
		}
	}

	maxWait := d.tableWait
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < maxWait {
			maxWait = remaining
		}
	}
	// The SDK default of 20s between polls would outlast most callers.
	waiter := dynamodb.NewTableExistsWaiter(d.api, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = d.pollMin
		o.MaxDelay = d.pollMax
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)}, maxWait); err != nil {
		return fmt.Errorf("repository: EnsureTable wait: %w", err)
	}
	return nil
}

// UpsertVenue writes v keyed by its AMap id and reports whether the record
// is new.
func (d *Directory) UpsertVenue(ctx context.Context, v domain.Venue) (bool, error) {
	if strings.TrimSpace(v.ID) == "" {
		return false, errors.New("repository: UpsertVenue: venue id is required")
	}
	out, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(d.tableName),
		Item:         venueItem(v),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("repository: UpsertVenue: %w", err)
	}
	return out == nil || len(out.Attributes) == 0, nil
}

func venueItem(v domain.Venue) map[string]types.AttributeValue {
	source := v.Source
	if source == "" {
		source = defaultVenueSource
	}
	item := map[string]types.AttributeValue{
		venueKey:     sAttr(v.ID),
		"name":       sAttr(v.Name),
		"address":    sAttr(v.Address),
		"category":   sAttr(v.Category),
		"phone":      sAttr(v.Phone),
		"rating":     fAttr(v.Rating),
		"distance":   nAttr(int64(v.Distance)),
		"source":     sAttr(source),
		"updateTime": nAttr(v.UpdatedAt),
	}
	if v.Location != nil {
		item["latitude"] = fAttr(v.Location.Latitude)
		item["longitude"] = fAttr(v.Location.Longitude)
	}
	return item
}

func itemToVenue(item map[string]types.AttributeValue) (domain.Venue, error) {
	id, err := strAttr(item, venueKey)
	if err != nil {
		return domain.Venue{}, err
	}
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.Venue{}, err
	}
	// Optional fields tolerate absence.
	address, _ := strAttr(item, "address")
	category, _ := strAttr(item, "category")
	phone, _ := strAttr(item, "phone")
	source, _ := strAttr(item, "source")
	rating, _ := floatAttr(item, "rating")
	distance, _ := intAttr(item, "distance")
	updated, _ := intAttr(item, "updateTime")

	v := domain.Venue{
		ID:        id,
		Name:      name,
		Address:   address,
		Category:  category,
		Phone:     phone,
		Rating:    rating,
		Distance:  distance,
		Source:    source,
		UpdatedAt: int64(updated),
	}
	lat, latErr := floatAttr(item, "latitude")
	lng, lngErr := floatAttr(item, "longitude")
	if latErr == nil && lngErr == nil {
		v.Location = &domain.Location{Latitude: lat, Longitude: lng}
	}
	return v, nil
}
