package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"reply-gateway/internal/domain"
	"reply-gateway/internal/uniqueid"
)

const (
	skPrefixLog  = "LOG#"
	skPrefixChat = "CHAT#"
	anonCaller   = "anonymous"
)

type auditAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AuditStore keeps attempt and exchange records in one table, partitioned by
// caller.
type AuditStore struct {
	api       auditAPI
	tableName string
}

func NewAuditStore(api auditAPI, tableName string) (*AuditStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &AuditStore{api: api, tableName: tableName}, nil
}

// callerPK returns the partition key for a caller's audit items.
func callerPK(callerID string) string {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		callerID = anonCaller
	}
	return "CALLER#" + callerID
}

var newSortKey = uniqueid.SortKey

func (s *AuditStore) RecordAttempt(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        sAttr(callerPK(rec.CallerID)),
			"SK":        sAttr(skPrefixLog + newSortKey()),
			"callerId":  sAttr(rec.CallerID),
			"success":   bAttr(rec.Success),
			"cached":    bAttr(rec.Cached),
			"query":     sAttr(rec.Query),
			"result":    sAttr(rec.Result),
			"timestamp": nAttr(rec.Timestamp.UnixMilli()),
			"ttl":       nAttr(ttlValue(rec.Timestamp)),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordAttempt: %w", err)
	}
	return nil
}

func (s *AuditStore) SaveExchange(ctx context.Context, ex domain.Exchange) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          sAttr(callerPK(ex.CallerID)),
			"SK":          sAttr(skPrefixChat + newSortKey()),
			"callerId":    sAttr(ex.CallerID),
			"userMessage": sAttr(ex.UserMessage),
			"aiReply":     sAttr(ex.Reply),
			"timestamp":   nAttr(ex.Timestamp.UnixMilli()),
			"ttl":         nAttr(ttlValue(ex.Timestamp)),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}
