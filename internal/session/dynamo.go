package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/urbanstyle/supportbot/pkg/logging"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore persists sessions in a DynamoDB table keyed by
// pk=user#<sender>, sk=session, with a ttl attribute for expiry.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func sessionKey(senderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: "user#" + senderID},
		"sk": &types.AttributeValueMemberS{Value: "session"},
	}
}

// Get fetches the session for a sender. Absence is (nil, nil), not an error.
func (s *DynamoStore) Get(ctx context.Context, senderID string) (*State, error) {
	if senderID == "" {
		return nil, errors.New("session: senderID required")
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       sessionKey(senderID),
	})
	if err != nil {
		s.logger.Error("session read failed", "error", err, "sender", logging.SenderHash(senderID))
		return nil, fmt.Errorf("session: get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	state := NewState(senderID)
	if err := attributevalue.UnmarshalMap(out.Item, &state); err != nil {
		return nil, fmt.Errorf("session: unmarshal item: %w", err)
	}
	state.SenderID = senderID
	if raw, ok := out.Item["updated_at"].(*types.AttributeValueMemberN); ok {
		if epoch, err := strconv.ParseInt(raw.Value, 10, 64); err == nil {
			state.UpdatedAt = time.Unix(epoch, 0).UTC()
		}
	}
	return &state, nil
}

// Put fully replaces the sender's record and attaches the TTL from now.
func (s *DynamoStore) Put(ctx context.Context, senderID string, state State) error {
	if senderID == "" {
		return errors.New("session: senderID required")
	}

	now := s.now()
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = now
	}

	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		return fmt.Errorf("session: marshal state: %w", err)
	}
	for k, v := range sessionKey(senderID) {
		item[k] = v
	}
	item["updated_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(state.UpdatedAt.Unix(), 10)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttl).Unix(), 10)}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		s.logger.Error("session write failed", "error", err, "sender", logging.SenderHash(senderID))
		return fmt.Errorf("session: put item: %w", err)
	}
	return nil
}
