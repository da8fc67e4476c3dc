package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrSessionID = "SessionID"
	attrPayload   = "Payload"
	attrExpiresAt = "ExpiresAt"
)

// dynamoAPI is the minimal DynamoDB surface required by DynamoStore.
// Defined here for testability.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps one item per session with the serialized context and a
// native TTL attribute set to the context's fixed expiry, so DynamoDB
// reclaims dead sessions on its own.
type DynamoStore struct {
	api       dynamoAPI
	tableName string
}

type DynamoConfig struct {
	Table string `envconfig:"TABLE" split_words:"true" required:"true"`
}

func NewDynamoStore(api dynamoAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("state: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("state: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func (s *DynamoStore) Load(ctx context.Context, sessionID string) (*SessionContext, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrSessionID: &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("state: dynamo get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrContextNotFound
	}

	payload, ok := out.Item[attrPayload].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("state: dynamo item for session %s has no payload", sessionID)
	}

	var sc SessionContext
	if err := json.Unmarshal([]byte(payload.Value), &sc); err != nil {
		return nil, fmt.Errorf("state: unmarshal session context: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("state: invalid session context loaded from dynamo: %w", err)
	}
	return &sc, nil
}

func (s *DynamoStore) Save(ctx context.Context, sc *SessionContext) error {
	if sc == nil {
		return ErrNilContext
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("state: marshal session context: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrSessionID: &types.AttributeValueMemberS{Value: sc.SessionID},
			attrPayload:   &types.AttributeValueMemberS{Value: string(payload)},
			attrExpiresAt: &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", sc.ExpiresAt.Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("state: dynamo put item: %w", err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			attrSessionID: &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("state: dynamo delete item: %w", err)
	}
	return nil
}
