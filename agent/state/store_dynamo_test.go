package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

type fakeDynamo struct {
	getOut        *dynamodb.GetItemOutput
	getErr        error
	putErr        error
	deleteErr     error
	lastGetInput  *dynamodb.GetItemInput
	lastPutInput  *dynamodb.PutItemInput
	lastDeleteIn  *dynamodb.DeleteItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteIn = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func mustNewDynamoStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamoStore(db, "test-table")
	require.NoError(t, err)
	return s
}

func dynamoItem(t *testing.T, sc *SessionContext) map[string]types.AttributeValue {
	t.Helper()
	payload, err := json.Marshal(sc)
	require.NoError(t, err)
	return map[string]types.AttributeValue{
		attrSessionID: &types.AttributeValueMemberS{Value: sc.SessionID},
		attrPayload:   &types.AttributeValueMemberS{Value: string(payload)},
		attrExpiresAt: &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", sc.ExpiresAt.Unix())},
	}
}

func TestDynamoStoreLoad_HappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := NewSessionContext("abc", now, 30*24*time.Hour)
	seed.Requirements = []contractx.Requirement{
		{Type: contractx.RequirementApplicationType, Value: "web application", Confidence: 0.9},
	}

	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: dynamoItem(t, seed)}}
	s := mustNewDynamoStore(t, db)

	sc, err := s.Load(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", sc.SessionID)
	require.Len(t, sc.Requirements, 1)
	require.NotNil(t, db.lastGetInput)
	require.Equal(t, "test-table", *db.lastGetInput.TableName)
}

func TestDynamoStoreLoad_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustNewDynamoStore(t, db)

	_, err := s.Load(context.Background(), "abc")
	require.ErrorIs(t, err, ErrContextNotFound)
}

func TestDynamoStoreLoad_GetItemError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	s := mustNewDynamoStore(t, db)

	_, err := s.Load(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dynamo get item")
}

func TestDynamoStoreLoad_MalformedPayload(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			attrSessionID: &types.AttributeValueMemberS{Value: "abc"},
			attrPayload:   &types.AttributeValueMemberS{Value: "{not json"},
		},
	}}
	s := mustNewDynamoStore(t, db)

	_, err := s.Load(context.Background(), "abc")
	require.Error(t, err)
}

func TestDynamoStoreSave_WritesExpiryAsTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sc := NewSessionContext("abc", now, 30*24*time.Hour)

	db := &fakeDynamo{}
	s := mustNewDynamoStore(t, db)

	require.NoError(t, s.Save(context.Background(), sc))
	require.NotNil(t, db.lastPutInput)

	ttl, ok := db.lastPutInput.Item[attrExpiresAt].(*types.AttributeValueMemberN)
	require.True(t, ok)
	require.Equal(t, fmt.Sprintf("%d", sc.ExpiresAt.Unix()), ttl.Value)
}

func TestDynamoStoreSave_NilContext(t *testing.T) {
	s := mustNewDynamoStore(t, &fakeDynamo{})
	require.ErrorIs(t, s.Save(context.Background(), nil), ErrNilContext)
}

func TestDynamoStoreDelete(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewDynamoStore(t, db)

	require.NoError(t, s.Delete(context.Background(), "abc"))
	require.NotNil(t, db.lastDeleteIn)

	key, ok := db.lastDeleteIn.Key[attrSessionID].(*types.AttributeValueMemberS)
	require.True(t, ok)
	require.Equal(t, "abc", key.Value)
}
