package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-premium-api/internal/domain"
)

// EntitlementRepo is the append-only entitlement table.
// PK: identity
type EntitlementRepo struct {
	client    API
	tableName string
}

func NewEntitlementRepo(client API, tableName string) *EntitlementRepo {
	return &EntitlementRepo{client: client, tableName: tableName}
}

func (r *EntitlementRepo) Get(ctx context.Context, identity string) (*domain.Entitlement, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrIdentity, identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("entitlement not found: %w", domain.ErrNotFound)
	}
	var e domain.Entitlement
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal entitlement: %w", err)
	}
	return &e, nil
}

// PutIfAbsent writes e with attribute_not_exists on the key, so the first
// grant for an identity wins.
func (r *EntitlementRepo) PutIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error) {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return false, fmt.Errorf("marshal entitlement: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrIdentity,
		},
	})
	if conditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
