// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/xmidt-org/vitrine/store"
)

// client captures the methods of interest from the dynamoDB API. This
// should help mock API calls as well.
type client interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// service defines the dynamodb specific DAO interface. It helps keeping middleware
// such as logging and instrumentation orthogonal to business logic.
type service interface {
	Load(ctx context.Context, namespace string) ([]byte, *types.ConsumedCapacity, error)
	Save(ctx context.Context, namespace string, data []byte) (*types.ConsumedCapacity, error)
	Clear(ctx context.Context, namespace string) (*types.ConsumedCapacity, error)
}

// executor satisfies the service interface so dao can then adapt the outputs to match
// the abstract store DAO.
type executor struct {
	// c is the dynamodb client
	c client

	// tableName is the name of the dynamodb table
	tableName string
}

type storableBlob struct {
	Namespace string `dynamodbav:"namespace"`
	Data      []byte `dynamodbav:"data"`
}

// Dynamo DB attribute keys
const (
	namespaceAttributeKey = "namespace"
)

const (
	validationExceptionCode = "ValidationException"
	itemTooLargeMessage     = "Item size has exceeded"
)

func handleClientError(operation, namespace string, size int, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == validationExceptionCode &&
		strings.Contains(apiErr.ErrorMessage(), itemTooLargeMessage) {
		return store.QuotaExceededError{Namespace: namespace, Size: size, Err: err}
	}
	return store.OperationError{Operation: operation, Namespace: namespace, Err: err}
}

func (d *executor) key(namespace string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		namespaceAttributeKey: &types.AttributeValueMemberS{Value: namespace},
	}
}

func (d *executor) Load(ctx context.Context, namespace string) ([]byte, *types.ConsumedCapacity, error) {
	output, err := d.c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:              aws.String(d.tableName),
		Key:                    d.key(namespace),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, nil, handleClientError(store.LoadType, namespace, 0, err)
	}
	if len(output.Item) == 0 {
		return nil, output.ConsumedCapacity, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: store.ErrNotFound}
	}
	var blob storableBlob
	if err := attributevalue.UnmarshalMap(output.Item, &blob); err != nil {
		return nil, output.ConsumedCapacity, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: err}
	}
	return blob.Data, output.ConsumedCapacity, nil
}

func (d *executor) Save(ctx context.Context, namespace string, data []byte) (*types.ConsumedCapacity, error) {
	av, err := attributevalue.MarshalMap(storableBlob{Namespace: namespace, Data: data})
	if err != nil {
		return nil, store.OperationError{Operation: store.SaveType, Namespace: namespace, Err: err}
	}
	output, err := d.c.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:              aws.String(d.tableName),
		Item:                   av,
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, handleClientError(store.SaveType, namespace, len(data), err)
	}
	return output.ConsumedCapacity, nil
}

func (d *executor) Clear(ctx context.Context, namespace string) (*types.ConsumedCapacity, error) {
	output, err := d.c.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:              aws.String(d.tableName),
		Key:                    d.key(namespace),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return nil, handleClientError(store.ClearType, namespace, 0, err)
	}
	return output.ConsumedCapacity, nil
}
