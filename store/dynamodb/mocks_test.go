// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

func (s *mockService) Load(ctx context.Context, namespace string) ([]byte, *types.ConsumedCapacity, error) {
	args := s.Called(ctx, namespace)
	return args.Get(0).([]byte), args.Get(1).(*types.ConsumedCapacity), args.Error(2)
}

func (s *mockService) Save(ctx context.Context, namespace string, data []byte) (*types.ConsumedCapacity, error) {
	args := s.Called(ctx, namespace, data)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

func (s *mockService) Clear(ctx context.Context, namespace string) (*types.ConsumedCapacity, error) {
	args := s.Called(ctx, namespace)
	return args.Get(0).(*types.ConsumedCapacity), args.Error(1)
}

type mockClient struct {
	mock.Mock
}

func (c *mockClient) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := c.Called(ctx, input)
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (c *mockClient) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := c.Called(ctx, input)
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (c *mockClient) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := c.Called(ctx, input)
	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

// tableClient keeps items in memory and rejects oversized ones the way
// dynamodb does.
type tableClient struct {
	lock     sync.Mutex
	items    map[string]map[string]types.AttributeValue
	maxBytes int
}

func newTableClient(maxBytes int) *tableClient {
	return &tableClient{items: map[string]map[string]types.AttributeValue{}, maxBytes: maxBytes}
}

func (c *tableClient) hashKey(key map[string]types.AttributeValue) string {
	return key[namespaceAttributeKey].(*types.AttributeValueMemberS).Value
}

func (c *tableClient) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if data, ok := input.Item["data"].(*types.AttributeValueMemberB); ok && c.maxBytes > 0 && len(data.Value) > c.maxBytes {
		return nil, &smithy.GenericAPIError{Code: validationExceptionCode, Message: "Item size has exceeded the maximum allowed size"}
	}
	c.items[c.hashKey(input.Item)] = input.Item
	return &dynamodb.PutItemOutput{ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(1)}}, nil
}

func (c *tableClient) GetItem(_ context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return &dynamodb.GetItemOutput{
		Item:             c.items[c.hashKey(input.Key)],
		ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(0.5)},
	}, nil
}

func (c *tableClient) DeleteItem(_ context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.items, c.hashKey(input.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}
