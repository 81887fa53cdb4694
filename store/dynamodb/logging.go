// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type loggingService struct {
	service
	logger *zap.Logger
}

func newLoggingService(logger *zap.Logger, s service) service {
	return &loggingService{service: s, logger: logger}
}

func (s *loggingService) Load(ctx context.Context, namespace string) (data []byte, consumedCapacity *types.ConsumedCapacity, err error) {
	defer func() {
		s.logger.Debug("dynamodb load", zap.String("namespace", namespace), zap.Int("size", len(data)), zap.Error(err))
	}()
	return s.service.Load(ctx, namespace)
}

func (s *loggingService) Save(ctx context.Context, namespace string, data []byte) (consumedCapacity *types.ConsumedCapacity, err error) {
	defer func() {
		s.logger.Debug("dynamodb save", zap.String("namespace", namespace), zap.Int("size", len(data)), zap.Error(err))
	}()
	return s.service.Save(ctx, namespace, data)
}
