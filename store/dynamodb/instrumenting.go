// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db/metric"
)

type instrumentingService struct {
	service
	measures metric.Measures
	now      func() time.Time
}

func newInstrumentingService(measures metric.Measures, s service) service {
	return &instrumentingService{
		service:  s,
		measures: measures,
		now:      time.Now,
	}
}

func (s *instrumentingService) Load(ctx context.Context, namespace string) (data []byte, consumedCapacity *types.ConsumedCapacity, err error) {
	start := s.now()
	defer func() {
		s.measures.Update(store.LoadType, start, len(data), err)
		s.recordCapacity(store.LoadType, consumedCapacity)
	}()
	return s.service.Load(ctx, namespace)
}

func (s *instrumentingService) Save(ctx context.Context, namespace string, data []byte) (consumedCapacity *types.ConsumedCapacity, err error) {
	start := s.now()
	defer func() {
		s.measures.Update(store.SaveType, start, len(data), err)
		s.recordCapacity(store.SaveType, consumedCapacity)
	}()
	return s.service.Save(ctx, namespace, data)
}

func (s *instrumentingService) Clear(ctx context.Context, namespace string) (consumedCapacity *types.ConsumedCapacity, err error) {
	start := s.now()
	defer func() {
		s.measures.Update(store.ClearType, start, 0, err)
		s.recordCapacity(store.ClearType, consumedCapacity)
	}()
	return s.service.Clear(ctx, namespace)
}

func (s *instrumentingService) recordCapacity(operation string, consumedCapacity *types.ConsumedCapacity) {
	if consumedCapacity == nil || consumedCapacity.CapacityUnits == nil || s.measures.CapacityUnitConsumedCount == nil {
		return
	}
	s.measures.CapacityUnitConsumedCount.With(prometheus.Labels{store.TypeLabel: operation}).Add(*consumedCapacity.CapacityUnits)
}
