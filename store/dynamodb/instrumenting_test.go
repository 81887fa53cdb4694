// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db/metric"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestInstrumentingService(t *testing.T) {
	assert := assert.New(t)
	m := new(mockService)
	measures := metric.NewMeasures()
	svc := newInstrumentingService(measures, m)
	ctx := context.Background()
	err := errors.New("err")

	m.On("Save", mock.Anything, testNamespace, []byte(`{}`)).Return(testConsumedCapacity, err).Once()
	m.On("Load", mock.Anything, testNamespace).Return([]byte(`{}`), testConsumedCapacity, nil).Once()
	m.On("Clear", mock.Anything, testNamespace).Return(testConsumedCapacity, nil).Once()

	cc, e := svc.Save(ctx, testNamespace, []byte(`{}`))
	assert.Equal(testConsumedCapacity, cc)
	assert.Equal(err, e)

	data, cc, e := svc.Load(ctx, testNamespace)
	assert.Equal([]byte(`{}`), data)
	assert.Equal(testConsumedCapacity, cc)
	assert.NoError(e)

	cc, e = svc.Clear(ctx, testNamespace)
	assert.Equal(testConsumedCapacity, cc)
	assert.NoError(e)

	m.AssertExpectations(t)

	assert.Equal(1.0, counterValue(t, measures.Operations.With(prometheus.Labels{store.TypeLabel: store.SaveType, store.OutcomeLabel: store.FailureOutcome})))
	assert.Equal(1.0, counterValue(t, measures.Operations.With(prometheus.Labels{store.TypeLabel: store.LoadType, store.OutcomeLabel: store.SuccessOutcome})))
	assert.Equal(2.0, counterValue(t, measures.CapacityUnitConsumedCount.With(prometheus.Labels{store.TypeLabel: store.ClearType})))
}
