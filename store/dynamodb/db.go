// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/xmidt-org/vitrine/store"
	"github.com/xmidt-org/vitrine/store/db/metric"
	"go.uber.org/zap"
)

const (
	defaultTable      = "vitrine"
	defaultMaxRetries = 3
	defaultTimeout    = 10 * time.Second
)

var (
	errEmptyRegion   = errors.New("region must be set")
	errEmptyEndpoint = errors.New("endpoint must be set")
)

// Config contains all fields needed to set up the dynamodb client.
type Config struct {
	// Table is the name of the target DB table.
	// (Optional) Defaults to 'vitrine'
	Table string

	// Endpoint is the HTTP(S) URL to the dynamodb service.
	Endpoint string

	// Region is the AWS region of the running dynamodb instance.
	Region string

	// MaxRetries is the number of attempts made per request.
	// (Optional) Defaults to 3
	MaxRetries int

	// AccessKey is the AWS AccessKey credential.
	AccessKey string `json:"-"`

	// SecretKey is the AWS SecretKey credential.
	SecretKey string `json:"-"`
}

// dao adapts the dynamodb service to the abstract store DAO.
type dao struct {
	s service
}

// NewDynamoDB returns a dynamodb backed store.S.
func NewDynamoDB(config Config, measures metric.Measures, logger *zap.Logger) (store.S, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.Region),
		awsconfig.WithRetryMaxAttempts(config.MaxRetries),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	c := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(config.Endpoint)
	})

	return newDAO(&executor{c: c, tableName: config.Table}, measures, logger), nil
}

func newDAO(s service, measures metric.Measures, logger *zap.Logger) *dao {
	s = newInstrumentingService(measures, s)
	s = newLoggingService(logger, s)
	return &dao{s: s}
}

func (d *dao) Load(ctx context.Context, namespace string) ([]byte, error) {
	data, _, err := d.s.Load(ctx, namespace)
	return data, err
}

func (d *dao) Save(ctx context.Context, namespace string, data []byte) error {
	_, err := d.s.Save(ctx, namespace, data)
	return err
}

func (d *dao) Clear(ctx context.Context, namespace string) error {
	_, err := d.s.Clear(ctx, namespace)
	return err
}

func validateConfig(config *Config) error {
	if config.Endpoint == "" {
		return errEmptyEndpoint
	}
	if config.Region == "" {
		return errEmptyRegion
	}
	if config.Table == "" {
		config.Table = defaultTable
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = defaultMaxRetries
	}
	return nil
}
