// Package awsclient resolves AWS configuration and builds the service clients
// the auditor reads from.
package awsclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/logging"
	"github.com/rs/zerolog"

	"github.com/yairfalse/tagaudit/internal/auditor"
)

// ErrPartialCredentials is returned when only one half of a static key pair is set.
var ErrPartialCredentials = errors.New("partial credentials: both access key and secret key are required")

type options struct {
	region    string
	profile   string
	accessKey string
	secretKey string
	logger    *zerolog.Logger
}

// Option customizes how AWS config is loaded. With no options the default
// chain applies (environment, shared config, instance metadata).
type Option func(*options)

// WithRegion sets the region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithProfile selects a shared config profile.
func WithProfile(profile string) Option {
	return func(o *options) { o.profile = profile }
}

// WithStaticCredentials pins an explicit key pair. Empty values leave the
// default chain in place.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithLogger routes SDK log output through logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// Load resolves an aws.Config from the given options.
func Load(ctx context.Context, opts ...Option) (aws.Config, error) {
	loadOpts, err := loadOptions(opts...)
	if err != nil {
		return aws.Config{}, err
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func loadOptions(opts ...Option) ([]func(*config.LoadOptions) error, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if (o.accessKey == "") != (o.secretKey == "") {
		return nil, ErrPartialCredentials
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.accessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.accessKey, o.secretKey, ""),
		))
	}
	if o.logger != nil {
		loadOpts = append(loadOpts,
			config.WithLogger(sdkLogger(*o.logger)),
			config.WithLogConfigurationWarnings(true),
		)
	}
	return loadOpts, nil
}

// sdkLogger adapts zerolog to the SDK's logging interface. The SDK only
// classifies messages as debug or warn; anything else is logged as an error.
func sdkLogger(logger zerolog.Logger) logging.Logger {
	return logging.LoggerFunc(func(classification logging.Classification, format string, v ...interface{}) {
		switch classification {
		case logging.Debug:
			logger.Debug().Str("source", "aws-sdk").Msgf(format, v...)
		case logging.Warn:
			logger.Warn().Str("source", "aws-sdk").Msgf(format, v...)
		default:
			logger.Error().
				Str("source", "aws-sdk").
				Str("classification", string(classification)).
				Msgf(format, v...)
		}
	})
}

// NewClients builds every client the auditor needs from one config.
func NewClients(cfg aws.Config) auditor.Clients {
	return auditor.Clients{
		EC2:    ec2.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
		RDS:    rds.NewFromConfig(cfg),
		Lambda: lambda.NewFromConfig(cfg),
		STS:    sts.NewFromConfig(cfg),
		IAM:    iam.NewFromConfig(cfg),
	}
}
