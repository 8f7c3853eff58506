// Package auditor walks the selected AWS resource types and builds the tag report.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagaudit/internal/filter"
	"github.com/yairfalse/tagaudit/pkg/resource"
)

// Options configures an Auditor.
type Options struct {
	Region       string
	UntaggedOnly bool

	// Tracer defaults to the global OTEL tracer.
	Tracer trace.Tracer

	// Metrics is optional.
	Metrics Recorder
}

// Auditor scans one region and reports every resource with its name tag.
type Auditor struct {
	region       string
	untaggedOnly bool

	ec2Client    EC2API
	s3Client     S3API
	rdsClient    RDSAPI
	lambdaClient LambdaAPI
	stsClient    STSAPI
	iamClient    IAMAPI

	tracer  trace.Tracer
	metrics Recorder
	now     func() time.Time
}

// New creates an Auditor. Region is required.
func New(clients Clients, opts Options) (*Auditor, error) {
	if opts.Region == "" {
		return nil, errors.New("region is required")
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/yairfalse/tagaudit")
	}

	return &Auditor{
		region:       opts.Region,
		untaggedOnly: opts.UntaggedOnly,
		ec2Client:    clients.EC2,
		s3Client:     clients.S3,
		rdsClient:    clients.RDS,
		lambdaClient: clients.Lambda,
		stsClient:    clients.STS,
		iamClient:    clients.IAM,
		tracer:       tracer,
		metrics:      opts.Metrics,
		now:          time.Now,
	}, nil
}

type scanner struct {
	typ  resource.Type
	name string
	fn   func(context.Context) ([]resource.Record, error)
}

// scanners lists every resource scanner in report order.
func (a *Auditor) scanners() []scanner {
	return []scanner{
		{resource.EC2Instance, "ec2_instances", a.scanEC2Instances},
		{resource.EBSVolume, "ebs_volumes", a.scanEBSVolumes},
		{resource.S3Bucket, "s3_buckets", a.scanS3Buckets},
		{resource.RDSInstance, "rds_instances", a.scanRDSInstances},
		{resource.LambdaFunction, "lambda_functions", a.scanLambdaFunctions},
	}
}

// Scan audits the resource types named by selectors (all types when empty).
// Types are scanned one after another; the first provider error aborts the run.
func (a *Auditor) Scan(ctx context.Context, selectors []string) (resource.Report, error) {
	f, err := filter.New(selectors, a.untaggedOnly)
	if err != nil {
		return resource.Report{}, err
	}

	types := f.Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	ctx, span := a.tracer.Start(ctx, "audit", trace.WithAttributes(
		attribute.String("region", a.region),
		attribute.StringSlice("types", names),
		attribute.Bool("untagged_only", f.UntaggedOnly()),
	))
	defer span.End()

	log.Debug().
		Str("region", a.region).
		Strs("types", names).
		Bool("untagged_only", f.UntaggedOnly()).
		Msg("starting audit")

	report := resource.Report{
		Region:       a.region,
		Account:      a.accountID(ctx),
		AccountAlias: a.accountAlias(ctx),
		ScannedAt:    a.now(),
	}

	for _, s := range a.scanners() {
		if !f.ShouldScanType(s.typ) {
			continue
		}

		records, err := a.run(ctx, s)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return resource.Report{}, err
		}

		for _, r := range records {
			if f.ShouldIncludeRecord(r) {
				report.Add(r)
			}
		}
	}

	span.SetAttributes(attribute.Int("records", len(report.Records)))
	return report, nil
}

func (a *Auditor) run(ctx context.Context, s scanner) ([]resource.Record, error) {
	ctx, span := a.tracer.Start(ctx, "scan."+s.name)
	defer span.End()

	start := time.Now()
	records, err := s.fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if a.metrics != nil {
			a.metrics.RecordError(ctx, a.region, s.name)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(records)))
	if a.metrics != nil {
		a.metrics.RecordScan(ctx, a.region, s.name, len(records), time.Since(start))
	}
	log.Debug().
		Str("scanner", s.name).
		Int("count", len(records)).
		Dur("took", time.Since(start)).
		Msg("scan complete")
	return records, nil
}

// requireClient guards scanners against a missing client.
func requireClient(ok bool, service string) error {
	if !ok {
		return fmt.Errorf("%s client not configured", service)
	}
	return nil
}
