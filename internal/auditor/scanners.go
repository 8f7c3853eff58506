package auditor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

// scanEC2Instances lists EC2 instances across all reservations.
func (a *Auditor) scanEC2Instances(ctx context.Context) ([]resource.Record, error) {
	if err := requireClient(a.ec2Client != nil, "ec2"); err != nil {
		return nil, err
	}

	var records []resource.Record
	var nextToken *string

	for {
		output, err := a.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				records = append(records, resource.NewRecord(resource.EC2Instance, aws.ToString(instance.InstanceId), a.region, ec2Tags(instance.Tags)))
			}
		}

		if aws.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return records, nil
}

// scanEBSVolumes lists EBS volumes.
func (a *Auditor) scanEBSVolumes(ctx context.Context) ([]resource.Record, error) {
	if err := requireClient(a.ec2Client != nil, "ec2"); err != nil {
		return nil, err
	}

	var records []resource.Record
	var nextToken *string

	for {
		output, err := a.ec2Client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe volumes: %w", err)
		}

		for _, vol := range output.Volumes {
			records = append(records, resource.NewRecord(resource.EBSVolume, aws.ToString(vol.VolumeId), a.region, ec2Tags(vol.Tags)))
		}

		if aws.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	return records, nil
}

// scanS3Buckets lists buckets and fetches each bucket's tag set. Buckets whose
// tagging request is refused by S3 are skipped.
func (a *Auditor) scanS3Buckets(ctx context.Context) ([]resource.Record, error) {
	if err := requireClient(a.s3Client != nil, "s3"); err != nil {
		return nil, err
	}

	var records []resource.Record
	var token *string

	for {
		output, err := a.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("list buckets: %w", err)
		}

		for _, bucket := range output.Buckets {
			r, ok, err := a.bucketRecord(ctx, bucket)
			if err != nil {
				return nil, err
			}
			if ok {
				records = append(records, r)
			}
		}

		if aws.ToString(output.ContinuationToken) == "" {
			break
		}
		token = output.ContinuationToken
	}

	return records, nil
}

func (a *Auditor) bucketRecord(ctx context.Context, bucket s3types.Bucket) (resource.Record, bool, error) {
	name := aws.ToString(bucket.Name)
	region := a.bucketRegion(ctx, bucket)

	output, err := a.s3Client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: bucket.Name}, func(o *s3.Options) {
		o.Region = region
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.Debug().
				Str("bucket", name).
				Str("code", apiErr.ErrorCode()).
				Msg("skipping bucket, tags unavailable")
			return resource.Record{}, false, nil
		}
		return resource.Record{}, false, fmt.Errorf("get bucket tagging %s: %w", name, err)
	}

	return resource.NewRecord(resource.S3Bucket, name, region, s3Tags(output.TagSet)), true, nil
}

// bucketRegion resolves where a bucket lives so its tagging call is not
// redirected. ListBuckets usually carries the region already; otherwise it
// is looked up, and a failed lookup falls back to the audited region.
func (a *Auditor) bucketRegion(ctx context.Context, bucket s3types.Bucket) string {
	if region := aws.ToString(bucket.BucketRegion); region != "" {
		return region
	}

	output, err := a.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: bucket.Name})
	if err != nil {
		log.Debug().Err(err).Str("bucket", aws.ToString(bucket.Name)).Msg("bucket location lookup failed")
		return a.region
	}
	return normalizeBucketRegion(output.LocationConstraint)
}

// normalizeBucketRegion maps the legacy location constraints onto region names.
func normalizeBucketRegion(c s3types.BucketLocationConstraint) string {
	switch c {
	case "":
		return "us-east-1"
	case s3types.BucketLocationConstraintEu:
		return "eu-west-1"
	default:
		return string(c)
	}
}

// scanRDSInstances lists DB instances and fetches their tags by ARN.
func (a *Auditor) scanRDSInstances(ctx context.Context) ([]resource.Record, error) {
	if err := requireClient(a.rdsClient != nil, "rds"); err != nil {
		return nil, err
	}

	var records []resource.Record
	var marker *string

	for {
		output, err := a.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			r, err := a.rdsRecord(ctx, instance)
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}

		if aws.ToString(output.Marker) == "" {
			break
		}
		marker = output.Marker
	}

	return records, nil
}

func (a *Auditor) rdsRecord(ctx context.Context, instance rdstypes.DBInstance) (resource.Record, error) {
	output, err := a.rdsClient.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{ResourceName: instance.DBInstanceArn})
	if err != nil {
		return resource.Record{}, fmt.Errorf("list tags for db instance %s: %w", aws.ToString(instance.DBInstanceIdentifier), err)
	}
	return resource.NewRecord(resource.RDSInstance, aws.ToString(instance.DBInstanceIdentifier), a.region, rdsTags(output.TagList)), nil
}

// scanLambdaFunctions lists functions and fetches their tags by ARN.
func (a *Auditor) scanLambdaFunctions(ctx context.Context) ([]resource.Record, error) {
	if err := requireClient(a.lambdaClient != nil, "lambda"); err != nil {
		return nil, err
	}

	var records []resource.Record
	var marker *string

	for {
		output, err := a.lambdaClient.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}

		for _, fn := range output.Functions {
			r, err := a.lambdaRecord(ctx, fn)
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}

		if aws.ToString(output.NextMarker) == "" {
			break
		}
		marker = output.NextMarker
	}

	return records, nil
}

func (a *Auditor) lambdaRecord(ctx context.Context, fn lambdatypes.FunctionConfiguration) (resource.Record, error) {
	output, err := a.lambdaClient.ListTags(ctx, &lambda.ListTagsInput{Resource: fn.FunctionArn})
	if err != nil {
		return resource.Record{}, fmt.Errorf("list tags for function %s: %w", aws.ToString(fn.FunctionName), err)
	}
	return resource.NewRecord(resource.LambdaFunction, aws.ToString(fn.FunctionName), a.region, resource.TagsFromMap(output.Tags)), nil
}
