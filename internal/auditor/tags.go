package auditor

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

// The SDK models tags per service. These convert the list-shaped ones;
// Lambda's map goes through resource.TagsFromMap.

func ec2Tags(tags []ec2types.Tag) resource.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(resource.Tags, 0, len(tags))
	for _, t := range tags {
		out = append(out, resource.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

func rdsTags(tags []rdstypes.Tag) resource.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(resource.Tags, 0, len(tags))
	for _, t := range tags {
		out = append(out, resource.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

func s3Tags(tags []s3types.Tag) resource.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(resource.Tags, 0, len(tags))
	for _, t := range tags {
		out = append(out, resource.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}
