package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

func TestNew_NoSelectorsScansEverything(t *testing.T) {
	f, err := New(nil, false)
	require.NoError(t, err)

	for _, typ := range resource.AllTypes() {
		assert.True(t, f.ShouldScanType(typ), "expected %s to be scanned", typ)
	}
	assert.Equal(t, resource.AllTypes(), f.Types())
}

func TestNew_EC2SelectsInstancesAndVolumes(t *testing.T) {
	f, err := New([]string{"ec2"}, false)
	require.NoError(t, err)

	assert.True(t, f.ShouldScanType(resource.EC2Instance))
	assert.True(t, f.ShouldScanType(resource.EBSVolume))
	assert.False(t, f.ShouldScanType(resource.S3Bucket))
	assert.False(t, f.ShouldScanType(resource.RDSInstance))
	assert.False(t, f.ShouldScanType(resource.LambdaFunction))
}

func TestNew_NormalisesSelectors(t *testing.T) {
	f, err := New([]string{" Lambda ", "S3", "s3", ""}, false)
	require.NoError(t, err)

	assert.Equal(t, []resource.Type{resource.S3Bucket, resource.LambdaFunction}, f.Types())
}

func TestNew_BlankSelectorsFallBackToAll(t *testing.T) {
	f, err := New([]string{"", "  "}, false)
	require.NoError(t, err)
	assert.Len(t, f.Types(), 5)
}

func TestNew_UnknownSelector(t *testing.T) {
	_, err := New([]string{"ec2", "dynamodb"}, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynamodb")
	assert.Contains(t, err.Error(), "ec2, lambda, rds, s3")
}

func TestShouldIncludeRecord_AppendAll(t *testing.T) {
	f, err := New(nil, false)
	require.NoError(t, err)

	assert.True(t, f.ShouldIncludeRecord(resource.Record{Type: resource.EC2Instance, TagCount: 0}))
	assert.True(t, f.ShouldIncludeRecord(resource.Record{Type: resource.EC2Instance, TagCount: 3}))
}

func TestShouldIncludeRecord_UntaggedOnly(t *testing.T) {
	f, err := New(nil, true)
	require.NoError(t, err)

	assert.True(t, f.UntaggedOnly())
	assert.True(t, f.ShouldIncludeRecord(resource.Record{Type: resource.S3Bucket, TagCount: 0}))
	assert.False(t, f.ShouldIncludeRecord(resource.Record{Type: resource.S3Bucket, TagCount: 1}))
}

func TestShouldIncludeRecord_UnselectedType(t *testing.T) {
	f, err := New([]string{"rds"}, false)
	require.NoError(t, err)

	assert.False(t, f.ShouldIncludeRecord(resource.Record{Type: resource.LambdaFunction}))
	assert.True(t, f.ShouldIncludeRecord(resource.Record{Type: resource.RDSInstance}))
}

func TestSelectors(t *testing.T) {
	assert.Equal(t, []string{"ec2", "lambda", "rds", "s3"}, Selectors())
}
