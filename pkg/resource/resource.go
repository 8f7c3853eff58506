// Package resource defines the audit record model for tagaudit.
package resource

import "time"

// Type identifies the kind of cloud resource a record describes.
// The string value is what the report prints.
type Type string

const (
	EC2Instance    Type = "EC2 Instance"
	EBSVolume      Type = "EBS Volume"
	S3Bucket       Type = "S3 Bucket"
	RDSInstance    Type = "RDS Instance"
	LambdaFunction Type = "Lambda Function"
)

// AllTypes returns every supported type in scan order.
func AllTypes() []Type {
	return []Type{EC2Instance, EBSVolume, S3Bucket, RDSInstance, LambdaFunction}
}

// Record is one row of the report. One record per physical resource,
// whatever its tag count.
type Record struct {
	Type     Type   `json:"resource_type" yaml:"resource_type"`
	ID       string `json:"resource_id" yaml:"resource_id"`
	Name     string `json:"resource_name" yaml:"resource_name"`
	TagCount int    `json:"tag_count" yaml:"tag_count"`
	Region   string `json:"region" yaml:"region"`
}

// NewRecord builds a record, taking the display name from the tag set.
func NewRecord(typ Type, id, region string, tags Tags) Record {
	return Record{
		Type:     typ,
		ID:       id,
		Name:     tags.Name(),
		TagCount: len(tags),
		Region:   region,
	}
}

// Untagged reports whether the resource carried no tags at scan time.
func (r Record) Untagged() bool {
	return r.TagCount == 0
}

// Report is the ordered result of one audit. Records keep discovery order;
// nothing is sorted or deduplicated.
type Report struct {
	Region       string    `json:"region" yaml:"region"`
	Account      string    `json:"account" yaml:"account"`
	AccountAlias string    `json:"account_alias,omitempty" yaml:"account_alias,omitempty"`
	ScannedAt    time.Time `json:"scanned_at" yaml:"scanned_at"`
	Records      []Record  `json:"records" yaml:"records"`
}

// Add appends a record.
func (r *Report) Add(rec Record) {
	r.Records = append(r.Records, rec)
}

// Empty reports whether the audit produced no records.
func (r Report) Empty() bool {
	return len(r.Records) == 0
}

// Untagged returns the records whose tag set was empty, in report order.
func (r Report) Untagged() []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Untagged() {
			out = append(out, rec)
		}
	}
	return out
}

// CountByType returns the number of records per type.
func (r Report) CountByType() map[Type]int {
	counts := make(map[Type]int)
	for _, rec := range r.Records {
		counts[rec.Type]++
	}
	return counts
}

// ScanResult holds the outcome of one audit run.
type ScanResult struct {
	Report   Report
	Duration time.Duration
	Error    error
}
