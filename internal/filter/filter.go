// Package filter decides which resource types are scanned and which records
// make it into the report.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

// Selector names accepted on the command line.
const (
	SelectorEC2    = "ec2"
	SelectorS3     = "s3"
	SelectorRDS    = "rds"
	SelectorLambda = "lambda"
)

// selectorTypes maps a selector to the resource types it enables.
// ec2 covers both instances and their EBS volumes.
var selectorTypes = map[string][]resource.Type{
	SelectorEC2:    {resource.EC2Instance, resource.EBSVolume},
	SelectorS3:     {resource.S3Bucket},
	SelectorRDS:    {resource.RDSInstance},
	SelectorLambda: {resource.LambdaFunction},
}

// Selectors returns the valid selector names, sorted.
func Selectors() []string {
	names := make([]string, 0, len(selectorTypes))
	for name := range selectorTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter controls which resource types to scan and which records to keep.
type Filter struct {
	includeTypes map[resource.Type]bool
	untaggedOnly bool
}

// New builds a Filter from selector names. An empty list selects every type.
func New(selectors []string, untaggedOnly bool) (*Filter, error) {
	include := make(map[resource.Type]bool)

	for _, raw := range selectors {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		types, ok := selectorTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown resource type %q (valid: %s)", raw, strings.Join(Selectors(), ", "))
		}
		for _, t := range types {
			include[t] = true
		}
	}

	if len(include) == 0 {
		for _, t := range resource.AllTypes() {
			include[t] = true
		}
	}

	return &Filter{includeTypes: include, untaggedOnly: untaggedOnly}, nil
}

// ShouldScanType returns true if the given resource type should be scanned.
func (f *Filter) ShouldScanType(typ resource.Type) bool {
	return f.includeTypes[typ]
}

// Types returns the selected types in scan order.
func (f *Filter) Types() []resource.Type {
	var out []resource.Type
	for _, t := range resource.AllTypes() {
		if f.includeTypes[t] {
			out = append(out, t)
		}
	}
	return out
}

// UntaggedOnly reports whether tagged resources are dropped from the report.
func (f *Filter) UntaggedOnly() bool {
	return f.untaggedOnly
}

// ShouldIncludeRecord returns true if the record belongs in the report.
func (f *Filter) ShouldIncludeRecord(r resource.Record) bool {
	if !f.includeTypes[r.Type] {
		return false
	}
	if f.untaggedOnly && !r.Untagged() {
		return false
	}
	return true
}
