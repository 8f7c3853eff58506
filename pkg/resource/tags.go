package resource

import "sort"

// NameUnavailable is printed when a resource has no Name tag.
const NameUnavailable = "N/A"

// NameTagKey is the tag key the display name is read from. Matching is case-sensitive.
const NameTagKey = "Name"

// Tag is a single key/value pair attached to a resource.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Tags is a normalised tag set. Providers that return a list keep their
// order; map-shaped tags are sorted by key.
type Tags []Tag

// TagsFromMap converts map-shaped tags (Lambda) into a Tags list sorted by key.
func TagsFromMap(m map[string]string) Tags {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make(Tags, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, Tag{Key: k, Value: m[k]})
	}
	return tags
}

// Name returns the value of the first "Name" tag, or NameUnavailable.
func (t Tags) Name() string {
	for _, tag := range t {
		if tag.Key == NameTagKey {
			return tag.Value
		}
	}
	return NameUnavailable
}
