package objstore

import (
	"net/url"
	"strings"
)

// TagSet is an ordered set of object labels.
type TagSet struct {
	pairs [][2]string
}

// Push appends a label. Duplicate keys are sent as given.
func (t *TagSet) Push(key, value string) {
	t.pairs = append(t.pairs, [2]string{key, value})
}

// Len returns the number of labels.
func (t TagSet) Len() int {
	return len(t.pairs)
}

// Encoded returns the labels in url-form encoding, preserving insertion order.
func (t TagSet) Encoded() string {
	var b strings.Builder
	for i, kv := range t.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}
