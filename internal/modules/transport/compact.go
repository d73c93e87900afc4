// Package transport speaks the ingestion wire protocol: batch compaction,
// payload compression and the HTTP client with its error classification.
package transport

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RefPrefix marks a compacted member value pointing into the common
// dictionary.
const RefPrefix = "$ref:"

// CompactBatch is the deduplicated form of a batch: field values repeated
// across two or more members move into the common dictionary and the members
// keep short references. Receivers must tolerate either form.
type CompactBatch struct {
	Common map[string]any   `json:"common,omitempty"`
	Items  []map[string]any `json:"items"`
}

// Compact extracts every (field, value) pair occurring in at least two
// members into the shared dictionary. Values are compared by their JSON
// encoding; unencodable values stay inline.
func Compact(items []map[string]any) CompactBatch {
	type slot struct {
		key   string
		value any
		count int
	}

	seen := make(map[string]*slot)
	for _, item := range items {
		for k, v := range item {
			enc, err := json.Marshal(v)
			if err != nil {
				continue
			}
			sig := k + "\x00" + string(enc)
			if s, ok := seen[sig]; ok {
				s.count++
			} else {
				seen[sig] = &slot{key: k, value: v, count: 1}
			}
		}
	}

	common := make(map[string]any)
	refs := make(map[string]string)
	next := 1
	for sig, s := range seen {
		if s.count < 2 {
			continue
		}
		id := fmt.Sprintf("c%d", next)
		next++
		common[id] = s.value
		refs[sig] = id
	}

	out := make([]map[string]any, len(items))
	for i, item := range items {
		member := make(map[string]any, len(item))
		for k, v := range item {
			enc, err := json.Marshal(v)
			if err != nil {
				member[k] = v
				continue
			}
			if id, ok := refs[k+"\x00"+string(enc)]; ok {
				member[k] = RefPrefix + id
			} else {
				member[k] = v
			}
		}
		out[i] = member
	}

	if len(common) == 0 {
		return CompactBatch{Items: out}
	}
	return CompactBatch{Common: common, Items: out}
}

// Expand resolves references back into full members; the inverse of Compact.
func Expand(batch CompactBatch) []map[string]any {
	out := make([]map[string]any, len(batch.Items))
	for i, item := range batch.Items {
		member := make(map[string]any, len(item))
		for k, v := range item {
			if ref, ok := v.(string); ok && strings.HasPrefix(ref, RefPrefix) {
				if resolved, found := batch.Common[strings.TrimPrefix(ref, RefPrefix)]; found {
					member[k] = resolved
					continue
				}
			}
			member[k] = v
		}
		out[i] = member
	}
	return out
}
