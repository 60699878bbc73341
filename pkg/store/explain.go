package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/backend/bbolt"
	"github.com/opencanarias/taple-client-sub000/pkg/backend/pebble"
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
)

// unattributed groups keys that carry no separator, which only legacy root
// collections write.
const unattributed = "(unseparated)"

const sampleValueLimit = 64

// ExplainOptions configures the explain operation
type ExplainOptions struct {
	WithSamples int
	// Collection restricts the report to one root collection.
	Collection string
}

// ExplainResult holds the results of an explain operation
type ExplainResult struct {
	Global struct {
		Driver      string        `json:"driver"`
		TotalKeys   int           `json:"total_keys"`
		TotalSizeMB float64       `json:"total_size_mb"`
		DiskUsageMB float64       `json:"disk_usage_mb,omitempty"`
		References  int64         `json:"references"`
		Uptime      time.Duration `json:"uptime"`
	} `json:"global"`

	Collections map[string]CollectionStats `json:"collections"`

	Samples []Sample `json:"samples,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// CollectionStats describes one root collection.
type CollectionStats struct {
	Keys       int      `json:"keys"`
	OwnKeys    int      `json:"own_keys"`
	SizeBytes  int64    `json:"size_bytes"`
	Partitions []string `json:"partitions,omitempty"`
	MinKey     string   `json:"min_key,omitempty"`
	MaxKey     string   `json:"max_key,omitempty"`
}

type Sample struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Value      string `json:"value_truncated"`
}

// StoreStats holds statistics about the store
type StoreStats struct {
	Keys     int   `json:"keys"`
	DataSize int64 `json:"data_size"`
}

// Stats counts the entries in the store and their total size.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}
	err := s.walk(ctx, func(key, value []byte) {
		stats.Keys++
		stats.DataSize += int64(len(key) + len(value))
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Explain walks the whole keyspace and reports per root collection. In the
// separated root layout every physical key starts with its root name and a
// separator, which is what attribution relies on.
func (s *Store) Explain(ctx context.Context, opts ExplainOptions) (*ExplainResult, error) {
	res := &ExplainResult{Collections: map[string]CollectionStats{}}
	res.Global.Driver = s.handle.Driver()
	res.Global.References = s.handle.Refs()
	res.Global.Uptime = time.Since(s.startTime)

	partitions := map[string]map[string]struct{}{}
	var totalSize int64

	err := s.walk(ctx, func(key, value []byte) {
		root, rest := splitSegment(key)
		if opts.Collection != "" && root != opts.Collection {
			return
		}

		size := int64(len(key) + len(value))
		res.Global.TotalKeys++
		totalSize += size

		stats := res.Collections[root]
		stats.Keys++
		stats.SizeBytes += size

		if child, below := splitSegment(rest); below != nil {
			if partitions[root] == nil {
				partitions[root] = map[string]struct{}{}
			}
			partitions[root][child] = struct{}{}
		} else {
			stats.OwnKeys++
		}

		logical := string(rest)
		if stats.Keys == 1 || logical < stats.MinKey {
			stats.MinKey = logical
		}
		if logical > stats.MaxKey {
			stats.MaxKey = logical
		}
		res.Collections[root] = stats

		if len(res.Samples) < opts.WithSamples && root != SystemCollection {
			res.Samples = append(res.Samples, Sample{
				Collection: root,
				Key:        strings.ReplaceAll(logical, keys.SeparatorString, "/"),
				Value:      truncate(value),
			})
		}
	})
	if err != nil {
		return nil, err
	}

	for root, children := range partitions {
		stats := res.Collections[root]
		for child := range children {
			stats.Partitions = append(stats.Partitions, child)
		}
		sort.Strings(stats.Partitions)
		res.Collections[root] = stats
	}

	res.Global.TotalSizeMB = float64(totalSize) / (1024 * 1024)
	if usage, ok := s.diskUsage(); ok {
		res.Global.DiskUsageMB = float64(usage) / (1024 * 1024)
	}

	if _, ok := res.Collections[unattributed]; ok {
		res.Warnings = append(res.Warnings,
			"keys without a separator were found; legacy root collections cannot be told apart")
	}
	if opts.Collection != "" && res.Global.TotalKeys == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("No data for collection: %s", opts.Collection))
	}

	return res, nil
}

// walk visits every physical entry in key order.
func (s *Store) walk(ctx context.Context, fn func(key, value []byte)) error {
	if err := s.handle.Retain(); err != nil {
		return err
	}
	defer s.handle.Release()

	it, err := s.handle.Store().NewIterator(backend.Forward)
	if err != nil {
		return err
	}
	defer it.Close()

	for n := 0; it.Next(); n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		value, err := it.Value()
		if err != nil {
			return err
		}
		fn(it.Key(), value)
	}
	return it.Err()
}

func (s *Store) diskUsage() (uint64, bool) {
	switch st := s.handle.Store().(type) {
	case *pebble.Store:
		return st.Metrics().DiskSpaceUsage(), true
	case *bbolt.Store:
		return uint64(st.Size()), true
	}
	return 0, false
}

// splitSegment splits at the first separator. rest is nil when there is none.
func splitSegment(key []byte) (string, []byte) {
	i := bytes.Index(key, []byte(keys.SeparatorString))
	if i < 0 {
		if len(key) == 0 {
			return "", nil
		}
		return unattributed, nil
	}
	return string(key[:i]), key[i+len(keys.SeparatorString):]
}

func truncate(value []byte) string {
	if payload, _, err := codec.Unframe(value); err == nil {
		value = payload
	}
	if len(value) > sampleValueLimit {
		value = value[:sampleValueLimit]
	}
	return strings.ToValidUTF8(string(value), string(utf8.RuneError))
}
