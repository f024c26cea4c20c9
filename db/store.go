// Package db is the persistent-store boundary: keyed JSON records grouped in
// tables, written with upsert and read back with equality filters.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Filter matches records whose top-level JSON fields equal the given values.
type Filter map[string]any

type SelectOptions struct {
	OrderBy string // numeric top-level field
	Desc    bool
	Limit   int // 0 means no limit
}

// Store is implemented by PostgresStore, RedisStore and MemoryStore.
type Store interface {
	// Upsert inserts record under key, replacing any existing record.
	Upsert(ctx context.Context, table, key string, record any) error
	// Get loads the record under key into out and reports whether it existed.
	Get(ctx context.Context, table, key string, out any) (bool, error)
	Select(ctx context.Context, table string, filter Filter, opts SelectOptions) ([]json.RawMessage, error)
}

// SelectInto runs Select and decodes every row into a T.
func SelectInto[T any](ctx context.Context, s Store, table string, filter Filter, opts SelectOptions) ([]T, error) {
	rows, err := s.Select(ctx, table, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s row: %w", table, err)
		}
		out = append(out, v)
	}
	return out, nil
}

/* =========================
   IN-PROCESS FILTER / SORT
   Used by stores without a query engine.
========================= */

type row struct {
	raw    json.RawMessage
	fields map[string]any
}

func decodeRows(raws [][]byte) ([]row, error) {
	rows := make([]row, 0, len(raws))
	for _, b := range raws {
		var fields map[string]any
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		rows = append(rows, row{raw: json.RawMessage(b), fields: fields})
	}
	return rows, nil
}

// normalize gives filter values the same dynamic types JSON decoding produces.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func applySelect(raws [][]byte, filter Filter, opts SelectOptions) ([]json.RawMessage, error) {
	rows, err := decodeRows(raws)
	if err != nil {
		return nil, err
	}

	want := make(map[string]any, len(filter))
	for k, v := range filter {
		want[k] = normalize(v)
	}

	matched := rows[:0]
	for _, r := range rows {
		ok := true
		for k, v := range want {
			if !reflect.DeepEqual(r.fields[k], v) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, r)
		}
	}

	if opts.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := matched[i].fields[opts.OrderBy].(float64)
			b, _ := matched[j].fields[opts.OrderBy].(float64)
			if opts.Desc {
				return a > b
			}
			return a < b
		})
	}

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]json.RawMessage, len(matched))
	for i, r := range matched {
		out[i] = r.raw
	}
	return out, nil
}
