package entityloader

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/graph-gophers/dataloader"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/query"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

const (
	keyAlias   = "k"
	labelAlias = "l"
	orderAlias = "o"

	batchCapacity = 500
)

// LabelSource names the table and columns holding labels for referenced values.
type LabelSource struct {
	Table       string
	KeyColumn   string
	LabelColumn string
	OrderColumn string
}

// LabelEntry is the label and optional display order of one referenced value.
type LabelEntry struct {
	Label string
	Order *float64
}

// LabelLoader batches label lookups for one referenced entity.
type LabelLoader struct {
	Loader *dataloader.Loader
}

type valueKey struct {
	raw any
	key string
}

func (k valueKey) String() string   { return k.key }
func (k valueKey) Raw() interface{} { return k.raw }

// NewLabelLoader creates a request scoped loader. Results are not cached between loads.
func NewLabelLoader(reader repository.TableReader, source LabelSource) *LabelLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		raws := make([]any, len(keys))
		for i, k := range keys {
			raws[i] = k.Raw()
		}

		columns := []string{
			query.Column(query.BaseAlias, source.KeyColumn) + " AS " + keyAlias,
			query.Column(query.BaseAlias, source.LabelColumn) + " AS " + labelAlias,
		}
		if source.OrderColumn != "" {
			columns = append(columns, query.Column(query.BaseAlias, source.OrderColumn)+" AS "+orderAlias)
		}
		stmt := sq.Select(columns...).
			From(query.Table(source.Table, query.BaseAlias)).
			Where(sq.Eq{query.Column(query.BaseAlias, source.KeyColumn): raws})

		records, err := reader.Select(ctx, stmt)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: fmt.Errorf("failed to load labels from %s: %w", source.Table, err)}
			}
			return results
		}

		entries := make(map[string]LabelEntry, len(records))
		for _, record := range records {
			entry := LabelEntry{Label: repository.FormatValue(record[labelAlias])}
			if order, ok := repository.ToFloat(record[orderAlias]); ok {
				entry.Order = &order
			}
			entries[repository.FormatValue(record[keyAlias])] = entry
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, k := range keys {
			if entry, ok := entries[k.String()]; ok {
				results[i] = &dataloader.Result{Data: entry}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(
		batchFn,
		dataloader.WithWait(5*time.Millisecond),
		dataloader.WithBatchCapacity(batchCapacity),
		dataloader.WithCache(&dataloader.NoCache{}),
	)
	return &LabelLoader{Loader: loader}
}

// Load returns entries keyed by the formatted raw value. Values without a row are absent.
func (l *LabelLoader) Load(ctx context.Context, raws []any) (map[string]LabelEntry, error) {
	keys := make(dataloader.Keys, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		if repository.IsEmptyValue(raw) {
			continue
		}
		key := repository.FormatValue(raw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, valueKey{raw: raw, key: key})
	}
	if len(keys) == 0 {
		return map[string]LabelEntry{}, nil
	}

	data, errs := l.Loader.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	entries := make(map[string]LabelEntry, len(data))
	for i, item := range data {
		if entry, ok := item.(LabelEntry); ok {
			entries[keys[i].String()] = entry
		}
	}
	return entries, nil
}
