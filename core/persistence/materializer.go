package persistence

import (
	"fmt"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/reply"
	"github.com/asaidimu/go-ftquery/core/schema"
	"github.com/asaidimu/go-ftquery/utils"
)

// RawRecord is one record of a reply: its field/value pairs in wire order.
type RawRecord struct {
	Key    string // Document key, set for search results only.
	Names  []string
	Values map[string]reply.Reply
}

// Document returns the record values converted to Go values.
func (r RawRecord) Document() core.Document {
	doc := make(core.Document, len(r.Values))
	for k, v := range r.Values {
		doc[k] = v.Value()
	}
	return doc
}

// ParseRecord reads alternating name/value pairs.
func ParseRecord(r reply.Reply) (RawRecord, error) {
	items, err := r.AsArray()
	if err != nil {
		return RawRecord{}, &core.ProtocolError{Context: "record", Expected: "array of field/value pairs", Got: r.Kind().String()}
	}
	if len(items)%2 != 0 {
		return RawRecord{}, &core.ProtocolError{Context: "record", Expected: "even number of elements", Got: fmt.Sprintf("%d elements", len(items))}
	}

	rec := RawRecord{
		Names:  make([]string, 0, len(items)/2),
		Values: make(map[string]reply.Reply, len(items)/2),
	}
	for i := 0; i < len(items); i += 2 {
		name, err := items[i].AsString()
		if err != nil {
			return RawRecord{}, &core.ProtocolError{Context: "record", Expected: "field name", Got: items[i].Kind().String()}
		}
		if _, dup := rec.Values[name]; !dup {
			rec.Names = append(rec.Names, name)
		}
		rec.Values[name] = items[i+1]
	}
	return rec, nil
}

// ParseAggregateBatch reads the reply of FT.AGGREGATE or FT.CURSOR READ.
// With a cursor the reply is [[count, record...], cursorID]; without one it
// is [count, record...] and the returned cursor is 0.
func ParseAggregateBatch(r reply.Reply, withCursor bool) ([]RawRecord, int64, error) {
	results := r
	var cursor int64
	if withCursor {
		items, err := r.AsArray()
		if err != nil || len(items) != 2 {
			return nil, 0, &core.ProtocolError{Context: "cursor reply", Expected: "[results, cursor id]", Got: describe(r)}
		}
		if cursor, err = items[1].AsInt64(); err != nil {
			return nil, 0, &core.ProtocolError{Context: "cursor reply", Expected: "integer cursor id", Got: items[1].Kind().String()}
		}
		results = items[0]
	}

	items, err := results.AsArray()
	if err != nil || len(items) == 0 {
		return nil, 0, &core.ProtocolError{Context: "aggregate reply", Expected: "[count, record...]", Got: describe(results)}
	}
	if _, err := items[0].AsInt64(); err != nil {
		return nil, 0, &core.ProtocolError{Context: "aggregate reply", Expected: "integer count", Got: items[0].Kind().String()}
	}

	records := make([]RawRecord, 0, len(items)-1)
	for _, item := range items[1:] {
		rec, err := ParseRecord(item)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, cursor, nil
}

// ParseSearch reads the reply of FT.SEARCH: [total, key, [field, value...],
// key, ...]. Keys without a field array (RETURN 0) yield empty records.
func ParseSearch(r reply.Reply) (int64, []RawRecord, error) {
	items, err := r.AsArray()
	if err != nil || len(items) == 0 {
		return 0, nil, &core.ProtocolError{Context: "search reply", Expected: "[total, key, fields...]", Got: describe(r)}
	}
	total, err := items[0].AsInt64()
	if err != nil {
		return 0, nil, &core.ProtocolError{Context: "search reply", Expected: "integer total", Got: items[0].Kind().String()}
	}

	var records []RawRecord
	for i := 1; i < len(items); i++ {
		key, err := items[i].AsString()
		if err != nil {
			return 0, nil, &core.ProtocolError{Context: "search reply", Expected: "document key", Got: items[i].Kind().String()}
		}
		rec := RawRecord{Key: key, Values: map[string]reply.Reply{}}
		if i+1 < len(items) && items[i+1].Kind() == reply.KindArray {
			fields, err := ParseRecord(items[i+1])
			if err != nil {
				return 0, nil, err
			}
			fields.Key = key
			rec = fields
			i++
		}
		records = append(records, rec)
	}
	return total, records, nil
}

func describe(r reply.Reply) string {
	if r.Kind() == reply.KindArray {
		return fmt.Sprintf("array of %d", r.Len())
	}
	return r.Kind().String()
}

// AggregationResult is a materialized aggregation record. Record is
// hydrated from the fields that map onto T; every returned field, including
// those computed by the pipeline, is available by wire name.
type AggregationResult[T any] struct {
	Record T
	raw    RawRecord
}

// Get returns the value returned under name.
func (r AggregationResult[T]) Get(name string) (reply.Reply, error) {
	v, ok := r.raw.Values[name]
	if !ok {
		return reply.Reply{}, fmt.Errorf("aggregation %q: %w", name, core.ErrNotFound)
	}
	return v, nil
}

// Has reports whether name was returned.
func (r AggregationResult[T]) Has(name string) bool {
	_, ok := r.raw.Values[name]
	return ok
}

// Names returns the returned field names in wire order.
func (r AggregationResult[T]) Names() []string {
	return append([]string(nil), r.raw.Names...)
}

// String returns the value under name as a string.
func (r AggregationResult[T]) String(name string) (string, error) {
	v, err := r.Get(name)
	if err != nil {
		return "", err
	}
	s, err := v.AsString()
	if err != nil {
		return "", fmt.Errorf("aggregation %q: %w", name, err)
	}
	return s, nil
}

// Int64 returns the value under name as an integer.
func (r AggregationResult[T]) Int64(name string) (int64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	i, err := v.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("aggregation %q: %w", name, err)
	}
	return i, nil
}

// Float64 returns the value under name as a float.
func (r AggregationResult[T]) Float64(name string) (float64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	f, err := v.AsFloat64()
	if err != nil {
		return 0, fmt.Errorf("aggregation %q: %w", name, err)
	}
	return f, nil
}

// Document returns every returned field as a Go value.
func (r AggregationResult[T]) Document() core.Document { return r.raw.Document() }

// SearchResult is a materialized search hit.
type SearchResult[T any] struct {
	Key    string
	Record T
	Fields core.Document
}

// Materializer hydrates raw records into T using the index to map
// flattened field names back onto nested properties.
type Materializer[T any] struct {
	paths map[string][]string
}

// NewMaterializer creates a materializer for records of index.
func NewMaterializer[T any](index *schema.Index) *Materializer[T] {
	m := &Materializer[T]{paths: map[string][]string{}}
	if index != nil {
		for _, f := range index.Fields() {
			m.paths[f.ResolvedName()] = f.Path
		}
	}
	return m
}

// Hydrate fills a T from the record, ignoring fields that do not convert.
func (m *Materializer[T]) Hydrate(rec RawRecord) (T, error) {
	return utils.MapToStruct[T](utils.Unflatten(rec.Document(), m.paths))
}

// Aggregation materializes an aggregation record.
func (m *Materializer[T]) Aggregation(rec RawRecord) AggregationResult[T] {
	v, _ := m.Hydrate(rec)
	return AggregationResult[T]{Record: v, raw: rec}
}

// Search materializes a search hit.
func (m *Materializer[T]) Search(rec RawRecord) SearchResult[T] {
	v, _ := m.Hydrate(rec)
	return SearchResult[T]{Key: rec.Key, Record: v, Fields: rec.Document()}
}
