// Package utils holds the conversions between raw reply records and typed
// Go values.
package utils

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Unflatten rebuilds the nested shape of a record from its flattened wire
// names.
//
// The index stores nested properties under a single underscore-joined name,
// so a record read back from the server is flat. paths maps each flattened
// name to the property path it was derived from; names without an entry are
// kept at the top level unchanged.
//
// Example:
//
//	flat := map[string]any{"Name": "Bob", "Address_State": "FL"}
//	nested := Unflatten(flat, map[string][]string{"Address_State": {"Address", "State"}})
//	// nested == map[string]any{"Name": "Bob", "Address": map[string]any{"State": "FL"}}
//
// When a flattened name and a nested path collide, the nested path wins.
func Unflatten(values map[string]any, paths map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		path, ok := paths[name]
		if !ok || len(path) < 2 {
			if _, taken := out[name]; !taken {
				out[name] = v
			}
			continue
		}

		node := out
		for _, segment := range path[:len(path)-1] {
			child, ok := node[segment].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[segment] = child
			}
			node = child
		}
		node[path[len(path)-1]] = v
	}
	return out
}

// MapToStruct decodes input into a new T.
//
// Decoding is weakly typed: the server returns most values as strings, so
// "33" fills an int field and "1" fills a bool. Numeric values decoded into
// a time.Time are read as Unix epoch milliseconds. Struct fields are matched
// by their `json` tag, or by name case-insensitively when untagged.
//
// Decoding is best effort. Fields that cannot be converted are left at their
// zero value and reported in the returned error alongside the partially
// filled result.
func MapToStruct[T any](input map[string]any) (T, error) {
	var result T
	if input == nil {
		return result, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &result,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			epochMillisToTime,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return result, fmt.Errorf("MapToStruct: failed to create decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return result, fmt.Errorf("MapToStruct: %w", err)
	}
	return result, nil
}

var timeType = reflect.TypeOf(time.Time{})

func epochMillisToTime(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	return data, nil
}
