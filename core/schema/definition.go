// Package schema describes the search index a record type is stored in: the
// flattened field names the server knows, and the kind of each field. It is
// consumed as-is by the compilers; deriving it from record declarations is
// left to the caller.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the index type of a field.
type Kind string

const (
	KindText    Kind = "text"    // Full-text searchable
	KindTag     Kind = "tag"     // Exact token match using {} syntax
	KindNumeric Kind = "numeric" // Range queries
	KindGeo     Kind = "geo"     // Radius queries
	KindVector  Kind = "vector"  // KNN queries
)

// IsValid reports whether k is one of the supported kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindText, KindTag, KindNumeric, KindGeo, KindVector:
		return true
	}
	return false
}

// StorageType is how records are stored under the index prefixes.
type StorageType string

const (
	StorageHash StorageType = "hash"
	StorageJSON StorageType = "json"
)

// FieldDescriptor maps a property path of a record type to its index field.
type FieldDescriptor struct {
	// Path is the property access chain, e.g. ["Address", "State"].
	Path []string `json:"path"`
	// Alias overrides the resolved name. When empty the resolved name is the
	// underscore join of Path.
	Alias        string `json:"alias,omitempty"`
	Kind         Kind   `json:"kind"`
	Sortable     bool   `json:"sortable,omitempty"`
	Aggregatable bool   `json:"aggregatable,omitempty"`
}

// Field creates a descriptor for a dotted property path such as "Address.State".
func Field(path string, kind Kind) FieldDescriptor {
	return FieldDescriptor{Path: strings.Split(path, "."), Kind: kind}
}

// WithAlias returns a copy of f resolved under an explicit name.
func (f FieldDescriptor) WithAlias(alias string) FieldDescriptor {
	f.Path = append([]string(nil), f.Path...)
	f.Alias = alias
	return f
}

// AsSortable returns a copy of f marked sortable.
func (f FieldDescriptor) AsSortable() FieldDescriptor {
	f.Path = append([]string(nil), f.Path...)
	f.Sortable = true
	return f
}

// ResolvedName is the flattened name the server indexes the field under.
func (f FieldDescriptor) ResolvedName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return strings.Join(f.Path, "_")
}

// Key is the dotted property path of the field.
func (f FieldDescriptor) Key() string {
	return strings.Join(f.Path, ".")
}

// IndexDefinition is the serializable description of an index.
type IndexDefinition struct {
	Name        string            `json:"name"`
	Prefixes    []string          `json:"prefixes,omitempty"`
	StorageType StorageType       `json:"storageType,omitempty"`
	Fields      []FieldDescriptor `json:"fields"`
}

// Index is an immutable, validated index definition with field lookups.
type Index struct {
	def    IndexDefinition
	byKey  map[string]int
	byName map[string]int
}

// NewIndex validates the given fields and returns an Index.
func NewIndex(name string, fields ...FieldDescriptor) (*Index, error) {
	return FromDefinition(IndexDefinition{Name: name, StorageType: StorageHash, Fields: fields})
}

// MustIndex is like NewIndex but panics on an invalid definition. It is meant
// for package-level index declarations.
func MustIndex(name string, fields ...FieldDescriptor) *Index {
	idx, err := NewIndex(name, fields...)
	if err != nil {
		panic(err)
	}
	return idx
}

// ParseIndex reads an IndexDefinition from JSON.
func ParseIndex(data []byte) (*Index, error) {
	var def IndexDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse index definition: %w", err)
	}
	return FromDefinition(def)
}

// FromDefinition validates def and builds its lookups.
func FromDefinition(def IndexDefinition) (*Index, error) {
	if ok, issues := Validate(def); !ok {
		return nil, &DefinitionError{Index: def.Name, Issues: issues}
	}
	if def.StorageType == "" {
		def.StorageType = StorageHash
	}

	fields := make([]FieldDescriptor, len(def.Fields))
	idx := &Index{
		byKey:  make(map[string]int, len(def.Fields)),
		byName: make(map[string]int, len(def.Fields)),
	}
	for i, f := range def.Fields {
		f.Path = append([]string(nil), f.Path...)
		fields[i] = f
		idx.byKey[f.Key()] = i
		idx.byName[f.ResolvedName()] = i
	}
	def.Fields = fields
	def.Prefixes = append([]string(nil), def.Prefixes...)
	idx.def = def
	return idx, nil
}

// Name returns the index name used in commands.
func (i *Index) Name() string { return i.def.Name }

// StorageType returns how records are stored.
func (i *Index) StorageType() StorageType { return i.def.StorageType }

// Definition returns a copy of the underlying definition.
func (i *Index) Definition() IndexDefinition {
	def := i.def
	def.Fields = i.Fields()
	def.Prefixes = append([]string(nil), i.def.Prefixes...)
	return def
}

// Fields returns the descriptors in declaration order.
func (i *Index) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(i.def.Fields))
	for n, f := range i.def.Fields {
		f.Path = append([]string(nil), f.Path...)
		out[n] = f
	}
	return out
}

// Resolve returns the descriptor for a property path.
func (i *Index) Resolve(path ...string) (FieldDescriptor, error) {
	if len(path) == 0 {
		return FieldDescriptor{}, fmt.Errorf("field path cannot be empty")
	}
	n, ok := i.byKey[strings.Join(path, ".")]
	if !ok {
		return FieldDescriptor{}, fmt.Errorf("field '%s' not found in index '%s'", strings.Join(path, "."), i.def.Name)
	}
	return i.def.Fields[n], nil
}

// Lookup returns the descriptor indexed under a resolved (flattened) name.
func (i *Index) Lookup(name string) (FieldDescriptor, bool) {
	n, ok := i.byName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return i.def.Fields[n], true
}
