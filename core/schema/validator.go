package schema

import (
	"fmt"
	"strings"
)

// Issue represents a single problem found in an index definition.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// DefinitionError is returned when an index definition fails validation.
type DefinitionError struct {
	Index  string
	Issues []Issue
}

func (e *DefinitionError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return fmt.Sprintf("invalid index definition '%s': %s", e.Index, strings.Join(msgs, "; "))
}

// Validate checks an index definition for structural problems: missing names,
// unknown kinds, empty path segments and colliding field names.
func Validate(def IndexDefinition) (bool, []Issue) {
	var issues []Issue

	if def.Name == "" {
		issues = append(issues, Issue{Code: "INDEX_NAME_MISSING", Message: "index name is required"})
	}

	switch def.StorageType {
	case "", StorageHash, StorageJSON:
	default:
		issues = append(issues, Issue{
			Code:    "INVALID_STORAGE_TYPE",
			Message: fmt.Sprintf("unsupported storage type '%s'", def.StorageType),
		})
	}

	keys := make(map[string]struct{}, len(def.Fields))
	names := make(map[string]struct{}, len(def.Fields))
	for n, f := range def.Fields {
		path := fmt.Sprintf("fields[%d]", n)

		if len(f.Path) == 0 {
			issues = append(issues, Issue{Code: "FIELD_PATH_MISSING", Message: "field path cannot be empty", Path: path})
			continue
		}
		for _, segment := range f.Path {
			if segment == "" {
				issues = append(issues, Issue{
					Code:    "FIELD_PATH_INVALID",
					Message: fmt.Sprintf("field path '%s' has an empty segment", f.Key()),
					Path:    path,
				})
				break
			}
		}

		if !f.Kind.IsValid() {
			issues = append(issues, Issue{
				Code:    "FIELD_KIND_INVALID",
				Message: fmt.Sprintf("field '%s' has unsupported kind '%s'", f.Key(), f.Kind),
				Path:    path,
			})
		}
		if f.Kind == KindVector && f.Sortable {
			issues = append(issues, Issue{
				Code:    "FIELD_NOT_SORTABLE",
				Message: fmt.Sprintf("vector field '%s' cannot be sortable", f.Key()),
				Path:    path,
			})
		}

		if _, dup := keys[f.Key()]; dup {
			issues = append(issues, Issue{
				Code:    "FIELD_DUPLICATE",
				Message: fmt.Sprintf("field '%s' is declared more than once", f.Key()),
				Path:    path,
			})
		}
		keys[f.Key()] = struct{}{}

		if _, dup := names[f.ResolvedName()]; dup {
			issues = append(issues, Issue{
				Code:    "FIELD_NAME_COLLISION",
				Message: fmt.Sprintf("resolved name '%s' of field '%s' collides with another field", f.ResolvedName(), f.Key()),
				Path:    path,
			})
		}
		names[f.ResolvedName()] = struct{}{}
	}

	return len(issues) == 0, issues
}
