package aggregate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/query"
)

// DefaultLimit is the window size rendered when only an offset is given.
const DefaultLimit = 100

// render turns the set into an FT.AGGREGATE command. Stages render in
// order, with three rewrites that leave the stored pipeline untouched: a
// Reduce with no earlier GroupBy gets an implicit GROUPBY 0, runs of OrderBy
// stages share one SORTBY, and all Limit stages share one LIMIT placed
// where the first of them was added.
func (s *AggregationSet[T]) render(cursor bool, chunk int) (core.Command, error) {
	if s.scope.Index() == nil {
		return core.Command{}, core.NewCompileError("AggregationSet", "", "no index")
	}
	q, err := query.CompileWhere(s.scope, s.where)
	if err != nil {
		return core.Command{}, err
	}
	args := []string{s.scope.Index().Name(), q}

	stages := s.pipeline.stages
	scope := s.scope
	grouped := false
	limited := false

	for i := 0; i < len(stages); i++ {
		switch st := stages[i].(type) {
		case Apply:
			if err := checkAlias(st.Alias); err != nil {
				return core.Command{}, err
			}
			e, err := query.NewRenderer(scope).Apply(st.Expr)
			if err != nil {
				return core.Command{}, err
			}
			args = append(args, "APPLY", e, "AS", st.Alias)
			scope = scope.With(st.Alias)

		case Filter:
			e, err := query.NewRenderer(scope).Filter(st.Expr)
			if err != nil {
				return core.Command{}, err
			}
			args = append(args, "FILTER", e)

		case GroupBy:
			names, err := scope.Names(st.Fields)
			if err != nil {
				return core.Command{}, err
			}
			args = append(args, "GROUPBY", strconv.Itoa(len(names)))
			args = append(args, prefixed(names)...)
			grouped = true

		case Reduce:
			if !grouped {
				args = append(args, "GROUPBY", "0")
				grouped = true
			}
			tokens, alias, err := st.Reducer.render(scope)
			if err != nil {
				return core.Command{}, err
			}
			args = append(args, tokens...)
			scope = scope.With(alias)

		case OrderBy:
			var keys []string
			for ; i < len(stages); i++ {
				o, ok := stages[i].(OrderBy)
				if !ok {
					break
				}
				name, err := scope.Name(o.Field)
				if err != nil {
					return core.Command{}, err
				}
				keys = append(keys, "@"+name, string(o.Direction))
			}
			i--
			args = append(args, "SORTBY", strconv.Itoa(len(keys)))
			args = append(args, keys...)

		case Load:
			if st.All {
				args = append(args, "LOAD", "*")
				continue
			}
			names, err := scope.Names(st.Fields)
			if err != nil {
				return core.Command{}, err
			}
			if len(names) == 0 {
				return core.Command{}, core.NewCompileError("Load", "", "no fields selected")
			}
			args = append(args, "LOAD", strconv.Itoa(len(names)))
			args = append(args, prefixed(names)...)
			scope = scope.With(names...)

		case Limit:
			if limited {
				continue
			}
			offset, count, err := window(stages)
			if err != nil {
				return core.Command{}, err
			}
			args = append(args, "LIMIT", strconv.Itoa(offset), strconv.Itoa(count))
			limited = true

		default:
			return core.Command{}, core.NewCompileError(fmt.Sprintf("%T", st), "", "unknown pipeline stage")
		}
	}

	if cursor {
		args = append(args, "WITHCURSOR", "COUNT", strconv.Itoa(chunk))
	}
	return core.Command{Name: "FT.AGGREGATE", Args: args}, nil
}

// window merges every Limit stage; later values override earlier ones.
func window(stages []Stage) (int, int, error) {
	var offset, count *int
	for _, st := range stages {
		if l, ok := st.(Limit); ok {
			if l.Offset != nil {
				offset = l.Offset
			}
			if l.Count != nil {
				count = l.Count
			}
		}
	}
	o, c := 0, DefaultLimit
	if offset != nil {
		o = *offset
	}
	if count != nil {
		c = *count
	}
	if o < 0 || c < 0 {
		return 0, 0, core.NewCompileError("Limit", "", fmt.Sprintf("negative offset or count (%d, %d)", o, c))
	}
	return o, c, nil
}

func checkAlias(alias string) error {
	if alias == "" {
		return core.NewCompileError("Apply", "", "alias is required")
	}
	if strings.ContainsAny(alias, " \t@") {
		return core.NewCompileError("Apply", alias, "alias must be a bare name")
	}
	return nil
}

func prefixed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "@" + n
	}
	return out
}
