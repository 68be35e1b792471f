package aggregate

import (
	"strconv"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/query"
)

// Reducer is a group reduction such as SUM or COUNT. Reducers are values;
// As and By return modified copies.
type Reducer struct {
	function string
	field    expr.Expr
	args     []string
	suffix   string
	by       expr.Expr
	dir      query.SortDirection
	alias    string
}

func fieldReducer(function string, field expr.Expr) Reducer {
	return Reducer{function: function, field: field}
}

func Sum(field expr.Expr) Reducer               { return fieldReducer("SUM", field) }
func Average(field expr.Expr) Reducer           { return fieldReducer("AVG", field) }
func Min(field expr.Expr) Reducer               { return fieldReducer("MIN", field) }
func Max(field expr.Expr) Reducer               { return fieldReducer("MAX", field) }
func StandardDeviation(field expr.Expr) Reducer { return fieldReducer("STDDEV", field) }
func CountDistinct(field expr.Expr) Reducer     { return fieldReducer("COUNT_DISTINCT", field) }
func CountDistinctish(field expr.Expr) Reducer  { return fieldReducer("COUNT_DISTINCTISH", field) }

// Distinct collects the distinct values of field into a list.
func Distinct(field expr.Expr) Reducer { return fieldReducer("TOLIST", field) }

// FirstValue returns field from the first record of each group. Use By to
// choose the record ordering.
func FirstValue(field expr.Expr) Reducer { return fieldReducer("FIRST_VALUE", field) }

// RandomSample returns up to size values of field sampled from each group.
func RandomSample(field expr.Expr, size int) Reducer {
	r := fieldReducer("RANDOM_SAMPLE", field)
	r.args = []string{strconv.Itoa(size)}
	return r
}

// Quantile returns the value of field at quantile q, between 0 and 1.
func Quantile(field expr.Expr, q float64) Reducer {
	r := fieldReducer("QUANTILE", field)
	r.args = []string{query.FormatFloat(q)}
	r.suffix = "_" + query.FormatFloat(q)
	return r
}

// Count counts the records in each group.
func Count() Reducer { return Reducer{function: "COUNT"} }

// LongCount is Count.
func LongCount() Reducer { return Count() }

// CountGroupMembers is Count.
func CountGroupMembers() Reducer { return Count() }

// As names the reducer output.
func (r Reducer) As(alias string) Reducer {
	r.alias = alias
	return r
}

// By orders the records of a FirstValue reducer by field. Without a
// direction the server default applies.
func (r Reducer) By(field expr.Expr, dir ...query.SortDirection) Reducer {
	r.by = field
	r.dir = ""
	if len(dir) > 0 {
		r.dir = dir[0]
	}
	return r
}

// Function returns the server-side reducer name.
func (r Reducer) Function() string { return r.function }

// render returns the REDUCE tokens and the output name.
func (r Reducer) render(scope query.Scope) ([]string, string, error) {
	var params []string
	alias := r.function
	if r.field != nil {
		name, err := scope.Name(r.field)
		if err != nil {
			return nil, "", err
		}
		params = append(params, "@"+name)
		params = append(params, r.args...)
		alias = name + "_" + r.function + r.suffix
	}

	if r.by != nil {
		if r.function != "FIRST_VALUE" {
			return nil, "", core.NewCompileError("Reduce", r.function, "only FIRST_VALUE accepts a sort key")
		}
		name, err := scope.Name(r.by)
		if err != nil {
			return nil, "", err
		}
		params = append(params, "BY", "@"+name)
		switch r.dir {
		case "":
		case query.Ascending, query.Descending:
			params = append(params, string(r.dir))
		default:
			return nil, "", core.NewCompileError("Reduce", r.function, "unknown sort direction "+string(r.dir))
		}
	}

	if r.alias != "" {
		alias = r.alias
	}
	tokens := append([]string{"REDUCE", r.function, strconv.Itoa(len(params))}, params...)
	tokens = append(tokens, "AS", alias)
	return tokens, alias, nil
}
