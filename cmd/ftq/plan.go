package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/aggregate"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/query"
	"github.com/asaidimu/go-ftquery/core/schema"
)

// searchFlags describe a search. The query is a JSON QueryDSL document.
type searchFlags struct {
	query string
}

func (f *searchFlags) build(index *schema.Index, pageSize int) (*query.SearchQuery, error) {
	q := query.NewSearch(index)
	dsl := query.QueryDSL{}
	if f.query != "" {
		var err error
		if dsl, err = query.ParseDSL([]byte(f.query)); err != nil {
			return nil, err
		}
	}
	if (dsl.Pagination == nil || dsl.Pagination.Limit == nil) && pageSize > 0 && !dsl.Count {
		q = q.Take(pageSize)
	}
	return dsl.Apply(q)
}

// aggregateFlags describe an aggregation pipeline. Stages are emitted in
// a fixed order: filter, group, reduce, sort, limit.
type aggregateFlags struct {
	where   string
	load    []string
	groupBy []string
	reduce  []string
	sortBy  []string
	skip    int
	take    int
	chunk   int
}

func (f *aggregateFlags) build(index *schema.Index) (*aggregate.AggregationSet[core.Document], error) {
	set := aggregate.New[core.Document](index)

	if f.where != "" {
		dsl, err := query.ParseDSL([]byte(`{"filters":` + f.where + `}`))
		if err != nil {
			return nil, err
		}
		if dsl.Filters == nil {
			return nil, fmt.Errorf("empty filter %q", f.where)
		}
		e, err := dsl.Filters.Expr()
		if err != nil {
			return nil, err
		}
		set = set.Where(e)
	}

	if len(f.load) > 0 {
		set = set.Load(selectors(index, f.load))
	}

	if len(f.groupBy) > 0 || len(f.reduce) > 0 {
		var grouped *aggregate.GroupedAggregationSet[core.Document]
		if len(f.groupBy) > 0 {
			grouped = set.GroupBy(selectors(index, f.groupBy))
		}
		for _, arg := range f.reduce {
			r, err := parseReducer(index, arg)
			if err != nil {
				return nil, err
			}
			if grouped == nil {
				grouped = set.Reduce(r)
			} else {
				grouped = grouped.Reduce(r)
			}
		}
		set = grouped.CloseGroup()
	}

	for _, arg := range f.sortBy {
		name, dir, _ := strings.Cut(arg, ":")
		switch strings.ToLower(dir) {
		case "", "asc":
			set = set.OrderBy(selector(index, name))
		case "desc":
			set = set.OrderByDescending(selector(index, name))
		default:
			return nil, fmt.Errorf("invalid sort direction %q in %q", dir, arg)
		}
	}

	if f.skip > 0 {
		set = set.Skip(f.skip)
	}
	if f.take > 0 {
		set = set.Take(f.take)
	}
	if f.chunk > 0 {
		set = set.WithCursor(f.chunk)
	}
	return set, set.Err()
}

// selector refers to an index field by dotted path, or to a pipeline
// output by name.
func selector(index *schema.Index, name string) expr.Expr {
	if _, err := index.Resolve(strings.Split(name, ".")...); err == nil {
		return expr.Field(name)
	}
	return expr.Ref(name)
}

func selectors(index *schema.Index, names []string) expr.Expr {
	if len(names) == 1 {
		return selector(index, names[0])
	}
	items := make([]expr.Expr, len(names))
	for i, n := range names {
		items[i] = selector(index, n)
	}
	return expr.New(items...)
}

// parseReducer reads "function[:field[:arg]][=alias]", e.g. "sum:Age=total",
// "count" or "quantile:Age:0.5".
func parseReducer(index *schema.Index, arg string) (aggregate.Reducer, error) {
	body, alias, _ := strings.Cut(arg, "=")
	parts := strings.Split(body, ":")
	name := strings.ToLower(parts[0])

	var field expr.Expr
	if len(parts) > 1 {
		field = selector(index, parts[1])
	} else if name != "count" {
		return aggregate.Reducer{}, fmt.Errorf("reducer %q needs a field", arg)
	}

	var r aggregate.Reducer
	switch name {
	case "count":
		r = aggregate.Count()
	case "sum":
		r = aggregate.Sum(field)
	case "avg":
		r = aggregate.Average(field)
	case "min":
		r = aggregate.Min(field)
	case "max":
		r = aggregate.Max(field)
	case "stddev":
		r = aggregate.StandardDeviation(field)
	case "count_distinct":
		r = aggregate.CountDistinct(field)
	case "count_distinctish":
		r = aggregate.CountDistinctish(field)
	case "tolist":
		r = aggregate.Distinct(field)
	case "first_value":
		r = aggregate.FirstValue(field)
	case "quantile", "random_sample":
		if len(parts) < 3 {
			return aggregate.Reducer{}, fmt.Errorf("reducer %q needs an argument", arg)
		}
		if name == "quantile" {
			q, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return aggregate.Reducer{}, fmt.Errorf("reducer %q: %w", arg, err)
			}
			r = aggregate.Quantile(field, q)
		} else {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return aggregate.Reducer{}, fmt.Errorf("reducer %q: %w", arg, err)
			}
			r = aggregate.RandomSample(field, n)
		}
	default:
		return aggregate.Reducer{}, fmt.Errorf("unknown reducer %q", parts[0])
	}
	if alias != "" {
		r = r.As(alias)
	}
	return r, nil
}
