package query

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/schema"
)

// DefaultPageSize is the page size the server applies when LIMIT carries
// only an offset.
const DefaultPageSize = 10

// SortDirection is the order of a SORTBY key.
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

type geoFilter struct {
	field  expr.MemberAccess
	center GeoLoc
	radius float64
	unit   GeoUnit
}

type sortKey struct {
	field expr.Expr
	dir   SortDirection
}

// SearchQuery builds an FT.SEARCH command. It is persistent: every method
// returns a new query and leaves the receiver untouched, so a base query can
// be shared and extended independently.
type SearchQuery struct {
	scope   Scope
	where   []expr.Expr
	sort    *sortKey
	offset  *int
	limit   *int
	returns []expr.Expr
	geo     *geoFilter
	count   bool
	err     error
}

// NewSearch starts a query over index.
func NewSearch(index *schema.Index) *SearchQuery {
	q := &SearchQuery{scope: NewScope(index)}
	if index == nil {
		q.err = core.NewCompileError("SearchQuery", "", "no index")
	}
	return q
}

func (q *SearchQuery) clone() *SearchQuery {
	c := *q
	c.where = slices.Clone(q.where)
	c.returns = slices.Clone(q.returns)
	return &c
}

// extend returns a copy changed by set. The copy is rendered at once so the
// first compile error is recorded where it was introduced.
func (q *SearchQuery) extend(set func(c *SearchQuery)) *SearchQuery {
	c := q.clone()
	if c.err != nil {
		return c
	}
	set(c)
	if _, err := c.render(); err != nil {
		c.err = err
	}
	return c
}

// Where adds a predicate. Predicates accumulate with the most recent one
// leftmost: Where(a).Where(b) matches b && a.
func (q *SearchQuery) Where(predicate expr.Expr) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.where = append(c.where, predicate) })
}

// OrderBy sorts ascending by field. The server accepts one sort key, so the
// last call wins.
func (q *SearchQuery) OrderBy(field expr.Expr) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.sort = &sortKey{field: field, dir: Ascending} })
}

// OrderByDescending sorts descending by field.
func (q *SearchQuery) OrderByDescending(field expr.Expr) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.sort = &sortKey{field: field, dir: Descending} })
}

// Skip sets the offset of the first result.
func (q *SearchQuery) Skip(n int) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.offset = &n })
}

// Take sets the number of results returned.
func (q *SearchQuery) Take(n int) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.limit = &n })
}

// Select restricts the returned fields to a field or projection of fields.
func (q *SearchQuery) Select(fields expr.Expr) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.returns = append(c.returns, fields) })
}

// GeoFilter keeps results within radius of center.
func (q *SearchQuery) GeoFilter(field expr.MemberAccess, center GeoLoc, radius float64, unit GeoUnit) *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.geo = &geoFilter{field: field, center: center, radius: radius, unit: unit} })
}

// Count turns the query into a count-only query returning no documents.
func (q *SearchQuery) Count() *SearchQuery {
	return q.extend(func(c *SearchQuery) { c.count = true })
}

// Err returns the first error recorded while building the query.
func (q *SearchQuery) Err() error { return q.err }

// Index returns the index the query runs against.
func (q *SearchQuery) Index() *schema.Index { return q.scope.Index() }

// Predicate returns the accumulated predicate, or nil when there is none.
func (q *SearchQuery) Predicate() expr.Expr {
	return combine(q.where)
}

// combine joins predicates so the most recent is leftmost.
func combine(where []expr.Expr) expr.Expr {
	if len(where) == 0 {
		return nil
	}
	p := where[0]
	for _, w := range where[1:] {
		p = expr.AndAlso(w, p)
	}
	return p
}

// QueryString compiles the accumulated predicate, or * when there is none.
func (q *SearchQuery) QueryString() (string, error) {
	return CompileWhere(q.scope, q.where)
}

// CompileWhere compiles accumulated predicates into the query position of
// a command.
func CompileWhere(scope Scope, where []expr.Expr) (string, error) {
	p := combine(where)
	if p == nil {
		return "*", nil
	}
	return NewCompiler(scope).Compile(p)
}

// Build renders the FT.SEARCH command.
func (q *SearchQuery) Build() (core.Command, error) {
	if q.err != nil {
		return core.Command{}, q.err
	}
	return q.render()
}

func (q *SearchQuery) render() (core.Command, error) {
	if q.scope.Index() == nil {
		return core.Command{}, core.NewCompileError("SearchQuery", "", "no index")
	}
	qs, err := q.QueryString()
	if err != nil {
		return core.Command{}, err
	}
	args := []string{q.scope.Index().Name(), qs}

	switch {
	case q.count:
		args = append(args, "LIMIT", "0", "0")
	case q.offset != nil || q.limit != nil:
		offset, limit := 0, DefaultPageSize
		if q.offset != nil {
			offset = *q.offset
		}
		if q.limit != nil {
			limit = *q.limit
		}
		if offset < 0 || limit < 0 {
			return core.Command{}, core.NewCompileError("Limit", "", fmt.Sprintf("negative offset or count (%d, %d)", offset, limit))
		}
		args = append(args, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit))
	}

	if q.sort != nil {
		name, err := q.scope.Name(q.sort.field)
		if err != nil {
			return core.Command{}, err
		}
		args = append(args, "SORTBY", name, string(q.sort.dir))
	}

	if len(q.returns) > 0 {
		var names []string
		for _, r := range q.returns {
			n, err := q.scope.Names(r)
			if err != nil {
				return core.Command{}, err
			}
			names = append(names, n...)
		}
		args = append(args, "RETURN", strconv.Itoa(len(names)))
		args = append(args, names...)
	}

	if q.geo != nil {
		f, err := q.scope.Field(q.geo.field)
		if err != nil {
			return core.Command{}, err
		}
		if f.Kind != schema.KindGeo {
			return core.Command{}, core.NewCompileError("GeoFilter", q.geo.field.Key(), fmt.Sprintf("%s field is not a geo field", f.Kind))
		}
		switch q.geo.unit {
		case Meters, Kilometers, Miles, Feet:
		default:
			return core.Command{}, core.NewCompileError("GeoFilter", q.geo.field.Key(), fmt.Sprintf("unknown unit %q", q.geo.unit))
		}
		args = append(args, "GEOFILTER", f.ResolvedName(),
			FormatFloat(q.geo.center.Longitude), FormatFloat(q.geo.center.Latitude),
			FormatFloat(q.geo.radius), string(q.geo.unit))
	}

	return core.Command{Name: "FT.SEARCH", Args: args}, nil
}
