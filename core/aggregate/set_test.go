package aggregate

import (
	"strings"
	"testing"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/expr"
	"github.com/asaidimu/go-ftquery/core/query"
	"github.com/asaidimu/go-ftquery/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name     string
	TagField string
	Age      int
	Height   float64
	Sales    float64
	Created  int64
	Address  struct{ State, City string }
}

var people = schema.MustIndex("people-idx",
	schema.Field("Name", schema.KindText),
	schema.Field("TagField", schema.KindTag),
	schema.Field("Age", schema.KindNumeric).AsSortable(),
	schema.Field("Height", schema.KindNumeric),
	schema.Field("Sales", schema.KindNumeric),
	schema.Field("Created", schema.KindNumeric),
	schema.Field("Address.State", schema.KindTag),
	schema.Field("Address.City", schema.KindText),
)

var (
	name     = expr.Field("Name")
	tagField = expr.Field("TagField")
	age      = expr.Field("Age")
	height   = expr.Field("Height")
	sales    = expr.Field("Sales")
)

// stageArgs returns the tokens after the index name and query.
func stageArgs(t *testing.T, b interface {
	Build() (core.Command, error)
}) []string {
	t.Helper()
	cmd, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, "FT.AGGREGATE", cmd.Name)
	require.GreaterOrEqual(t, len(cmd.Args), 2)
	return cmd.Args[2:]
}

func tokens(s string) []string { return strings.Fields(s) }

func TestAggregationSet_Scenarios(t *testing.T) {
	base := New[person](people)

	tests := []struct {
		name     string
		build    interface{ Build() (core.Command, error) }
		expected []string
	}{
		{
			name:     "apply lower",
			build:    base.Apply(expr.Call(name, "ToLower"), "Name"),
			expected: tokens("APPLY lower(@Name) AS Name"),
		},
		{
			name:     "group with reducers",
			build:    base.GroupBy(tagField).Sum(sales).Average(age),
			expected: tokens("GROUPBY 1 @TagField REDUCE SUM 1 @Sales AS Sales_SUM REDUCE AVG 1 @Age AS Age_AVG"),
		},
		{
			name:     "sort and page",
			build:    base.OrderByDescending(age).Skip(0).Take(10),
			expected: tokens("SORTBY 2 @Age DESC LIMIT 0 10"),
		},
		{
			name:     "empty group",
			build:    base.GroupBy(expr.New()),
			expected: tokens("GROUPBY 0"),
		},
		{
			name:     "multi-field group",
			build:    base.GroupBy(expr.New(tagField, expr.Field("Address.State"))).Count(),
			expected: tokens("GROUPBY 2 @TagField @Address_State REDUCE COUNT 0 AS COUNT"),
		},
		{
			name:     "reduce without group inserts group of all",
			build:    base.Reduce(Count()),
			expected: tokens("GROUPBY 0 REDUCE COUNT 0 AS COUNT"),
		},
		{
			name:     "chained groups are not merged",
			build:    base.GroupBy(tagField).Sum(sales).GroupBy(expr.Ref("Sales_SUM")).Count(),
			expected: tokens("GROUPBY 1 @TagField REDUCE SUM 1 @Sales AS Sales_SUM GROUPBY 1 @Sales_SUM REDUCE COUNT 0 AS COUNT"),
		},
		{
			name:     "chained sorts are merged",
			build:    base.OrderBy(age).OrderByDescending(height),
			expected: tokens("SORTBY 4 @Age ASC @Height DESC"),
		},
		{
			name:     "take before skip",
			build:    base.Take(5).Skip(20),
			expected: tokens("LIMIT 20 5"),
		},
		{
			name:     "skip only",
			build:    base.Skip(7),
			expected: tokens("LIMIT 7 100"),
		},
		{
			name:     "load fields",
			build:    base.Load(expr.New(name, expr.Field("Address.City"))),
			expected: tokens("LOAD 2 @Name @Address_City"),
		},
		{
			name:     "load all",
			build:    base.LoadAll(),
			expected: tokens("LOAD *"),
		},
		{
			name:     "close group keeps the pipeline",
			build:    base.GroupBy(tagField).Count().CloseGroup().OrderByDescending(expr.Ref("COUNT")),
			expected: tokens("GROUPBY 1 @TagField REDUCE COUNT 0 AS COUNT SORTBY 2 @COUNT DESC"),
		},
		{
			name:     "filter on a constant comparison",
			build:    base.Filter(expr.LessThan(expr.Lit(5), expr.Lit(6))),
			expected: []string{"FILTER", "5 < 6"},
		},
		{
			name:     "filter with quoted string",
			build:    base.Filter(expr.Equal(name, expr.Lit("steve"))),
			expected: []string{"FILTER", "@Name == 'steve'"},
		},
		{
			name: "filter with boolean combination",
			build: base.Filter(expr.OrElse(
				expr.Equal(age, expr.Lit(2)),
				expr.Equal(age, expr.Lit(50)),
			)),
			expected: []string{"FILTER", "(@Age:[2 2] | @Age:[50 50])"},
		},
		{
			name:     "xor renders as power",
			build:    base.Apply(expr.Power(age, expr.Lit(4)), "AgePow"),
			expected: []string{"APPLY", "@Age ^ 4", "AS", "AgePow"},
		},
		{
			name: "nested math",
			build: base.Apply(
				expr.Static(expr.ReceiverMath, "Abs", expr.Minus(expr.Static(expr.ReceiverMath, "Sqrt", age), height)),
				"Diff",
			),
			expected: []string{"APPLY", "abs(sqrt(@Age) - @Height)", "AS", "Diff"},
		},
		{
			name: "apply output is referencable",
			build: base.
				Apply(expr.Times(age, expr.Lit(12)), "Months").
				Filter(expr.GreaterThan(expr.Ref("Months"), expr.Lit(100))),
			expected: []string{"APPLY", "@Age * 12", "AS", "Months", "FILTER", "@Months > 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stageArgs(t, tt.build))
		})
	}
}

func TestReducers(t *testing.T) {
	base := New[person](people).GroupBy(tagField)

	tests := []struct {
		name     string
		reducer  Reducer
		expected string
	}{
		{"sum", Sum(sales), "REDUCE SUM 1 @Sales AS Sales_SUM"},
		{"average", Average(age), "REDUCE AVG 1 @Age AS Age_AVG"},
		{"min", Min(age), "REDUCE MIN 1 @Age AS Age_MIN"},
		{"max", Max(age), "REDUCE MAX 1 @Age AS Age_MAX"},
		{"stddev", StandardDeviation(age), "REDUCE STDDEV 1 @Age AS Age_STDDEV"},
		{"count distinct", CountDistinct(name), "REDUCE COUNT_DISTINCT 1 @Name AS Name_COUNT_DISTINCT"},
		{"count distinctish", CountDistinctish(name), "REDUCE COUNT_DISTINCTISH 1 @Name AS Name_COUNT_DISTINCTISH"},
		{"distinct", Distinct(name), "REDUCE TOLIST 1 @Name AS Name_TOLIST"},
		{"random sample", RandomSample(age, 3), "REDUCE RANDOM_SAMPLE 2 @Age 3 AS Age_RANDOM_SAMPLE"},
		{"quantile", Quantile(age, 0.7), "REDUCE QUANTILE 2 @Age 0.7 AS Age_QUANTILE_0.7"},
		{"count", Count(), "REDUCE COUNT 0 AS COUNT"},
		{"long count", LongCount(), "REDUCE COUNT 0 AS COUNT"},
		{"count group members", CountGroupMembers(), "REDUCE COUNT 0 AS COUNT"},
		{"first value", FirstValue(name), "REDUCE FIRST_VALUE 1 @Name AS Name_FIRST_VALUE"},
		{"first value by", FirstValue(name).By(age), "REDUCE FIRST_VALUE 3 @Name BY @Age AS Name_FIRST_VALUE"},
		{
			"first value by with direction",
			FirstValue(name).By(age, query.Descending),
			"REDUCE FIRST_VALUE 4 @Name BY @Age DESC AS Name_FIRST_VALUE",
		},
		{"nested field alias", Max(expr.Field("Address.State")), "REDUCE MAX 1 @Address_State AS Address_State_MAX"},
		{"explicit alias", Sum(sales).As("total"), "REDUCE SUM 1 @Sales AS total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stageArgs(t, base.Reduce(tt.reducer))
			assert.Equal(t, append(tokens("GROUPBY 1 @TagField"), tokens(tt.expected)...), got)
		})
	}
}

func TestAggregationSet_Query(t *testing.T) {
	a := expr.Equal(tagField, expr.Lit("Bob"))
	b := expr.LessThan(age, expr.Lit(33))

	cmd, err := New[person](people).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"people-idx", "*"}, cmd.Args)

	cmd, err = New[person](people).Where(a).Where(b).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"people-idx", "((@Age:[-inf (33]) (@TagField:{Bob}))"}, cmd.Args)
}

func TestAggregationSet_Cursor(t *testing.T) {
	set := New[person](people).GroupBy(tagField).Count().CloseGroup()

	cmd, err := set.WithCursor(250).Build()
	require.NoError(t, err)
	assert.Equal(t, tokens("people-idx * GROUPBY 1 @TagField REDUCE COUNT 0 AS COUNT WITHCURSOR COUNT 250"), cmd.Args)

	cmd, chunk, err := set.CursorCommand(1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, chunk)
	assert.Equal(t, []string{"WITHCURSOR", "COUNT", "1000"}, cmd.Args[len(cmd.Args)-3:])

	_, _, err = set.WithCursor(20).CursorCommand(1000)
	require.NoError(t, err)

	assert.Error(t, set.WithCursor(0).Err())
}

func TestAggregationSet_Explain(t *testing.T) {
	s, err := New[person](people).Where(expr.LessThan(age, expr.Lit(33))).Apply(expr.Call(name, "ToUpper"), "Upper").Explain()
	require.NoError(t, err)
	assert.Equal(t, `FT.AGGREGATE people-idx "(@Age:[-inf (33])" APPLY upper(@Name) AS Upper`, s)
}

func TestAggregationSet_IsPersistent(t *testing.T) {
	base := New[person](people).Apply(expr.Call(name, "ToLower"), "lname")
	left := base.OrderBy(age)
	right := base.GroupBy(tagField).Count()

	assert.Equal(t, 1, base.Pipeline().Len())
	assert.Equal(t, 2, left.Pipeline().Len())
	assert.Equal(t, 3, right.CloseGroup().Pipeline().Len())

	assert.Equal(t, tokens("APPLY lower(@Name) AS lname"), stageArgs(t, base))
	assert.Equal(t, tokens("APPLY lower(@Name) AS lname SORTBY 2 @Age ASC"), stageArgs(t, left))
	assert.Equal(t, tokens("APPLY lower(@Name) AS lname GROUPBY 1 @TagField REDUCE COUNT 0 AS COUNT"), stageArgs(t, right))

	_, isApply := base.Pipeline().Stages()[0].(Apply)
	assert.True(t, isApply)

	// Extending base again leaves every earlier branch untouched.
	other := base.OrderByDescending(height)
	assert.Equal(t, 1, base.Pipeline().Len())
	assert.Equal(t, tokens("APPLY lower(@Name) AS lname SORTBY 2 @Age ASC"), stageArgs(t, left))
	assert.Equal(t, tokens("APPLY lower(@Name) AS lname SORTBY 2 @Height DESC"), stageArgs(t, other))
}

func TestAggregationSet_ClosuresAreReadAtBuild(t *testing.T) {
	threshold := 10
	set := New[person](people).Filter(expr.GreaterThan(age, expr.Var("threshold", &threshold)))

	assert.Equal(t, []string{"FILTER", "@Age > 10"}, stageArgs(t, set))
	threshold = 20
	assert.Equal(t, []string{"FILTER", "@Age > 20"}, stageArgs(t, set))
}

func TestAggregationSet_Errors(t *testing.T) {
	base := New[person](people)

	tests := []struct {
		name  string
		build interface{ Build() (core.Command, error) }
	}{
		{"unknown field in apply", base.Apply(expr.Field("Nope"), "x")},
		{"empty alias", base.Apply(name, "")},
		{"unknown reference", base.OrderBy(expr.Ref("Missing"))},
		{"unknown group field", base.GroupBy(expr.Field("Nope"))},
		{"unsupported function", base.Apply(expr.Call(name, "Reverse"), "r")},
		{"bad where", base.Where(expr.LessThan(tagField, expr.Lit(1)))},
		{"negative take", base.Take(-1)},
		{"sort key on a plain reducer", base.Reduce(Sum(sales).By(age))},
		{"error is kept by later calls", base.Apply(expr.Field("Nope"), "x").OrderBy(age).LoadAll()},
		{"empty load", base.Load(expr.New())},
		{"no index", New[person](nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build.Build()
			assert.True(t, core.IsCompileError(err), "got %v", err)
		})
	}
}
