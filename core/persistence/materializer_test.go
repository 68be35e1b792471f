package persistence

import (
	"errors"
	"testing"

	"github.com/asaidimu/go-ftquery/core"
	"github.com/asaidimu/go-ftquery/core/reply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	t.Run("pairs in wire order", func(t *testing.T) {
		rec, err := ParseRecord(record("Name", "Bob", "Age", "33"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Name", "Age"}, rec.Names)
		assert.Equal(t, core.Document{"Name": "Bob", "Age": "33"}, rec.Document())
	})

	t.Run("odd length", func(t *testing.T) {
		_, err := ParseRecord(record("Name", "Bob", "Age"))
		var perr *core.ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "record", perr.Context)
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := ParseRecord(reply.Str("Name"))
		assert.True(t, core.IsProtocolError(err))
	})

	t.Run("array as field name", func(t *testing.T) {
		_, err := ParseRecord(reply.Array(reply.Array(), reply.Str("x")))
		assert.True(t, core.IsProtocolError(err))
	})
}

func TestParseAggregateBatch(t *testing.T) {
	t.Run("cursor framing", func(t *testing.T) {
		records, cursor, err := ParseAggregateBatch(batch(42, record("a", "1"), record("a", "2")), true)
		require.NoError(t, err)
		assert.Equal(t, int64(42), cursor)
		require.Len(t, records, 2)
		assert.Equal(t, "2", records[1].Document()["a"])
	})

	t.Run("plain framing", func(t *testing.T) {
		records, cursor, err := ParseAggregateBatch(reply.Array(reply.Int(1), record("a", "1")), false)
		require.NoError(t, err)
		assert.Zero(t, cursor)
		assert.Len(t, records, 1)
	})

	t.Run("empty batch", func(t *testing.T) {
		records, cursor, err := ParseAggregateBatch(batch(7), true)
		require.NoError(t, err)
		assert.Equal(t, int64(7), cursor)
		assert.Empty(t, records)
	})

	bad := []struct {
		name  string
		reply reply.Reply
	}{
		{"missing cursor", reply.Array(reply.Array(reply.Int(0)))},
		{"string cursor", reply.Array(reply.Array(reply.Int(0)), reply.Str("x"))},
		{"missing count", reply.Array(reply.Array(), reply.Int(0))},
		{"non integer count", reply.Array(reply.Array(reply.Str("n")), reply.Int(0))},
		{"bad record", reply.Array(reply.Array(reply.Int(1), record("a")), reply.Int(0))},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseAggregateBatch(tc.reply, true)
			assert.True(t, core.IsProtocolError(err), "got %v", err)
		})
	}
}

func TestParseSearch(t *testing.T) {
	t.Run("keys with fields", func(t *testing.T) {
		total, records, err := ParseSearch(reply.Array(
			reply.Int(12),
			reply.Str("person:1"), record("Name", "Bob"),
			reply.Str("person:2"), record("Name", "Alice"),
		))
		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
		require.Len(t, records, 2)
		assert.Equal(t, "person:2", records[1].Key)
		assert.Equal(t, "Alice", records[1].Document()["Name"])
	})

	t.Run("keys only", func(t *testing.T) {
		total, records, err := ParseSearch(reply.Array(reply.Int(2), reply.Str("a"), reply.Str("b")))
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, records, 2)
		assert.Equal(t, "b", records[1].Key)
		assert.Empty(t, records[1].Values)
	})

	t.Run("count only", func(t *testing.T) {
		total, records, err := ParseSearch(reply.Array(reply.Int(5)))
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Empty(t, records)
	})

	t.Run("missing total", func(t *testing.T) {
		_, _, err := ParseSearch(reply.Array(reply.Str("a")))
		assert.True(t, core.IsProtocolError(err))
	})
}

func TestAggregationResult(t *testing.T) {
	mat := NewMaterializer[person](people)
	rec, err := ParseRecord(reply.Array(
		reply.Str("Name"), reply.Str("Bob"),
		reply.Str("Age"), reply.Str("33"),
		reply.Str("Address_State"), reply.Str("FL"),
		reply.Str("Age_SUM"), reply.Double(66.5),
	))
	require.NoError(t, err)

	res := mat.Aggregation(rec)

	assert.Equal(t, "Bob", res.Record.Name)
	assert.Equal(t, 33, res.Record.Age)
	assert.Equal(t, "FL", res.Record.Address.State)

	assert.Equal(t, []string{"Name", "Age", "Address_State", "Age_SUM"}, res.Names())
	assert.True(t, res.Has("Age_SUM"))

	sum, err := res.Float64("Age_SUM")
	require.NoError(t, err)
	assert.InDelta(t, 66.5, sum, 1e-9)

	n, err := res.Int64("Age")
	require.NoError(t, err)
	assert.Equal(t, int64(33), n)

	s, err := res.String("Address_State")
	require.NoError(t, err)
	assert.Equal(t, "FL", s)

	_, err = res.Get("Missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = res.Float64("Missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = res.Int64("Name")
	assert.ErrorIs(t, err, reply.ErrConversion)
}

func TestMaterializer_PartialShell(t *testing.T) {
	mat := NewMaterializer[person](people)
	rec, err := ParseRecord(record("Age", "not-a-number", "Name", "Bob"))
	require.NoError(t, err)

	res := mat.Aggregation(rec)
	assert.Equal(t, "Bob", res.Record.Name)
	assert.Zero(t, res.Record.Age)
	s, err := res.String("Age")
	require.NoError(t, err)
	assert.Equal(t, "not-a-number", s)
}

func TestMaterializer_Search(t *testing.T) {
	mat := NewMaterializer[person](people)
	hit := mat.Search(RawRecord{Key: "person:1", Values: map[string]reply.Reply{"Name": reply.Str("Bob")}})
	assert.Equal(t, "person:1", hit.Key)
	assert.Equal(t, "Bob", hit.Record.Name)
	assert.Equal(t, core.Document{"Name": "Bob"}, hit.Fields)
}
