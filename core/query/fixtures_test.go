package query

import "github.com/asaidimu/go-ftquery/core/schema"

var people = schema.MustIndex("people-idx",
	schema.Field("Name", schema.KindText),
	schema.Field("TagField", schema.KindTag),
	schema.Field("Age", schema.KindNumeric).AsSortable(),
	schema.Field("Height", schema.KindNumeric),
	schema.Field("Sales", schema.KindNumeric),
	schema.Field("Created", schema.KindNumeric),
	schema.Field("Active", schema.KindTag),
	schema.Field("Address.State", schema.KindTag),
	schema.Field("Address.City", schema.KindText),
	schema.Field("Home", schema.KindGeo),
	schema.Field("Embedding", schema.KindVector),
)
