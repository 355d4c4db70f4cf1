package schema

import "github.com/tordrt/catalogsync/internal/metadata"

// FallbackType is used for data types this version does not know about
const FallbackType = "text"

var physicalTypes = map[metadata.DataType]string{
	metadata.DataTypeString:   "text",
	metadata.DataTypeNumber:   "numeric",
	metadata.DataTypeBoolean:  "boolean",
	metadata.DataTypeDate:     "date",
	metadata.DataTypeDateTime: "timestamptz",
	metadata.DataTypeRef:      "uuid",
	metadata.DataTypeJSON:     "jsonb",
}

// MapDataType returns the PostgreSQL column type for an attribute data type.
//
// Unknown types map to FallbackType instead of failing, so metadata written by a
// newer platform release can still be materialized by an older engine.
func MapDataType(dt metadata.DataType) string {
	if t, ok := physicalTypes[dt]; ok {
		return t
	}
	return FallbackType
}
