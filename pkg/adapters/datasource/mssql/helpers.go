package mssql

import (
	"fmt"
	"strings"
)

// quoteName quotes an identifier the way QUOTENAME() does: [name] with ] doubled.
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// buildFullyQualifiedName builds a fully qualified table name: [schema].[table]
func buildFullyQualifiedName(schema, table string) string {
	if schema == "" {
		schema = "dbo"
	}
	return quoteName(schema) + "." + quoteName(table)
}

// formatType renders a sys.types name with its length or precision, e.g.
// nvarchar(255), decimal(10,2), varbinary(max). maxLength is in bytes as stored
// in sys.columns; -1 means max.
func formatType(typeName string, maxLength, precision, scale int) string {
	name := strings.ToLower(typeName)
	switch name {
	case "varchar", "char", "varbinary", "binary":
		if maxLength == -1 {
			return name + "(max)"
		}
		return fmt.Sprintf("%s(%d)", name, maxLength)
	case "nvarchar", "nchar":
		if maxLength == -1 {
			return name + "(max)"
		}
		return fmt.Sprintf("%s(%d)", name, maxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", name, precision, scale)
	case "datetime2", "time", "datetimeoffset":
		return fmt.Sprintf("%s(%d)", name, scale)
	}
	return name
}
