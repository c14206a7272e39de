package db

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

// Kind is the type of entity in the workspace hierarchy.
type Kind string

const (
	KindProject Kind = "Project" // Root container, owns tables
	KindFolder  Kind = "Folder"  // Container item
	KindFile    Kind = "File"    // Container item
	KindTable   Kind = "Table"   // Table entity, holds rows
)

// ParseKind converts a (case-insensitive) string to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "project":
		return KindProject, nil
	case "folder":
		return KindFolder, nil
	case "file":
		return KindFile, nil
	case "table":
		return KindTable, nil
	default:
		return "", fmt.Errorf("invalid entity kind %q (expected one of: project, folder, file, table)", s)
	}
}

// Entity is a node in the workspace hierarchy.
// Every entity except projects has a parent.
type Entity struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// String returns the entity in the form "Kind name (id)"
func (e Entity) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Kind, e.Name, e.ID)
}

// --------------------------------------------------------------------------
// Tables
// --------------------------------------------------------------------------

// ColumnType is the type of table column
type ColumnType string

const (
	ColumnTUserID   ColumnType = "USERID"   // Identity of a user, never empty
	ColumnTEntityID ColumnType = "ENTITYID" // Identity of an entity, never empty
	ColumnTDate     ColumnType = "DATE"     // Milliseconds since epoch (UTC) as a base 10 integer
	ColumnTString   ColumnType = "STRING"   // String bounded by Column.MaxSize (in characters)
)

// Column describes a single table column
type Column struct {
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	MaxSize int        `json:"max_size,omitempty"` // only used for STRING columns, 0 means unbounded
}

// Schema is the definition of a table
type Schema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnIndex returns the position of the column with the given name or -1
func ColumnIndex(columns []Column, name string) int {
	for i, c := range columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value is a single table cell. Null marks an absent value.
type Value struct {
	V    string `json:"v,omitempty"`
	Null bool   `json:"null,omitempty"`
}

// StringValue creates a non-null value
func StringValue(s string) Value {
	return Value{V: s}
}

// NullValue creates an absent value
func NullValue() Value {
	return Value{Null: true}
}

// Row is a single table row.
// A Row with ID 0 has not been stored yet and will be appended on write.
type Row struct {
	ID     uint64  `json:"id,omitempty"`
	Values []Value `json:"values"`
}

// Copy returns a deep copy of the row
func (r Row) Copy() Row {
	values := make([]Value, len(r.Values))
	copy(values, r.Values)
	return Row{ID: r.ID, Values: values}
}

// RowSet is the result of a table query and the payload of a table write.
//
// On read, Etag is the version token of the table at the time of the query.
// On write, a non-empty Etag makes the write conditional: it is rejected
// with RetCConflict if the table changed in the meantime. Headers name the
// columns in the order of the row values.
type RowSet struct {
	TableID string   `json:"table_id"`
	Headers []Column `json:"headers"`
	Rows    []Row    `json:"rows"`
	Etag    string   `json:"etag,omitempty"`
}

// Query describes the ordering of a table query.
// An empty OrderBy returns the rows in insertion order.
type Query struct {
	OrderBy    string `json:"order_by,omitempty"`
	Descending bool   `json:"descending,omitempty"`
}
