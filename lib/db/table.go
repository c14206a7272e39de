package db

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Helper functions shared by all WorkspaceDB implementations
// --------------------------------------------------------------------------

// etagNamespace is the namespace for the name based (SHA-1) etag UUIDs
var etagNamespace = uuid.MustParse("5f0c2a36-4c1e-4f0e-9d1a-6b1c9a2f7e41")

// Etag returns the etag for a table version.
// Etags are derived from the table id and version only, so every replica
// that applied the same writes computes the same etag.
func Etag(tableID string, version uint64) string {
	return uuid.NewSHA1(etagNamespace, []byte(tableID+"/"+strconv.FormatUint(version, 10))).String()
}

// GenerateEntityID returns the id for an entity created at the given write index
func GenerateEntityID(writeIndex uint64) string {
	return "ent" + strconv.FormatUint(writeIndex, 10)
}

// ValidateEntity checks if an entity can be created below the given parent.
func ValidateEntity(e Entity, parent Entity, parentFound bool) error {
	if e.Name == "" {
		return NewError(RetCInvalidOperation, "entity name must not be empty")
	}
	switch e.Kind {
	case KindProject:
		if e.ParentID != "" {
			return Errorf(RetCInvalidOperation, "project %s must not have a parent", e.Name)
		}
		return nil
	case KindFolder, KindFile:
	case KindTable:
		return NewError(RetCInvalidOperation, "tables must be created with CreateTable")
	default:
		return Errorf(RetCInvalidOperation, "invalid entity kind %q", e.Kind)
	}
	if e.ParentID == "" {
		return Errorf(RetCInvalidOperation, "%s %s needs a parent", e.Kind, e.Name)
	}
	if !parentFound {
		return Errorf(RetCNotFound, "parent %s not found", e.ParentID)
	}
	if parent.Kind != KindProject && parent.Kind != KindFolder {
		return Errorf(RetCInvalidOperation, "%s can not have children", parent)
	}
	return nil
}

// ValidateTableParent checks if a table can be created below the given parent.
func ValidateTableParent(parent Entity, parentFound bool, parentID string) error {
	if !parentFound {
		return Errorf(RetCNotFound, "parent %s not found", parentID)
	}
	if parent.Kind != KindProject && parent.Kind != KindFolder {
		return Errorf(RetCInvalidOperation, "%s can not have tables", parent)
	}
	return nil
}

// ValidateSchema checks a table definition
func ValidateSchema(s Schema) error {
	if s.Name == "" {
		return NewError(RetCInvalidOperation, "table name must not be empty")
	}
	if len(s.Columns) == 0 {
		return Errorf(RetCInvalidOperation, "table %s has no columns", s.Name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return Errorf(RetCInvalidOperation, "table %s has a column without name", s.Name)
		}
		if seen[c.Name] {
			return Errorf(RetCInvalidOperation, "table %s has duplicate column %s", s.Name, c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case ColumnTUserID, ColumnTEntityID, ColumnTDate, ColumnTString:
		default:
			return Errorf(RetCInvalidOperation, "column %s has invalid type %q", c.Name, c.Type)
		}
		if c.MaxSize < 0 {
			return Errorf(RetCInvalidOperation, "column %s has negative max size", c.Name)
		}
	}
	return nil
}

// ValidateValue checks if a value can be stored in a column
func ValidateValue(c Column, v Value) error {
	if v.Null {
		return nil
	}
	switch c.Type {
	case ColumnTUserID, ColumnTEntityID:
		if v.V == "" {
			return Errorf(RetCInvalidOperation, "column %s: empty %s, use a null value instead", c.Name, c.Type)
		}
	case ColumnTDate:
		if _, err := strconv.ParseInt(v.V, 10, 64); err != nil {
			return Errorf(RetCInvalidOperation, "column %s: invalid date %q", c.Name, v.V)
		}
	case ColumnTString:
		if c.MaxSize > 0 && utf8.RuneCountInString(v.V) > c.MaxSize {
			return Errorf(RetCInvalidOperation, "column %s: value exceeds %d characters", c.Name, c.MaxSize)
		}
	}
	return nil
}

// RowChanges is the result of ApplyRows
type RowChanges struct {
	Rows    []Row  // all rows of the table after the write (sorted by id)
	Changed []Row  // appended and updated rows
	NextID  uint64 // the next free row id
}

// ApplyRows validates a write against a table and computes the resulting rows.
// The input rows are not modified. The etag check is left to the caller.
func ApplyRows(schema Schema, rows []Row, nextID uint64, set RowSet) (RowChanges, error) {
	// map the headers of the write to the schema columns
	positions := make([]int, len(set.Headers))
	used := make(map[int]bool, len(set.Headers))
	for i, h := range set.Headers {
		pos := ColumnIndex(schema.Columns, h.Name)
		if pos < 0 {
			return RowChanges{}, Errorf(RetCInvalidOperation, "table %s has no column %s", schema.Name, h.Name)
		}
		if used[pos] {
			return RowChanges{}, Errorf(RetCInvalidOperation, "duplicate header %s", h.Name)
		}
		used[pos] = true
		positions[i] = pos
	}

	// index existing rows by id
	result := make([]Row, len(rows))
	index := make(map[uint64]int, len(rows))
	for i, r := range rows {
		result[i] = r.Copy()
		index[r.ID] = i
	}
	if nextID == 0 {
		nextID = 1
	}

	changed := make([]Row, 0, len(set.Rows))
	for _, r := range set.Rows {
		if len(r.Values) != len(set.Headers) {
			return RowChanges{}, Errorf(RetCInvalidOperation, "row has %d values, expected %d", len(r.Values), len(set.Headers))
		}
		for i, v := range r.Values {
			if err := ValidateValue(schema.Columns[positions[i]], v); err != nil {
				return RowChanges{}, err
			}
		}

		// Case append
		if r.ID == 0 {
			values := make([]Value, len(schema.Columns))
			for i := range values {
				values[i] = NullValue()
			}
			for i, v := range r.Values {
				values[positions[i]] = v
			}
			row := Row{ID: nextID, Values: values}
			nextID++
			index[row.ID] = len(result)
			result = append(result, row)
			changed = append(changed, row.Copy())
			continue
		}

		// Case update
		if set.Etag == "" {
			return RowChanges{}, Errorf(RetCInvalidOperation, "update of row %d requires an etag", r.ID)
		}
		idx, ok := index[r.ID]
		if !ok {
			return RowChanges{}, Errorf(RetCNotFound, "row %d not found in table %s", r.ID, schema.Name)
		}
		for i, v := range r.Values {
			result[idx].Values[positions[i]] = v
		}
		changed = append(changed, result[idx].Copy())
	}

	return RowChanges{Rows: result, Changed: changed, NextID: nextID}, nil
}

// SortRows sorts rows in place according to the query.
// DATE columns are compared numerically, all other columns lexicographically.
// Null values sort first. Ties are broken by row id.
func SortRows(columns []Column, rows []Row, q Query) error {
	if q.OrderBy == "" {
		sort.SliceStable(rows, func(i, j int) bool {
			if q.Descending {
				return rows[i].ID > rows[j].ID
			}
			return rows[i].ID < rows[j].ID
		})
		return nil
	}

	pos := ColumnIndex(columns, q.OrderBy)
	if pos < 0 {
		return Errorf(RetCInvalidOperation, "unknown order column %s", q.OrderBy)
	}
	numeric := columns[pos].Type == ColumnTDate

	less := func(a, b Row) bool {
		va, vb := a.Values[pos], b.Values[pos]
		if c := compareValues(va, vb, numeric); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if q.Descending {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
	return nil
}

// compareValues returns -1, 0 or 1
func compareValues(a, b Value, numeric bool) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return -1
	case b.Null:
		return 1
	}
	if numeric {
		ia, errA := strconv.ParseInt(a.V, 10, 64)
		ib, errB := strconv.ParseInt(b.V, 10, 64)
		if errA == nil && errB == nil {
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			default:
				return 0
			}
		}
	}
	switch {
	case a.V < b.V:
		return -1
	case a.V > b.V:
		return 1
	default:
		return 0
	}
}

// CopyColumns returns a copy of the column slice
func CopyColumns(columns []Column) []Column {
	c := make([]Column, len(columns))
	copy(c, columns)
	return c
}

// String returns a short description of the query
func (q Query) String() string {
	if q.OrderBy == "" {
		return "insertion order"
	}
	dir := "asc"
	if q.Descending {
		dir = "desc"
	}
	return fmt.Sprintf("order by %s %s", q.OrderBy, dir)
}
