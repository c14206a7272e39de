package checkout

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// --------------------------------------------------------------------------
// Log Table Schema
// --------------------------------------------------------------------------

// LogTableName is the reserved name of the log table below every project
const LogTableName = "checkout_log"

// Column names of the log table
const (
	ColUser       = "user"
	ColEntity     = "entity"
	ColCheckedOut = "checked_out"
	ColCheckedIn  = "checked_in"
	ColMessage    = "message"
)

// MaxMessageLength is the maximum length of a check-in message in characters
const MaxMessageLength = 1000

// LogSchema returns the schema of the log table
func LogSchema() db.Schema {
	return db.Schema{
		Name: LogTableName,
		Columns: []db.Column{
			{Name: ColUser, Type: db.ColumnTUserID},
			{Name: ColEntity, Type: db.ColumnTEntityID},
			{Name: ColCheckedOut, Type: db.ColumnTDate},
			{Name: ColCheckedIn, Type: db.ColumnTDate},
			{Name: ColMessage, Type: db.ColumnTString, MaxSize: MaxMessageLength},
		},
	}
}

// --------------------------------------------------------------------------
// Lock Records
// --------------------------------------------------------------------------

// LockRecord is a single row of the log table.
// A record without CheckedInAt is an open lock.
type LockRecord struct {
	User         string
	Entity       string
	CheckedOutAt time.Time
	CheckedInAt  *time.Time
	Message      *string
}

// Open reports whether the record is an open lock
func (r LockRecord) Open() bool {
	return r.CheckedInAt == nil
}

// columnIndex holds the positions of the log columns in a header list.
// It is built once per table load, rows are then decoded by position.
type columnIndex struct {
	user, entity, checkedOut, checkedIn, message int
	width                                        int
}

// newColumnIndex validates headers against the log schema
func newColumnIndex(headers []db.Column) (columnIndex, error) {
	ci := columnIndex{width: len(headers)}
	for _, c := range []struct {
		name string
		pos  *int
	}{
		{ColUser, &ci.user},
		{ColEntity, &ci.entity},
		{ColCheckedOut, &ci.checkedOut},
		{ColCheckedIn, &ci.checkedIn},
		{ColMessage, &ci.message},
	} {
		*c.pos = db.ColumnIndex(headers, c.name)
		if *c.pos < 0 {
			return columnIndex{}, fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, c.name)
		}
	}
	return ci, nil
}

// decode converts a row into a LockRecord
func (ci columnIndex) decode(row db.Row) (LockRecord, error) {
	if len(row.Values) != ci.width {
		return LockRecord{}, fmt.Errorf("%w: row %d has %d values, expected %d", ErrSchemaMismatch, row.ID, len(row.Values), ci.width)
	}

	rec := LockRecord{
		User:   row.Values[ci.user].V,
		Entity: row.Values[ci.entity].V,
	}

	checkedOut, err := fromMillis(row.Values[ci.checkedOut])
	if err != nil {
		return LockRecord{}, fmt.Errorf("%w: row %d: %v", ErrSchemaMismatch, row.ID, err)
	}
	if checkedOut != nil {
		rec.CheckedOutAt = *checkedOut
	}
	if rec.CheckedInAt, err = fromMillis(row.Values[ci.checkedIn]); err != nil {
		return LockRecord{}, fmt.Errorf("%w: row %d: %v", ErrSchemaMismatch, row.ID, err)
	}
	if v := row.Values[ci.message]; !v.Null {
		msg := v.V
		rec.Message = &msg
	}
	return rec, nil
}

// encode writes a LockRecord into a row of the given width.
// Values of columns unknown to the log schema are taken from base (may be nil).
func (ci columnIndex) encode(rec LockRecord, base []db.Value) []db.Value {
	values := make([]db.Value, ci.width)
	for i := range values {
		if i < len(base) {
			values[i] = base[i]
		} else {
			values[i] = db.NullValue()
		}
	}
	values[ci.user] = db.StringValue(rec.User)
	values[ci.entity] = db.StringValue(rec.Entity)
	values[ci.checkedOut] = toMillis(&rec.CheckedOutAt)
	values[ci.checkedIn] = toMillis(rec.CheckedInAt)
	if rec.Message != nil {
		values[ci.message] = db.StringValue(*rec.Message)
	} else {
		values[ci.message] = db.NullValue()
	}
	return values
}

// toMillis encodes a timestamp as milliseconds since epoch, nil as null
func toMillis(t *time.Time) db.Value {
	if t == nil {
		return db.NullValue()
	}
	return db.StringValue(strconv.FormatInt(t.UnixMilli(), 10))
}

// fromMillis decodes a DATE value, null as nil
func fromMillis(v db.Value) (*time.Time, error) {
	if v.Null {
		return nil, nil
	}
	ms, err := strconv.ParseInt(v.V, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", v.V)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
