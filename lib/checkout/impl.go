package checkout

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("checkout")

// Options configures a checkout manager
type Options struct {
	// ConflictRetries is the number of additional read-resolve-write cycles of a check-in
	// after a conflicting write
	ConflictRetries int
	// MaxContainerDepth is the maximum number of parent lookups to find the project of an entity
	MaxContainerDepth int
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		ConflictRetries:   1,
		MaxContainerDepth: 32,
	}
}

type managerImpl struct {
	session Session
	opts    Options
	tables  *xsync.MapOf[string, db.Entity] // project id -> log table
}

// NewCheckoutManager creates a checkout manager for a session.
// The manager remembers the log table of every project it has seen.
func NewCheckoutManager(session Session, opts Options) ICheckoutManager {
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	if opts.MaxContainerDepth <= 0 {
		opts.MaxContainerDepth = DefaultOptions().MaxContainerDepth
	}
	return &managerImpl{
		session: session,
		opts:    opts,
		tables:  xsync.NewMapOf[string, db.Entity](),
	}
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// prepare resolves the entity, its project and the log table of the project.
// Non-lockable entities are refused before the project is loaded.
func (m *managerImpl) prepare(entityID string, op string) (Result, error) {
	var res Result

	log.Debugf("Loading entity %s", entityID)
	e, err := LoadEntity(m.session.store, entityID)
	if err != nil {
		return res, err
	}
	res.Entity = e
	if !Lockable(e.Kind) {
		return res, &NotLockableError{Entity: e}
	}

	log.Debugf("Loading project of %s", e)
	container, err := ResolveContainer(m.session.store, e, m.opts.MaxContainerDepth)
	if err != nil {
		return res, err
	}
	res.Container = container
	log.Infof("%s %s from %s", op, e, container)

	if table, ok := m.tables.Load(container.ID); ok {
		res.Table = table
		return res, nil
	}
	table, err := EnsureLogTable(m.session.store, container)
	if err != nil {
		return res, err
	}
	m.tables.Store(container.ID, table)
	res.Table = table
	return res, nil
}

// loadLog reads the whole log table ordered by check-out time.
// The headers are checked before sorting, a table without the expected
// columns is reported as ErrSchemaMismatch.
func (m *managerImpl) loadLog(table db.Entity, descending bool) (db.RowSet, error) {
	set, err := m.session.store.QueryTable(table.ID, db.Query{})
	if err != nil {
		return db.RowSet{}, classify("load log", err)
	}
	if _, err := newColumnIndex(set.Headers); err != nil {
		return db.RowSet{}, fmt.Errorf("load log of %s: %w", table, err)
	}
	if err := db.SortRows(set.Headers, set.Rows, db.Query{OrderBy: ColCheckedOut, Descending: descending}); err != nil {
		return db.RowSet{}, classify("sort log", err)
	}
	return set, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see checkout/interface.go)
// --------------------------------------------------------------------------

func (m *managerImpl) Checkout(entityID string) (Result, error) {
	res, err := m.prepare(entityID, "Checking out")
	if err != nil {
		return res, err
	}

	set, err := m.loadLog(res.Table, false)
	if err != nil {
		return res, err
	}
	lock, err := FindOpenLock(set, entityID, m.session.user, false)
	if err != nil {
		return res, err
	}
	if lock.Found {
		res.Record = lock.Record
		return res, ErrAlreadyLocked
	}

	res.Record = LockRecord{
		User:         m.session.user,
		Entity:       entityID,
		CheckedOutAt: m.session.now(),
	}

	// unconditional append, an insert can not conflict with an update
	ci, err := newColumnIndex(set.Headers)
	if err != nil {
		return res, err
	}
	_, err = m.session.store.StoreRows(res.Table.ID, db.RowSet{
		TableID: res.Table.ID,
		Headers: set.Headers,
		Rows:    []db.Row{{Values: ci.encode(res.Record, nil)}},
	})
	if err != nil {
		return res, classify("append lock", err)
	}
	return res, nil
}

func (m *managerImpl) Checkin(entityID string, message string, force bool) (Result, error) {
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return Result{}, ErrMessageTooLong
	}
	if force {
		log.Debugf("force is ignored, only the user who checked out %s can check it in", entityID)
	}

	res, err := m.prepare(entityID, "Checking in")
	if err != nil {
		return res, err
	}

	for attempt := 0; ; attempt++ {
		set, err := m.loadLog(res.Table, false)
		if err != nil {
			return res, err
		}
		lock, err := FindOpenLock(set, entityID, m.session.user, true)
		if err != nil {
			return res, err
		}
		if !lock.Found {
			return res, ErrNoOpenLock
		}

		ci, err := newColumnIndex(lock.Headers)
		if err != nil {
			return res, err
		}
		rec := lock.Record
		now := m.session.now()
		rec.CheckedInAt = &now
		if message != "" {
			msg := message
			rec.Message = &msg
		}

		log.Debugf("Updating table %s (row %d)", res.Table, lock.Row.ID)
		_, err = m.session.store.StoreRows(res.Table.ID, db.RowSet{
			TableID: res.Table.ID,
			Headers: lock.Headers,
			Rows:    []db.Row{{ID: lock.Row.ID, Values: ci.encode(rec, lock.Row.Values)}},
			Etag:    lock.Etag,
		})
		if err == nil {
			res.Record = rec
			return res, nil
		}

		err = classify("check in", err)
		if !errors.Is(err, ErrConflict) || attempt >= m.opts.ConflictRetries {
			return res, err
		}
		log.Infof("Log table %s changed concurrently, retrying (%d/%d)", res.Table, attempt+1, m.opts.ConflictRetries)
	}
}

func (m *managerImpl) Log(entityID string, showAll bool) ([]LockRecord, error) {
	res, err := m.prepare(entityID, "Showing log of")
	if err != nil {
		return nil, err
	}

	set, err := m.loadLog(res.Table, true)
	if err != nil {
		return nil, err
	}
	ci, err := newColumnIndex(set.Headers)
	if err != nil {
		return nil, err
	}

	records := make([]LockRecord, 0, len(set.Rows))
	for _, row := range set.Rows {
		rec, err := ci.decode(row)
		if err != nil {
			return nil, err
		}
		if showAll || rec.Entity == entityID {
			records = append(records, rec)
		}
	}
	return records, nil
}

// String returns a one line description of a record
func (r LockRecord) String() string {
	state := "open"
	if r.CheckedInAt != nil {
		state = "checked in " + r.CheckedInAt.Format(timeLayout)
	}
	return fmt.Sprintf("%s by %s since %s (%s)", r.Entity, r.User, r.CheckedOutAt.Format(timeLayout), state)
}
