package checkout_test

import (
	"bytes"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCheck/lib/checkout"
	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/db/engines/memdb"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/lib/store/lstore"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// workspace is a small hierarchy: project > folder > file, plus a second file
type workspace struct {
	store   *interceptStore
	project db.Entity
	folder  db.Entity
	file    db.Entity
	other   db.Entity
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	s := &interceptStore{IStore: lstore.NewLocalStore(func() db.WorkspaceDB { return memdb.NewMemDB() })}

	mk := func(name string, kind db.Kind, parent string) db.Entity {
		e, err := s.CreateEntity(db.Entity{Name: name, Kind: kind, ParentID: parent})
		require.NoError(t, err)
		return e
	}
	w := &workspace{store: s}
	w.project = mk("demo", db.KindProject, "")
	w.folder = mk("src", db.KindFolder, w.project.ID)
	w.file = mk("main.go", db.KindFile, w.folder.ID)
	w.other = mk("README.md", db.KindFile, w.project.ID)
	return w
}

// stepClock returns a clock starting at start that advances by one minute per call
func stepClock(start time.Time) checkout.Clock {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(time.Minute)
		return t
	}
}

func (w *workspace) manager(user string, clock checkout.Clock) checkout.ICheckoutManager {
	return w.managerWith(user, clock, checkout.DefaultOptions())
}

func (w *workspace) managerWith(user string, clock checkout.Clock, opts checkout.Options) checkout.ICheckoutManager {
	return checkout.NewCheckoutManager(checkout.NewSession(user, w.store, checkout.WithClock(clock)), opts)
}

// rows returns the raw log of the project in insertion order (nil if there is no log table yet)
func (w *workspace) rows(t *testing.T) []db.Row {
	t.Helper()
	tables, err := w.store.ListChildren(w.project.ID, db.KindTable)
	require.NoError(t, err)
	for _, table := range tables {
		if table.Name == checkout.LogTableName {
			set, err := w.store.QueryTable(table.ID, db.Query{})
			require.NoError(t, err)
			return set.Rows
		}
	}
	return nil
}

func openRows(rows []db.Row) int {
	n := 0
	for _, r := range rows {
		if r.Values[3].Null {
			n++
		}
	}
	return n
}

// interceptStore counts writes and can run an action right before the next StoreRows call
type interceptStore struct {
	store.IStore
	mu          sync.Mutex
	beforeWrite func()
	writes      int
	creates     int
}

func (s *interceptStore) StoreRows(tableID string, set db.RowSet) (string, error) {
	s.mu.Lock()
	s.writes++
	f := s.beforeWrite
	s.beforeWrite = nil
	s.mu.Unlock()
	if f != nil {
		f()
	}
	return s.IStore.StoreRows(tableID, set)
}

func (s *interceptStore) CreateTable(parentID string, schema db.Schema) (db.Entity, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.IStore.CreateTable(parentID, schema)
}

func (s *interceptStore) interceptNextWrite(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeWrite = f
}

// --------------------------------------------------------------------------
// Properties
// --------------------------------------------------------------------------

func TestCheckoutCheckinRoundTrip(t *testing.T) {
	w := newWorkspace(t)
	mgr := w.manager("alice", stepClock(t0))

	for _, e := range []db.Entity{w.folder, w.file} {
		_, err := mgr.Checkout(e.ID)
		require.NoError(t, err)
		_, err = mgr.Checkin(e.ID, "", false)
		require.NoError(t, err)
	}

	rows := w.rows(t)
	assert.Len(t, rows, 2)
	assert.Equal(t, 0, openRows(rows))

	// the entity can be checked out again after a check-in
	_, err := mgr.Checkout(w.file.ID)
	assert.NoError(t, err)
}

func TestCheckoutTwiceIsRefused(t *testing.T) {
	for _, second := range []string{"alice", "bob"} {
		t.Run("second by "+second, func(t *testing.T) {
			w := newWorkspace(t)
			clock := stepClock(t0)

			first, err := w.manager("alice", clock).Checkout(w.file.ID)
			require.NoError(t, err)

			res, err := w.manager(second, clock).Checkout(w.file.ID)
			assert.ErrorIs(t, err, checkout.ErrAlreadyLocked)
			assert.True(t, checkout.IsBenign(err))
			assert.Equal(t, first.Record, res.Record)

			rows := w.rows(t)
			assert.Len(t, rows, 1)
			assert.Equal(t, 1, openRows(rows))
		})
	}
}

func TestCheckinOnlyByOwner(t *testing.T) {
	w := newWorkspace(t)
	clock := stepClock(t0)

	_, err := w.manager("alice", clock).Checkout(w.file.ID)
	require.NoError(t, err)
	writes := w.store.writes

	_, err = w.manager("bob", clock).Checkin(w.file.ID, "not mine", true)
	assert.ErrorIs(t, err, checkout.ErrNoOpenLock)
	assert.Equal(t, writes, w.store.writes, "no write expected")

	records, err := w.manager("bob", clock).Log(w.file.ID, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Open())
	assert.Equal(t, "alice", records[0].User)
}

func TestCheckinWithoutLock(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.manager("alice", stepClock(t0)).Checkin(w.file.ID, "", false)
	assert.ErrorIs(t, err, checkout.ErrNoOpenLock)
	assert.Equal(t, 0, w.store.writes)
}

func TestConcurrentCheckinConflict(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		wantErr error
	}{
		{"without retry", 0, checkout.ErrConflict},
		{"retry finds the lock closed", 1, checkout.ErrNoOpenLock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t)
			opts := checkout.DefaultOptions()
			opts.ConflictRetries = tt.retries

			_, err := w.manager("alice", stepClock(t0)).Checkout(w.file.ID)
			require.NoError(t, err)

			// two processes of the same user resolve the same open lock
			slow := w.managerWith("alice", stepClock(t0.Add(time.Hour)), opts)
			fast := w.managerWith("alice", stepClock(t0.Add(time.Minute)), opts)

			var fastErr error
			w.store.interceptNextWrite(func() {
				_, fastErr = fast.Checkin(w.file.ID, "fast", false)
			})
			_, err = slow.Checkin(w.file.ID, "slow", false)
			require.NoError(t, fastErr)
			assert.ErrorIs(t, err, tt.wantErr)
			if errors.Is(tt.wantErr, checkout.ErrConflict) {
				assert.True(t, checkout.IsRetryable(err))
			}

			records, err := w.manager("alice", stepClock(t0)).Log(w.file.ID, false)
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.NotNil(t, records[0].CheckedInAt)
			assert.Equal(t, t0.Add(time.Minute), *records[0].CheckedInAt)
			require.NotNil(t, records[0].Message)
			assert.Equal(t, "fast", *records[0].Message)
		})
	}
}

func TestCheckinRetrySucceeds(t *testing.T) {
	w := newWorkspace(t)
	clock := stepClock(t0)
	alice := w.manager("alice", clock)

	_, err := alice.Checkout(w.file.ID)
	require.NoError(t, err)

	// an unrelated append between read and write invalidates the etag
	w.store.interceptNextWrite(func() {
		_, err := w.manager("bob", clock).Checkout(w.other.ID)
		require.NoError(t, err)
	})
	res, err := alice.Checkin(w.file.ID, "done", false)
	require.NoError(t, err)
	assert.False(t, res.Record.Open())

	rows := w.rows(t)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, openRows(rows))
}

func TestNotLockableKind(t *testing.T) {
	w := newWorkspace(t)
	mgr := w.manager("alice", stepClock(t0))

	_, err := mgr.Checkout(w.project.ID)
	var nle *checkout.NotLockableError
	require.ErrorAs(t, err, &nle)
	assert.Equal(t, w.project, nle.Entity)
	assert.ErrorIs(t, err, checkout.ErrNotLockableKind)

	_, err = mgr.Checkin(w.project.ID, "", false)
	assert.ErrorIs(t, err, checkout.ErrNotLockableKind)

	_, err = mgr.Log(w.project.ID, true)
	assert.ErrorIs(t, err, checkout.ErrNotLockableKind)

	assert.Equal(t, 0, w.store.writes)
	assert.Equal(t, 0, w.store.creates)
}

func TestLogFiltering(t *testing.T) {
	w := newWorkspace(t)
	clock := stepClock(t0)
	alice, bob := w.manager("alice", clock), w.manager("bob", clock)

	// file: alice t0..t1, bob t3..; other: bob t2..t4
	_, err := alice.Checkout(w.file.ID)
	require.NoError(t, err)
	_, err = alice.Checkin(w.file.ID, "first", false)
	require.NoError(t, err)
	_, err = bob.Checkout(w.other.ID)
	require.NoError(t, err)
	_, err = bob.Checkout(w.file.ID)
	require.NoError(t, err)
	_, err = bob.Checkin(w.other.ID, "", false)
	require.NoError(t, err)

	records, err := alice.Log(w.file.ID, false)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bob", records[0].User)
	assert.True(t, records[0].Open())
	assert.Equal(t, "alice", records[1].User)

	all, err := alice.Log(w.file.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].CheckedOutAt.After(all[i].CheckedOutAt))
	}
	assert.Equal(t, w.other.ID, all[1].Entity)
	assert.Nil(t, all[1].Message, "empty message is stored as absent")
}

// --------------------------------------------------------------------------
// Other behaviour
// --------------------------------------------------------------------------

func TestLogTableIsProvisionedOnce(t *testing.T) {
	w := newWorkspace(t)
	clock := stepClock(t0)

	_, err := w.manager("alice", clock).Checkout(w.file.ID)
	require.NoError(t, err)
	_, err = w.manager("bob", clock).Checkout(w.other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, w.store.creates)

	tables, err := w.store.ListChildren(w.project.ID, db.KindTable)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, checkout.LogTableName, tables[0].Name)
}

func TestEnsureLogTableReusesFirst(t *testing.T) {
	w := newWorkspace(t)
	first, err := w.store.CreateTable(w.project.ID, checkout.LogSchema())
	require.NoError(t, err)
	_, err = w.store.CreateTable(w.project.ID, checkout.LogSchema())
	require.NoError(t, err)

	table, err := checkout.EnsureLogTable(w.store, w.project)
	require.NoError(t, err)
	assert.Equal(t, first, table)
}

func TestMessageTooLong(t *testing.T) {
	w := newWorkspace(t)
	mgr := w.manager("alice", stepClock(t0))
	_, err := mgr.Checkout(w.file.ID)
	require.NoError(t, err)

	long := bytes.Repeat([]byte("ä"), checkout.MaxMessageLength+1)
	_, err = mgr.Checkin(w.file.ID, string(long), false)
	assert.ErrorIs(t, err, checkout.ErrMessageTooLong)

	exact := bytes.Repeat([]byte("ä"), checkout.MaxMessageLength)
	_, err = mgr.Checkin(w.file.ID, string(exact), false)
	assert.NoError(t, err)
}

func TestUnknownEntity(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.manager("alice", stepClock(t0)).Checkout("ent404")
	assert.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestResolveContainer(t *testing.T) {
	w := newWorkspace(t)

	container, err := checkout.ResolveContainer(w.store, w.file, 32)
	require.NoError(t, err)
	assert.Equal(t, w.project, container)

	_, err = checkout.ResolveContainer(w.store, w.file, 1)
	assert.ErrorIs(t, err, checkout.ErrNoContainer)
}

func TestSchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		columns []db.Column
	}{
		{"only user", []db.Column{{Name: checkout.ColUser, Type: db.ColumnTUserID}}},
		{"without check-out time", []db.Column{
			{Name: checkout.ColUser, Type: db.ColumnTUserID},
			{Name: checkout.ColEntity, Type: db.ColumnTEntityID},
			{Name: checkout.ColCheckedIn, Type: db.ColumnTDate},
			{Name: checkout.ColMessage, Type: db.ColumnTString},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t)
			_, err := w.store.CreateTable(w.project.ID, db.Schema{Name: checkout.LogTableName, Columns: tt.columns})
			require.NoError(t, err)
			mgr := w.manager("alice", stepClock(t0))

			_, err = mgr.Checkout(w.file.ID)
			assert.ErrorIs(t, err, checkout.ErrSchemaMismatch)
			_, err = mgr.Checkin(w.file.ID, "", false)
			assert.ErrorIs(t, err, checkout.ErrSchemaMismatch)
			_, err = mgr.Log(w.file.ID, true)
			assert.ErrorIs(t, err, checkout.ErrSchemaMismatch)
			assert.Equal(t, 0, w.store.writes)
		})
	}
}

func TestExampleScenario(t *testing.T) {
	w := newWorkspace(t)
	clock := stepClock(t0)
	a, b := w.manager("alice", clock), w.manager("bob", clock)

	_, err := a.Checkout(w.file.ID)
	require.NoError(t, err)
	rows := w.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, []db.Value{
		db.StringValue("alice"),
		db.StringValue(w.file.ID),
		db.StringValue("1709285400000"),
		db.NullValue(),
		db.NullValue(),
	}, rows[0].Values)

	_, err = b.Checkout(w.file.ID)
	assert.ErrorIs(t, err, checkout.ErrAlreadyLocked)
	assert.Equal(t, rows, w.rows(t))

	_, err = a.Checkin(w.file.ID, "done", false)
	require.NoError(t, err)
	rows = w.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, db.StringValue("1709285460000"), rows[0].Values[3])
	assert.Equal(t, db.StringValue("done"), rows[0].Values[4])

	records, err := a.Log(w.file.ID, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, checkout.RenderLog(&buf, records))
	g := goldie.New(t)
	g.Assert(t, "example_scenario", buf.Bytes())
}

func TestRenderLog(t *testing.T) {
	in := t0.Add(90 * time.Minute)
	msg := "reviewed"
	records := []checkout.LockRecord{
		{User: "bob", Entity: "ent7", CheckedOutAt: t0.Add(time.Hour)},
		{User: "alice", Entity: "ent3", CheckedOutAt: t0, CheckedInAt: &in, Message: &msg},
	}

	g := goldie.New(t)
	var buf bytes.Buffer
	require.NoError(t, checkout.RenderLog(&buf, records))
	g.Assert(t, "render_log", buf.Bytes())

	buf.Reset()
	require.NoError(t, checkout.RenderLog(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestSeveralOpenLocksEarliestWins(t *testing.T) {
	w := newWorkspace(t)
	table, err := checkout.EnsureLogTable(w.store, w.project)
	require.NoError(t, err)

	// two open rows for the same file, the later check-out was written first
	appendOpen := func(user string, at time.Time) {
		_, err := w.store.StoreRows(table.ID, db.RowSet{
			TableID: table.ID,
			Headers: checkout.LogSchema().Columns,
			Rows: []db.Row{{Values: []db.Value{
				db.StringValue(user),
				db.StringValue(w.file.ID),
				db.StringValue(strconv.FormatInt(at.UnixMilli(), 10)),
				db.NullValue(),
				db.NullValue(),
			}}},
		})
		require.NoError(t, err)
	}
	appendOpen("bob", t0.Add(10*time.Minute))
	appendOpen("alice", t0)

	set, err := w.store.QueryTable(table.ID, db.Query{OrderBy: checkout.ColCheckedOut})
	require.NoError(t, err)
	lock, err := checkout.FindOpenLock(set, w.file.ID, "", false)
	require.NoError(t, err)
	require.True(t, lock.Found)
	assert.Equal(t, "alice", lock.Record.User)
	assert.True(t, lock.Record.CheckedOutAt.Equal(t0))

	res, err := w.manager("carol", stepClock(t0.Add(time.Hour))).Checkout(w.file.ID)
	assert.ErrorIs(t, err, checkout.ErrAlreadyLocked)
	assert.Equal(t, "alice", res.Record.User)
	assert.True(t, res.Record.CheckedOutAt.Equal(t0))

	// the owner of the later row closes only their own row
	res, err = w.manager("bob", stepClock(t0.Add(time.Hour))).Checkin(w.file.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Record.User)

	rows := w.rows(t)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Values[3].Null, "row of bob is closed")
	assert.True(t, rows[1].Values[3].Null, "row of alice stays open")
	assert.Equal(t, 1, openRows(rows))

	res, err = w.manager("carol", stepClock(t0.Add(time.Hour))).Checkout(w.file.ID)
	assert.ErrorIs(t, err, checkout.ErrAlreadyLocked)
	assert.Equal(t, "alice", res.Record.User)
}
