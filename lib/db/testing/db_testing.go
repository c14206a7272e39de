package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// DBFactory is a function that creates a new instance of a WorkspaceDB implementation
type DBFactory func() db.WorkspaceDB

// RunWorkspaceDBTests runs a comprehensive test suite for a WorkspaceDB implementation.
func RunWorkspaceDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateGetEntity", func(t *testing.T) {
			testCreateGetEntity(t, factory())
		})

		t.Run("EntityValidation", func(t *testing.T) {
			testEntityValidation(t, factory())
		})

		t.Run("ListChildren", func(t *testing.T) {
			testListChildren(t, factory())
		})

		t.Run("CreateTable", func(t *testing.T) {
			testCreateTable(t, factory())
		})

		t.Run("AppendRows", func(t *testing.T) {
			testAppendRows(t, factory())
		})

		t.Run("ConditionalWrite", func(t *testing.T) {
			testConditionalWrite(t, factory())
		})

		t.Run("ValueValidation", func(t *testing.T) {
			testValueValidation(t, factory())
		})

		t.Run("QueryOrder", func(t *testing.T) {
			testQueryOrder(t, factory())
		})

		t.Run("QueryReturnsCopy", func(t *testing.T) {
			testQueryReturnsCopy(t, factory())
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("ConcurrentConditionalWrites", func(t *testing.T) {
			testConcurrentConditionalWrites(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.WorkspaceDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// testSchema is a small table layout similar to the checkout log
func testSchema() db.Schema {
	return db.Schema{
		Name: "test_log",
		Columns: []db.Column{
			{Name: "user", Type: db.ColumnTUserID},
			{Name: "entity", Type: db.ColumnTEntityID},
			{Name: "at", Type: db.ColumnTDate},
			{Name: "message", Type: db.ColumnTString, MaxSize: 10},
		},
	}
}

// setupTable creates a project with a table and returns the table id
func setupTable(t testing.TB, database db.WorkspaceDB) string {
	t.Helper()
	project, err := database.CreateEntity(db.Entity{Name: "project", Kind: db.KindProject}, 1)
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	table, err := database.CreateTable(project.ID, testSchema(), 2)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	return table.ID
}

// appendRow appends one row to the test table and returns the new etag
func appendRow(t testing.TB, database db.WorkspaceDB, tableID string, user string, at int64, writeIdx uint64) string {
	t.Helper()
	etag, err := database.StoreRows(tableID, db.RowSet{
		TableID: tableID,
		Headers: testSchema().Columns[:3],
		Rows: []db.Row{{Values: []db.Value{
			db.StringValue(user),
			db.StringValue("syn1"),
			db.StringValue(fmt.Sprint(at)),
		}}},
	}, writeIdx)
	if err != nil {
		t.Fatalf("StoreRows failed: %v", err)
	}
	return etag
}

func requireCode(t testing.TB, err error, code db.RetCode) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected error with code %s, got nil", code)
		return
	}
	if got := db.CodeOf(err); got != code {
		t.Errorf("Expected error with code %s, got %s (%v)", code, got, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateGetEntity(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCreateEntity|db.FeatureGetEntity)

	project, err := database.CreateEntity(db.Entity{Name: "project", Kind: db.KindProject}, 10)
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	if project.ID != db.GenerateEntityID(10) {
		t.Errorf("Expected generated id %s, got %s", db.GenerateEntityID(10), project.ID)
	}

	file, err := database.CreateEntity(db.Entity{ID: "syn42", Name: "data.csv", Kind: db.KindFile, ParentID: project.ID}, 11)
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	if file.ID != "syn42" {
		t.Errorf("Expected explicit id syn42 to be kept, got %s", file.ID)
	}

	got, found, err := database.GetEntity("syn42")
	if err != nil || !found {
		t.Fatalf("Expected entity syn42 to exist (found=%v, err=%v)", found, err)
	}
	if got != file {
		t.Errorf("Expected %v, got %v", file, got)
	}

	_, found, err = database.GetEntity("nonexistent")
	if err != nil {
		t.Errorf("GetEntity of a missing entity should not fail: %v", err)
	}
	if found {
		t.Errorf("Expected nonexistent entity to return found=false")
	}

	_, err = database.CreateEntity(db.Entity{ID: "syn42", Name: "again", Kind: db.KindFile, ParentID: project.ID}, 12)
	requireCode(t, err, db.RetCInvalidOperation)
}

func testEntityValidation(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCreateEntity)

	project, err := database.CreateEntity(db.Entity{Name: "project", Kind: db.KindProject}, 1)
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	file, err := database.CreateEntity(db.Entity{Name: "file", Kind: db.KindFile, ParentID: project.ID}, 2)
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	_, err = database.CreateEntity(db.Entity{Name: "", Kind: db.KindFolder, ParentID: project.ID}, 3)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.CreateEntity(db.Entity{Name: "orphan", Kind: db.KindFolder}, 4)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.CreateEntity(db.Entity{Name: "orphan", Kind: db.KindFolder, ParentID: "missing"}, 5)
	requireCode(t, err, db.RetCNotFound)

	_, err = database.CreateEntity(db.Entity{Name: "nested", Kind: db.KindProject, ParentID: project.ID}, 6)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.CreateEntity(db.Entity{Name: "child", Kind: db.KindFile, ParentID: file.ID}, 7)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.CreateEntity(db.Entity{Name: "table", Kind: db.KindTable, ParentID: project.ID}, 8)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.CreateEntity(db.Entity{Name: "thing", Kind: "Dataset", ParentID: project.ID}, 9)
	requireCode(t, err, db.RetCInvalidOperation)
}

func testListChildren(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCreateEntity|db.FeatureListChildren|db.FeatureCreateTable)

	project, _ := database.CreateEntity(db.Entity{Name: "project", Kind: db.KindProject}, 1)
	folder, _ := database.CreateEntity(db.Entity{Name: "folder", Kind: db.KindFolder, ParentID: project.ID}, 2)
	table1, _ := database.CreateTable(project.ID, testSchema(), 3)
	file, _ := database.CreateEntity(db.Entity{Name: "file", Kind: db.KindFile, ParentID: folder.ID}, 4)
	table2, _ := database.CreateTable(project.ID, testSchema(), 5)

	all, err := database.ListChildren(project.ID, "")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 children, got %d", len(all))
	}
	if all[0].ID != folder.ID || all[1].ID != table1.ID || all[2].ID != table2.ID {
		t.Errorf("Expected children in creation order, got %v", all)
	}

	tables, err := database.ListChildren(project.ID, db.KindTable)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(tables) != 2 || tables[0].ID != table1.ID || tables[1].ID != table2.ID {
		t.Errorf("Expected both tables in creation order, got %v", tables)
	}

	files, _ := database.ListChildren(folder.ID, db.KindFile)
	if len(files) != 1 || files[0].ID != file.ID {
		t.Errorf("Expected folder to contain the file, got %v", files)
	}

	none, err := database.ListChildren(file.ID, "")
	if err != nil {
		t.Errorf("ListChildren of a leaf should not fail: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no children, got %v", none)
	}

	_, err = database.ListChildren("missing", "")
	requireCode(t, err, db.RetCNotFound)
}

func testCreateTable(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCreateEntity|db.FeatureCreateTable|db.FeatureQueryTable)

	project, _ := database.CreateEntity(db.Entity{Name: "project", Kind: db.KindProject}, 1)
	file, _ := database.CreateEntity(db.Entity{Name: "file", Kind: db.KindFile, ParentID: project.ID}, 2)

	table, err := database.CreateTable(project.ID, testSchema(), 3)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if table.Kind != db.KindTable || table.Name != "test_log" || table.ParentID != project.ID {
		t.Errorf("Unexpected table entity %v", table)
	}

	set, err := database.QueryTable(table.ID, db.Query{})
	if err != nil {
		t.Fatalf("QueryTable failed: %v", err)
	}
	if len(set.Rows) != 0 {
		t.Errorf("Expected empty table, got %d rows", len(set.Rows))
	}
	if set.Etag == "" {
		t.Errorf("Expected an etag for an empty table")
	}
	if len(set.Headers) != 4 || set.Headers[3].MaxSize != 10 {
		t.Errorf("Expected headers to match the schema, got %v", set.Headers)
	}

	_, err = database.CreateTable(file.ID, testSchema(), 4)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.CreateTable("missing", testSchema(), 5)
	requireCode(t, err, db.RetCNotFound)

	_, err = database.CreateTable(project.ID, db.Schema{Name: "empty"}, 6)
	requireCode(t, err, db.RetCInvalidOperation)

	dup := testSchema()
	dup.Columns = append(dup.Columns, db.Column{Name: "user", Type: db.ColumnTString})
	_, err = database.CreateTable(project.ID, dup, 7)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.QueryTable(project.ID, db.Query{})
	requireCode(t, err, db.RetCNotFound)
}

func testAppendRows(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStoreRows|db.FeatureQueryTable)

	tableID := setupTable(t, database)

	before, _ := database.QueryTable(tableID, db.Query{})
	etag1 := appendRow(t, database, tableID, "alice", 100, 3)
	if etag1 == before.Etag {
		t.Errorf("Expected etag to change after a write")
	}
	etag2 := appendRow(t, database, tableID, "bob", 200, 4)
	if etag2 == etag1 {
		t.Errorf("Expected etag to change after a write")
	}

	set, err := database.QueryTable(tableID, db.Query{})
	if err != nil {
		t.Fatalf("QueryTable failed: %v", err)
	}
	if set.Etag != etag2 {
		t.Errorf("Expected query etag %s, got %s", etag2, set.Etag)
	}
	if len(set.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(set.Rows))
	}
	if set.Rows[0].ID == 0 || set.Rows[1].ID <= set.Rows[0].ID {
		t.Errorf("Expected increasing non-zero row ids, got %d and %d", set.Rows[0].ID, set.Rows[1].ID)
	}
	if set.Rows[0].Values[0].V != "alice" || set.Rows[1].Values[0].V != "bob" {
		t.Errorf("Unexpected row order: %v", set.Rows)
	}
	if !set.Rows[0].Values[3].Null {
		t.Errorf("Expected omitted column to be null, got %v", set.Rows[0].Values[3])
	}

	// headers in a different order than the schema
	_, err = database.StoreRows(tableID, db.RowSet{
		Headers: []db.Column{{Name: "message"}, {Name: "user"}},
		Rows:    []db.Row{{Values: []db.Value{db.StringValue("hi"), db.StringValue("carol")}}},
	}, 5)
	if err != nil {
		t.Fatalf("StoreRows with reordered headers failed: %v", err)
	}
	set, _ = database.QueryTable(tableID, db.Query{})
	last := set.Rows[len(set.Rows)-1]
	if last.Values[0].V != "carol" || last.Values[3].V != "hi" || !last.Values[1].Null {
		t.Errorf("Expected values to be mapped by header name, got %v", last.Values)
	}

	_, err = database.StoreRows(tableID, db.RowSet{
		Headers: []db.Column{{Name: "unknown"}},
		Rows:    []db.Row{{Values: []db.Value{db.StringValue("x")}}},
	}, 6)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.StoreRows(tableID, db.RowSet{
		Headers: []db.Column{{Name: "user"}},
		Rows:    []db.Row{{Values: []db.Value{db.StringValue("x"), db.StringValue("y")}}},
	}, 7)
	requireCode(t, err, db.RetCInvalidOperation)

	_, err = database.StoreRows("missing", db.RowSet{}, 8)
	requireCode(t, err, db.RetCNotFound)
}

func testConditionalWrite(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStoreRows|db.FeatureQueryTable)

	tableID := setupTable(t, database)
	appendRow(t, database, tableID, "alice", 100, 3)

	set, _ := database.QueryTable(tableID, db.Query{})
	staleEtag := set.Etag
	row := set.Rows[0]

	update := db.RowSet{
		TableID: tableID,
		Headers: []db.Column{{Name: "message"}},
		Rows:    []db.Row{{ID: row.ID, Values: []db.Value{db.StringValue("done")}}},
		Etag:    set.Etag,
	}

	// update without etag is rejected
	noEtag := update
	noEtag.Etag = ""
	_, err := database.StoreRows(tableID, noEtag, 4)
	requireCode(t, err, db.RetCInvalidOperation)

	newEtag, err := database.StoreRows(tableID, update, 5)
	if err != nil {
		t.Fatalf("Conditional StoreRows failed: %v", err)
	}
	if newEtag == staleEtag {
		t.Errorf("Expected etag to change after the update")
	}

	set, _ = database.QueryTable(tableID, db.Query{})
	if len(set.Rows) != 1 {
		t.Fatalf("Expected the update to not append a row, got %d rows", len(set.Rows))
	}
	if set.Rows[0].Values[3].V != "done" || set.Rows[0].Values[0].V != "alice" {
		t.Errorf("Expected only the message column to change, got %v", set.Rows[0].Values)
	}

	// second write with the same (now stale) etag fails and changes nothing
	update.Rows[0].Values[0] = db.StringValue("again")
	_, err = database.StoreRows(tableID, update, 6)
	requireCode(t, err, db.RetCConflict)

	after, _ := database.QueryTable(tableID, db.Query{})
	if after.Etag != newEtag || after.Rows[0].Values[3].V != "done" {
		t.Errorf("Rejected write must not change the table")
	}

	// a conditional append with a stale etag is rejected as well
	_, err = database.StoreRows(tableID, db.RowSet{
		Headers: []db.Column{{Name: "user"}},
		Rows:    []db.Row{{Values: []db.Value{db.StringValue("bob")}}},
		Etag:    staleEtag,
	}, 7)
	requireCode(t, err, db.RetCConflict)

	// update of a missing row
	_, err = database.StoreRows(tableID, db.RowSet{
		Headers: []db.Column{{Name: "message"}},
		Rows:    []db.Row{{ID: 9999, Values: []db.Value{db.StringValue("x")}}},
		Etag:    newEtag,
	}, 8)
	requireCode(t, err, db.RetCNotFound)
}

func testValueValidation(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStoreRows)

	tableID := setupTable(t, database)

	cases := []struct {
		name   string
		header string
		value  db.Value
		ok     bool
	}{
		{"EmptyUser", "user", db.StringValue(""), false},
		{"NullUser", "user", db.NullValue(), true},
		{"BadDate", "at", db.StringValue("yesterday"), false},
		{"NegativeDate", "at", db.StringValue("-5"), true},
		{"MessageAtLimit", "message", db.StringValue("ääääääääää"), true},
		{"MessageTooLong", "message", db.StringValue("12345678901"), false},
	}

	for i, c := range cases {
		_, err := database.StoreRows(tableID, db.RowSet{
			Headers: []db.Column{{Name: c.header}},
			Rows:    []db.Row{{Values: []db.Value{c.value}}},
		}, uint64(10+i))
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", c.name, err)
		}
		if !c.ok {
			requireCode(t, err, db.RetCInvalidOperation)
		}
	}

	// a failed write in a batch must not store any row
	set, _ := database.QueryTable(tableID, db.Query{})
	count := len(set.Rows)
	_, err := database.StoreRows(tableID, db.RowSet{
		Headers: []db.Column{{Name: "user"}},
		Rows: []db.Row{
			{Values: []db.Value{db.StringValue("ok")}},
			{Values: []db.Value{db.StringValue("")}},
		},
	}, 100)
	requireCode(t, err, db.RetCInvalidOperation)
	set, _ = database.QueryTable(tableID, db.Query{})
	if len(set.Rows) != count {
		t.Errorf("Expected batch write to be atomic, got %d rows instead of %d", len(set.Rows), count)
	}
}

func testQueryOrder(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStoreRows|db.FeatureQueryTable)

	tableID := setupTable(t, database)
	appendRow(t, database, tableID, "b", 900, 3)
	appendRow(t, database, tableID, "a", 1000, 4)
	appendRow(t, database, tableID, "c", 50, 5)

	users := func(set db.RowSet) string {
		var buf bytes.Buffer
		for _, r := range set.Rows {
			buf.WriteString(r.Values[0].V)
		}
		return buf.String()
	}

	cases := []struct {
		q    db.Query
		want string
	}{
		{db.Query{}, "bac"},
		{db.Query{Descending: true}, "cab"},
		{db.Query{OrderBy: "at"}, "cba"}, // numeric, not lexicographic
		{db.Query{OrderBy: "at", Descending: true}, "abc"},
		{db.Query{OrderBy: "user"}, "abc"},
	}
	for _, c := range cases {
		set, err := database.QueryTable(tableID, c.q)
		if err != nil {
			t.Fatalf("QueryTable(%s) failed: %v", c.q, err)
		}
		if got := users(set); got != c.want {
			t.Errorf("QueryTable(%s): expected %s, got %s", c.q, c.want, got)
		}
	}

	_, err := database.QueryTable(tableID, db.Query{OrderBy: "nope"})
	requireCode(t, err, db.RetCInvalidOperation)
}

func testQueryReturnsCopy(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStoreRows|db.FeatureQueryTable)

	tableID := setupTable(t, database)
	appendRow(t, database, tableID, "alice", 100, 3)

	set, _ := database.QueryTable(tableID, db.Query{})
	set.Rows[0].Values[0] = db.StringValue("mallory")
	set.Headers[0].Name = "changed"

	again, _ := database.QueryTable(tableID, db.Query{})
	if again.Rows[0].Values[0].V != "alice" || again.Headers[0].Name != "user" {
		t.Errorf("QueryTable should return a copy, not a reference to the stored rows")
	}
}

func testWriteIdx(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	if database.WriteIdx() != 10 {
		t.Errorf("Expected write index 10, got %d", database.WriteIdx())
	}
	database.SetWriteIdx(5)
	if database.WriteIdx() != 10 {
		t.Errorf("Write index must never decrease, got %d", database.WriteIdx())
	}

	if database.SupportsFeature(db.FeatureCreateEntity) {
		_, _ = database.CreateEntity(db.Entity{Name: "p", Kind: db.KindProject}, 20)
		if database.WriteIdx() != 20 {
			t.Errorf("Expected write to advance the write index to 20, got %d", database.WriteIdx())
		}
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected GetInfo to report the implementation")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)

	tableID := setupTable(t, database)
	appendRow(t, database, tableID, "alice", 100, 3)
	etag := appendRow(t, database, tableID, "bob", 200, 4)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if restored.WriteIdx() != database.WriteIdx() {
		t.Errorf("Expected write index %d after load, got %d", database.WriteIdx(), restored.WriteIdx())
	}

	set, err := restored.QueryTable(tableID, db.Query{})
	if err != nil {
		t.Fatalf("QueryTable after load failed: %v", err)
	}
	if set.Etag != etag {
		t.Errorf("Expected etag %s after load, got %s", etag, set.Etag)
	}
	if len(set.Rows) != 2 || set.Rows[1].Values[0].V != "bob" {
		t.Errorf("Unexpected rows after load: %v", set.Rows)
	}

	tables, err := restored.ListChildren(mustParent(t, restored, tableID), db.KindTable)
	if err != nil || len(tables) != 1 {
		t.Errorf("Expected hierarchy to survive save/load (tables=%v, err=%v)", tables, err)
	}

	// new rows continue the id sequence
	appendRow(t, restored, tableID, "carol", 300, 5)
	set, _ = restored.QueryTable(tableID, db.Query{})
	if set.Rows[2].ID <= set.Rows[1].ID {
		t.Errorf("Expected row ids to continue after load, got %d after %d", set.Rows[2].ID, set.Rows[1].ID)
	}
}

func mustParent(t testing.TB, database db.WorkspaceDB, id string) string {
	t.Helper()
	e, found, err := database.GetEntity(id)
	if err != nil || !found {
		t.Fatalf("Entity %s not found: %v", id, err)
	}
	return e.ParentID
}

func testConcurrentConditionalWrites(t *testing.T, database db.WorkspaceDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStoreRows|db.FeatureQueryTable)

	tableID := setupTable(t, database)
	appendRow(t, database, tableID, "alice", 100, 3)
	set, _ := database.QueryTable(tableID, db.Query{})

	const writers = 10
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
		idx       atomic.Uint64
	)
	idx.Store(100)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := database.StoreRows(tableID, db.RowSet{
				Headers: []db.Column{{Name: "message"}},
				Rows:    []db.Row{{ID: set.Rows[0].ID, Values: []db.Value{db.StringValue(fmt.Sprintf("w%d", i))}}},
				Etag:    set.Etag,
			}, idx.Add(1))
			switch db.CodeOf(err) {
			case db.RetCSuccess:
				succeeded.Add(1)
			case db.RetCConflict:
				conflicts.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Errorf("Expected exactly one conditional write to succeed, got %d", succeeded.Load())
	}
	if conflicts.Load() != writers-1 {
		t.Errorf("Expected %d conflicts, got %d", writers-1, conflicts.Load())
	}
}
