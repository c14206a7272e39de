package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// RunWorkspaceDBBenchmarks runs all benchmarks for a workspace database implementation
func RunWorkspaceDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Append", func(b *testing.B) {
		benchmarkAppend(b, factory())
	})

	b.Run("ConditionalUpdate", func(b *testing.B) {
		benchmarkConditionalUpdate(b, factory())
	})

	b.Run("Query", func(b *testing.B) {
		benchmarkQuery(b, factory(), db.Query{})
	})

	b.Run("QueryOrdered", func(b *testing.B) {
		benchmarkQuery(b, factory(), db.Query{OrderBy: "at", Descending: true})
	})

	b.Run("GetEntity", func(b *testing.B) {
		benchmarkGetEntity(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for unconditional appends
func benchmarkAppend(b *testing.B, database db.WorkspaceDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStoreRows)

	tableID := setupTable(b, database)
	var idx atomic.Uint64
	idx.Store(10)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.StoreRows(tableID, db.RowSet{
				Headers: testSchema().Columns[:3],
				Rows: []db.Row{{Values: []db.Value{
					db.StringValue(fmt.Sprintf("user-%d", counter)),
					db.StringValue("syn1"),
					db.StringValue(fmt.Sprint(counter)),
				}}},
			}, idx.Add(1))
			counter++
		}
	})
}

// Benchmark for the read-modify-write cycle used by a check-in
func benchmarkConditionalUpdate(b *testing.B, database db.WorkspaceDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStoreRows|db.FeatureQueryTable)

	tableID := setupTable(b, database)
	appendRow(b, database, tableID, "alice", 1, 3)
	idx := uint64(10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set, err := database.QueryTable(tableID, db.Query{})
		if err != nil {
			b.Fatal(err)
		}
		idx++
		_, err = database.StoreRows(tableID, db.RowSet{
			Headers: []db.Column{{Name: "at"}},
			Rows:    []db.Row{{ID: set.Rows[0].ID, Values: []db.Value{db.StringValue(fmt.Sprint(i))}}},
			Etag:    set.Etag,
		}, idx)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// Parallel benchmarking for table queries
func benchmarkQuery(b *testing.B, database db.WorkspaceDB, q db.Query) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStoreRows|db.FeatureQueryTable)

	// Prepare data
	tableID := setupTable(b, database)
	for i := 0; i < 1000; i++ {
		appendRow(b, database, tableID, fmt.Sprintf("user-%d", i%7), int64(i*31%1000), uint64(10+i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = database.QueryTable(tableID, q)
		}
	})
}

// Parallel benchmarking for entity lookups
func benchmarkGetEntity(b *testing.B, database db.WorkspaceDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureCreateEntity|db.FeatureGetEntity)

	// Prepare data
	project, _ := database.CreateEntity(db.Entity{Name: "project", Kind: db.KindProject}, 1)
	numEntities := 1000
	for i := 0; i < numEntities; i++ {
		_, _ = database.CreateEntity(db.Entity{
			ID:       fmt.Sprintf("syn%d", i),
			Name:     fmt.Sprintf("file-%d", i),
			Kind:     db.KindFile,
			ParentID: project.ID,
		}, uint64(10+i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = database.GetEntity(fmt.Sprintf("syn%d", counter%numEntities))
			counter++
		}
	})
}

// Benchmark for snapshot round trips
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)

	tableID := setupTable(b, database)
	for i := 0; i < 1000; i++ {
		appendRow(b, database, tableID, "alice", int64(i), uint64(10+i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := database.Save(&buf); err != nil {
			b.Fatal(err)
		}
		restored := factory()
		if err := restored.Load(&buf); err != nil {
			b.Fatal(err)
		}
		restored.Close()
	}
}
