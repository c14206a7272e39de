package memdb

import (
	"testing"

	"github.com/ValentinKolb/dCheck/lib/db"
	dbtesting "github.com/ValentinKolb/dCheck/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunWorkspaceDBTests(t, "MemDB", func() db.WorkspaceDB {
		return NewMemDB()
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunWorkspaceDBBenchmarks(b, "MemDB", func() db.WorkspaceDB {
		return NewMemDB()
	})
}
