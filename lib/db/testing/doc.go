// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.WorkspaceDB interface.
//
// The package contains:
//   - testing: A conformance suite for the WorkspaceDB contract (hierarchy rules,
//     etag checks, atomic batch writes, ordering, snapshots)
//   - benchmark: Performance tests for appends, conditional updates and queries
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.WorkspaceDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunWorkspaceDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunWorkspaceDBBenchmarks(b, "MyDatabase", factory)
package testing
