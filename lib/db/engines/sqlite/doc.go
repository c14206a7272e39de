// Package sqlite implements a persistent workspace database (db.WorkspaceDB)
// on top of gorm and the sqlite driver.
//
// Entities, table definitions, rows and the write index are stored in four
// tables. Schemas and row cells are stored as JSON columns. Every write runs
// in a single transaction, so the etag check and the row changes of a
// conditional StoreRows are applied atomically. The write index is stored in
// the same transaction as the data it belongs to, so a reopened database
// continues where it stopped.
package sqlite
