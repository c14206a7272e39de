package lstore

import (
	"sync/atomic"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
)

type storeImpl struct {
	db    db.WorkspaceDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// The write index continues at the index of the database, so a persistent
// database (sqlite) keeps generating fresh ids after a restart.
func NewLocalStore(factory store.DBFactory) store.IStore {
	s := &storeImpl{
		db: factory(),
	}
	s.index.Store(s.db.WriteIdx())
	return s
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) CreateEntity(e db.Entity) (db.Entity, error) {
	if !s.db.SupportsFeature(db.FeatureCreateEntity) {
		return db.Entity{}, store.Unsupported("CreateEntity")
	}
	return s.db.CreateEntity(e, s.incAndGetIndex())
}

func (s *storeImpl) GetEntity(id string) (db.Entity, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGetEntity) {
		return db.Entity{}, false, store.Unsupported("GetEntity")
	}
	return s.db.GetEntity(id)
}

func (s *storeImpl) ListChildren(parentID string, kind db.Kind) ([]db.Entity, error) {
	if !s.db.SupportsFeature(db.FeatureListChildren) {
		return nil, store.Unsupported("ListChildren")
	}
	return s.db.ListChildren(parentID, kind)
}

func (s *storeImpl) CreateTable(parentID string, schema db.Schema) (db.Entity, error) {
	if !s.db.SupportsFeature(db.FeatureCreateTable) {
		return db.Entity{}, store.Unsupported("CreateTable")
	}
	return s.db.CreateTable(parentID, schema, s.incAndGetIndex())
}

func (s *storeImpl) QueryTable(tableID string, q db.Query) (db.RowSet, error) {
	if !s.db.SupportsFeature(db.FeatureQueryTable) {
		return db.RowSet{}, store.Unsupported("QueryTable")
	}
	return s.db.QueryTable(tableID, q)
}

func (s *storeImpl) StoreRows(tableID string, set db.RowSet) (string, error) {
	if !s.db.SupportsFeature(db.FeatureStoreRows) {
		return "", store.Unsupported("StoreRows")
	}
	return s.db.StoreRows(tableID, set, s.incAndGetIndex())
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
