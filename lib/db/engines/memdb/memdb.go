package memdb

import (
	"encoding/gob"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dCheck/lib/db"
)

// table holds the rows and the version of a table entity
type table struct {
	Schema  db.Schema
	Rows    []db.Row // sorted by id
	NextID  uint64
	Version uint64
}

// snapshot is the on-disk format used by Save and Load
type snapshot struct {
	WriteIdx uint64
	Entities []db.Entity // creation order
	Tables   map[string]*table
}

type memDB struct {
	mu       sync.RWMutex
	entities map[string]db.Entity
	order    []string            // entity ids in creation order
	children map[string][]string // parent id -> child ids in creation order
	tables   map[string]*table
	writeIdx atomic.Uint64
}

// NewMemDB creates a new empty in-memory workspace database.
func NewMemDB() db.WorkspaceDB {
	return &memDB{
		entities: make(map[string]db.Entity),
		children: make(map[string][]string),
		tables:   make(map[string]*table),
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (m *memDB) CreateEntity(e db.Entity, writeIndex uint64) (db.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetWriteIdx(writeIndex)

	parent, parentFound := m.entities[e.ParentID]
	if err := db.ValidateEntity(e, parent, parentFound); err != nil {
		return db.Entity{}, err
	}
	if e.ID == "" {
		e.ID = db.GenerateEntityID(writeIndex)
	}
	if _, exists := m.entities[e.ID]; exists {
		return db.Entity{}, db.Errorf(db.RetCInvalidOperation, "entity %s already exists", e.ID)
	}

	m.insert(e)
	return e, nil
}

func (m *memDB) CreateTable(parentID string, schema db.Schema, writeIndex uint64) (db.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetWriteIdx(writeIndex)

	parent, parentFound := m.entities[parentID]
	if err := db.ValidateTableParent(parent, parentFound, parentID); err != nil {
		return db.Entity{}, err
	}
	if err := db.ValidateSchema(schema); err != nil {
		return db.Entity{}, err
	}

	e := db.Entity{
		ID:       db.GenerateEntityID(writeIndex),
		Name:     schema.Name,
		Kind:     db.KindTable,
		ParentID: parentID,
	}
	if _, exists := m.entities[e.ID]; exists {
		return db.Entity{}, db.Errorf(db.RetCInvalidOperation, "entity %s already exists", e.ID)
	}

	m.insert(e)
	m.tables[e.ID] = &table{
		Schema: db.Schema{Name: schema.Name, Columns: db.CopyColumns(schema.Columns)},
		NextID: 1,
	}
	return e, nil
}

func (m *memDB) StoreRows(tableID string, set db.RowSet, writeIndex uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetWriteIdx(writeIndex)

	t, ok := m.tables[tableID]
	if !ok {
		return "", db.Errorf(db.RetCNotFound, "table %s not found", tableID)
	}

	// Conditional write
	if set.Etag != "" && set.Etag != db.Etag(tableID, t.Version) {
		return "", db.Errorf(db.RetCConflict, "etag %s of table %s is stale", set.Etag, tableID)
	}

	changes, err := db.ApplyRows(t.Schema, t.Rows, t.NextID, set)
	if err != nil {
		return "", err
	}

	t.Rows = changes.Rows
	t.NextID = changes.NextID
	t.Version++
	return db.Etag(tableID, t.Version), nil
}

// insert adds an entity to all indices. The caller must hold the write lock.
func (m *memDB) insert(e db.Entity) {
	m.entities[e.ID] = e
	m.order = append(m.order, e.ID)
	if e.ParentID != "" {
		m.children[e.ParentID] = append(m.children[e.ParentID], e.ID)
	}
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (m *memDB) GetEntity(id string) (db.Entity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok, nil
}

func (m *memDB) ListChildren(parentID string, kind db.Kind) ([]db.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.entities[parentID]; !ok {
		return nil, db.Errorf(db.RetCNotFound, "entity %s not found", parentID)
	}

	children := make([]db.Entity, 0, len(m.children[parentID]))
	for _, id := range m.children[parentID] {
		if e := m.entities[id]; kind == "" || e.Kind == kind {
			children = append(children, e)
		}
	}
	return children, nil
}

func (m *memDB) QueryTable(tableID string, q db.Query) (db.RowSet, error) {
	m.mu.RLock()
	t, ok := m.tables[tableID]
	if !ok {
		m.mu.RUnlock()
		return db.RowSet{}, db.Errorf(db.RetCNotFound, "table %s not found", tableID)
	}
	set := db.RowSet{
		TableID: tableID,
		Headers: db.CopyColumns(t.Schema.Columns),
		Rows:    make([]db.Row, len(t.Rows)),
		Etag:    db.Etag(tableID, t.Version),
	}
	for i, r := range t.Rows {
		set.Rows[i] = r.Copy()
	}
	m.mu.RUnlock()

	if err := db.SortRows(set.Headers, set.Rows, q); err != nil {
		return db.RowSet{}, err
	}
	return set, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (m *memDB) Save(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := snapshot{
		WriteIdx: m.writeIdx.Load(),
		Entities: make([]db.Entity, 0, len(m.order)),
		Tables:   m.tables,
	}
	for _, id := range m.order {
		snap.Entities = append(snap.Entities, m.entities[id])
	}
	return gob.NewEncoder(w).Encode(&snap)
}

func (m *memDB) Load(r io.Reader) error {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entities = make(map[string]db.Entity, len(snap.Entities))
	m.order = make([]string, 0, len(snap.Entities))
	m.children = make(map[string][]string)
	m.tables = snap.Tables
	if m.tables == nil {
		m.tables = make(map[string]*table)
	}
	for _, e := range snap.Entities {
		m.insert(e)
	}
	m.writeIdx.Store(snap.WriteIdx)
	return nil
}

// --------------------------------------------------------------------------
// Feature Support
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureCreateEntity | db.FeatureGetEntity | db.FeatureListChildren |
	db.FeatureCreateTable | db.FeatureQueryTable | db.FeatureStoreRows | db.FeatureSave | db.FeatureLoad

func (m *memDB) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (m *memDB) GetInfo() db.DatabaseInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := 0
	for _, t := range m.tables {
		rows += len(t.Rows)
	}

	features := make([]db.Feature, 0)
	for f := db.FeatureCreateEntity; f <= db.FeatureLoad; f <<= 1 {
		if m.SupportsFeature(f) {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		Entities:          len(m.entities),
		Tables:            len(m.tables),
		Rows:              rows,
		DbType:            db.ImplMemory,
		SupportedFeatures: features,
		Metadata: map[string]string{
			"write_index": strconv.FormatUint(m.writeIdx.Load(), 10),
		},
	}
}

// --------------------------------------------------------------------------
// Write Index Operations
// --------------------------------------------------------------------------

func (m *memDB) SetWriteIdx(newIdx uint64) {
	for {
		current := m.writeIdx.Load()
		if newIdx <= current || m.writeIdx.CompareAndSwap(current, newIdx) {
			return
		}
	}
}

func (m *memDB) WriteIdx() uint64 {
	return m.writeIdx.Load()
}

func (m *memDB) Close() error {
	return nil
}
