package sqlite

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var log = logger.GetLogger("sqlite")

// gormWriter forwards gorm log output to the named application logger
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warningf(format, args...)
}

type sqliteDB struct {
	gdb      *gorm.DB
	path     string
	mu       sync.RWMutex // writers are serialized, sqlite allows a single writer anyway
	writeIdx atomic.Uint64
}

// NewSQLiteDB opens (or creates) a workspace database in the sqlite file at path.
// The special path ":memory:" creates a database that is lost on Close.
func NewSQLiteDB(path string) (db.WorkspaceDB, error) {
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQLite connection: %w", err)
	}
	// a single connection keeps ":memory:" databases consistent
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&entityModel{}, &tableModel{}, &rowModel{}, &metaModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	s := &sqliteDB{gdb: gdb, path: path}

	var meta metaModel
	err = gdb.Where("name = ?", metaKeyWriteIdx).First(&meta).Error
	switch {
	case err == nil:
		s.writeIdx.Store(meta.Value)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to read write index: %w", err)
	}

	log.Debugf("opened sqlite workspace %s at write index %d", path, s.writeIdx.Load())
	return s, nil
}

// internalErr wraps a gorm error
func internalErr(op string, err error) error {
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return err
	}
	return db.Errorf(db.RetCInternalError, "sqlite %s: %v", op, err)
}

func toEntity(m entityModel) db.Entity {
	return db.Entity{ID: m.EntityID, Name: m.Name, Kind: db.Kind(m.Kind), ParentID: m.ParentID}
}

// getEntity loads an entity with the given handle (db or transaction)
func getEntity(tx *gorm.DB, id string) (db.Entity, bool, error) {
	var m entityModel
	err := tx.Where("entity_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Entity{}, false, nil
	}
	if err != nil {
		return db.Entity{}, false, err
	}
	return toEntity(m), true, nil
}

// persistWriteIdx stores the current write index as part of the transaction
func (s *sqliteDB) persistWriteIdx(tx *gorm.DB) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&metaModel{Name: metaKeyWriteIdx, Value: s.writeIdx.Load()}).Error
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteDB) CreateEntity(e db.Entity, writeIndex uint64) (db.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetWriteIdx(writeIndex)

	err := s.gdb.Transaction(func(tx *gorm.DB) error {
		parent, parentFound, err := getEntity(tx, e.ParentID)
		if err != nil {
			return err
		}
		if err := db.ValidateEntity(e, parent, parentFound); err != nil {
			return err
		}
		if e.ID == "" {
			e.ID = db.GenerateEntityID(writeIndex)
		}
		if _, exists, err := getEntity(tx, e.ID); err != nil {
			return err
		} else if exists {
			return db.Errorf(db.RetCInvalidOperation, "entity %s already exists", e.ID)
		}

		if err := tx.Create(&entityModel{EntityID: e.ID, Name: e.Name, Kind: string(e.Kind), ParentID: e.ParentID}).Error; err != nil {
			return err
		}
		return s.persistWriteIdx(tx)
	})
	if err != nil {
		return db.Entity{}, internalErr("create entity", err)
	}
	return e, nil
}

func (s *sqliteDB) CreateTable(parentID string, schema db.Schema, writeIndex uint64) (db.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetWriteIdx(writeIndex)

	e := db.Entity{
		ID:       db.GenerateEntityID(writeIndex),
		Name:     schema.Name,
		Kind:     db.KindTable,
		ParentID: parentID,
	}

	err := s.gdb.Transaction(func(tx *gorm.DB) error {
		parent, parentFound, err := getEntity(tx, parentID)
		if err != nil {
			return err
		}
		if err := db.ValidateTableParent(parent, parentFound, parentID); err != nil {
			return err
		}
		if err := db.ValidateSchema(schema); err != nil {
			return err
		}
		if _, exists, err := getEntity(tx, e.ID); err != nil {
			return err
		} else if exists {
			return db.Errorf(db.RetCInvalidOperation, "entity %s already exists", e.ID)
		}

		if err := tx.Create(&entityModel{EntityID: e.ID, Name: e.Name, Kind: string(e.Kind), ParentID: parentID}).Error; err != nil {
			return err
		}
		if err := tx.Create(&tableModel{EntityID: e.ID, Name: schema.Name, Columns: db.CopyColumns(schema.Columns), NextID: 1}).Error; err != nil {
			return err
		}
		return s.persistWriteIdx(tx)
	})
	if err != nil {
		return db.Entity{}, internalErr("create table", err)
	}
	return e, nil
}

func (s *sqliteDB) StoreRows(tableID string, set db.RowSet, writeIndex uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetWriteIdx(writeIndex)

	var etag string
	err := s.gdb.Transaction(func(tx *gorm.DB) error {
		t, rows, err := loadTable(tx, tableID)
		if err != nil {
			return err
		}

		// Conditional write
		if set.Etag != "" && set.Etag != db.Etag(tableID, t.Version) {
			return db.Errorf(db.RetCConflict, "etag %s of table %s is stale", set.Etag, tableID)
		}

		changes, err := db.ApplyRows(db.Schema{Name: t.Name, Columns: t.Columns}, rows, t.NextID, set)
		if err != nil {
			return err
		}

		for _, r := range changes.Changed {
			m := rowModel{TableID: tableID, RowID: r.ID, Cells: r.Values}
			if r.ID >= t.NextID {
				err = tx.Create(&m).Error
			} else {
				err = tx.Save(&m).Error
			}
			if err != nil {
				return err
			}
		}

		err = tx.Model(&tableModel{}).Where("entity_id = ?", tableID).Updates(map[string]interface{}{
			"next_id": changes.NextID,
			"version": t.Version + 1,
		}).Error
		if err != nil {
			return err
		}

		etag = db.Etag(tableID, t.Version+1)
		return s.persistWriteIdx(tx)
	})
	if err != nil {
		return "", internalErr("store rows", err)
	}
	return etag, nil
}

// loadTable reads a table and all of its rows (sorted by id)
func loadTable(tx *gorm.DB, tableID string) (tableModel, []db.Row, error) {
	var t tableModel
	err := tx.Where("entity_id = ?", tableID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tableModel{}, nil, db.Errorf(db.RetCNotFound, "table %s not found", tableID)
	}
	if err != nil {
		return tableModel{}, nil, err
	}

	var models []rowModel
	if err := tx.Where("table_id = ?", tableID).Order("row_id").Find(&models).Error; err != nil {
		return tableModel{}, nil, err
	}
	rows := make([]db.Row, len(models))
	for i, m := range models {
		rows[i] = db.Row{ID: m.RowID, Values: m.Cells}
	}
	return t, rows, nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (s *sqliteDB) GetEntity(id string) (db.Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, found, err := getEntity(s.gdb, id)
	if err != nil {
		return db.Entity{}, false, internalErr("get entity", err)
	}
	return e, found, nil
}

func (s *sqliteDB) ListChildren(parentID string, kind db.Kind) ([]db.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, found, err := getEntity(s.gdb, parentID); err != nil {
		return nil, internalErr("list children", err)
	} else if !found {
		return nil, db.Errorf(db.RetCNotFound, "entity %s not found", parentID)
	}

	query := s.gdb.Where("parent_id = ?", parentID)
	if kind != "" {
		query = query.Where("kind = ?", string(kind))
	}
	var models []entityModel
	if err := query.Order("seq").Find(&models).Error; err != nil {
		return nil, internalErr("list children", err)
	}

	children := make([]db.Entity, len(models))
	for i, m := range models {
		children[i] = toEntity(m)
	}
	return children, nil
}

func (s *sqliteDB) QueryTable(tableID string, q db.Query) (db.RowSet, error) {
	s.mu.RLock()
	t, rows, err := loadTable(s.gdb, tableID)
	s.mu.RUnlock()
	if err != nil {
		return db.RowSet{}, internalErr("query table", err)
	}

	set := db.RowSet{
		TableID: tableID,
		Headers: t.Columns,
		Rows:    rows,
		Etag:    db.Etag(tableID, t.Version),
	}
	if err := db.SortRows(set.Headers, set.Rows, q); err != nil {
		return db.RowSet{}, err
	}
	return set, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (s *sqliteDB) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{WriteIdx: s.writeIdx.Load()}
	if err := s.gdb.Order("seq").Find(&snap.Entities).Error; err != nil {
		return internalErr("save", err)
	}
	if err := s.gdb.Find(&snap.Tables).Error; err != nil {
		return internalErr("save", err)
	}
	if err := s.gdb.Order("table_id, row_id").Find(&snap.Rows).Error; err != nil {
		return internalErr("save", err)
	}
	return gob.NewEncoder(w).Encode(&snap)
}

func (s *sqliteDB) Load(r io.Reader) error {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.gdb.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []interface{}{&rowModel{}, &tableModel{}, &entityModel{}} {
			if err := all.Delete(model).Error; err != nil {
				return err
			}
		}
		if len(snap.Entities) > 0 {
			if err := tx.CreateInBatches(snap.Entities, 100).Error; err != nil {
				return err
			}
		}
		if len(snap.Tables) > 0 {
			if err := tx.CreateInBatches(snap.Tables, 100).Error; err != nil {
				return err
			}
		}
		if len(snap.Rows) > 0 {
			if err := tx.CreateInBatches(snap.Rows, 100).Error; err != nil {
				return err
			}
		}
		s.writeIdx.Store(snap.WriteIdx)
		return s.persistWriteIdx(tx)
	})
	if err != nil {
		return internalErr("load", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Feature Support
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureCreateEntity | db.FeatureGetEntity | db.FeatureListChildren |
	db.FeatureCreateTable | db.FeatureQueryTable | db.FeatureStoreRows | db.FeatureSave | db.FeatureLoad

func (s *sqliteDB) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (s *sqliteDB) GetInfo() db.DatabaseInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entities, tables, rows int64
	s.gdb.Model(&entityModel{}).Count(&entities)
	s.gdb.Model(&tableModel{}).Count(&tables)
	s.gdb.Model(&rowModel{}).Count(&rows)

	features := make([]db.Feature, 0)
	for f := db.FeatureCreateEntity; f <= db.FeatureLoad; f <<= 1 {
		if s.SupportsFeature(f) {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		Entities:          int(entities),
		Tables:            int(tables),
		Rows:              int(rows),
		DbType:            db.ImplSQLite,
		SupportedFeatures: features,
		Metadata: map[string]string{
			"path":        s.path,
			"write_index": strconv.FormatUint(s.writeIdx.Load(), 10),
		},
	}
}

// --------------------------------------------------------------------------
// Write Index Operations
// --------------------------------------------------------------------------

// SetWriteIdx only updates the in-memory index, it is persisted with the next write.
func (s *sqliteDB) SetWriteIdx(newIdx uint64) {
	for {
		current := s.writeIdx.Load()
		if newIdx <= current || s.writeIdx.CompareAndSwap(current, newIdx) {
			return
		}
	}
}

func (s *sqliteDB) WriteIdx() uint64 {
	return s.writeIdx.Load()
}

func (s *sqliteDB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistWriteIdx(s.gdb); err != nil {
		log.Warningf("failed to persist write index of %s: %v", s.path, err)
	}
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
