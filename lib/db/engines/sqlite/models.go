package sqlite

import "github.com/ValentinKolb/dCheck/lib/db"

// --------------------------------------------------------------------------
// Table Models
// --------------------------------------------------------------------------

// entityModel stores the workspace hierarchy. Seq preserves the creation order.
type entityModel struct {
	Seq      uint64 `gorm:"primaryKey;autoIncrement"`
	EntityID string `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
	Kind     string `gorm:"not null"`
	ParentID string `gorm:"index"`
}

func (entityModel) TableName() string { return "workspace_entities" }

// tableModel stores the schema and version of a table entity.
type tableModel struct {
	EntityID string      `gorm:"primaryKey"`
	Name     string      `gorm:"not null"`
	Columns  []db.Column `gorm:"serializer:json;not null"`
	NextID   uint64      `gorm:"not null"`
	Version  uint64      `gorm:"not null"`
}

func (tableModel) TableName() string { return "workspace_tables" }

// rowModel stores a single table row. Cells are in schema column order.
type rowModel struct {
	TableID string     `gorm:"primaryKey;autoIncrement:false"`
	RowID   uint64     `gorm:"primaryKey;autoIncrement:false"`
	Cells   []db.Value `gorm:"serializer:json;not null"`
}

func (rowModel) TableName() string { return "workspace_rows" }

// metaModel is a key/value table for engine state (the write index)
type metaModel struct {
	Name  string `gorm:"primaryKey"`
	Value uint64 `gorm:"not null"`
}

func (metaModel) TableName() string { return "workspace_meta" }

const metaKeyWriteIdx = "write_idx"

// snapshot is the format used by Save and Load
type snapshot struct {
	WriteIdx uint64
	Entities []entityModel
	Tables   []tableModel
	Rows     []rowModel
}
