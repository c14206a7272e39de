package dstore

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// WorkspaceStateMachine is a state machine implementation for Dragonboat RAFT
type WorkspaceStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.WorkspaceDB // the actual dataStorage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &WorkspaceStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding WorkspaceDB method.
func (fsm *WorkspaceStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, db.Errorf(db.RetCInternalError, "invalid Query type: %T", itf)
	}

	// Handle different Query types
	switch q.Type {
	case internal.QueryTGetEntity:
		if !fsm.database.SupportsFeature(db.FeatureGetEntity) {
			return nil, store.Unsupported(q.Type.String())
		}
		e, found, err := fsm.database.GetEntity(q.ID)
		if err != nil {
			return nil, err
		}
		return internal.EntityResult{Found: found, Entity: e}, nil
	case internal.QueryTListChildren:
		if !fsm.database.SupportsFeature(db.FeatureListChildren) {
			return nil, store.Unsupported(q.Type.String())
		}
		children, err := fsm.database.ListChildren(q.ID, q.Kind)
		if err != nil {
			return nil, err
		}
		return children, nil
	case internal.QueryTQueryTable:
		if !fsm.database.SupportsFeature(db.FeatureQueryTable) {
			return nil, store.Unsupported(q.Type.String())
		}
		set, err := fsm.database.QueryTable(q.ID, q.Order)
		if err != nil {
			return nil, err
		}
		return set, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, db.Errorf(db.RetCInvalidOperation, "unknown Query operation: %d", q.Type)
	}
}

// Update handles write commands on the WorkspaceDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *WorkspaceStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// errorResult encodes a failed command. The return code is the result value, the message the result data.
func errorResult(err error) sm.Result {
	code := db.CodeOf(err)
	if code == db.RetCSuccess {
		code = db.RetCInternalError
	}
	msg := err.Error()
	if dbErr, ok := err.(*db.Error); ok {
		msg = dbErr.Msg
	}
	return sm.Result{Value: uint64(code), Data: []byte(msg)}
}

// apply executes a single raft entry. The raft log index is used as write index,
// so every replica generates the same entity ids and etags.
func (fsm *WorkspaceStateMachine) apply(e sm.Entry) sm.Result {
	if len(e.Cmd) == 0 {
		return sm.Result{Value: uint64(db.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	// Deserialize the command
	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return sm.Result{Value: uint64(db.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	// Check if the db supports the operation
	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return sm.Result{Value: uint64(db.RetCInvalidOperation), Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
	}
	if !fsm.database.SupportsFeature(feat) {
		return sm.Result{Value: uint64(db.RetCUnsupportedOperation), Data: []byte(fmt.Sprintf("%s operation is not supported", cmd.Type))}
	}

	var res internal.CommandResult
	switch cmd.Type {
	case internal.CommandTCreateEntity:
		if cmd.Body.Entity == nil {
			return sm.Result{Value: uint64(db.RetCInvalidOperation), Data: []byte("CreateEntity without entity")}
		}
		res.Entity, err = fsm.database.CreateEntity(*cmd.Body.Entity, e.Index)
	case internal.CommandTCreateTable:
		if cmd.Body.Schema == nil {
			return sm.Result{Value: uint64(db.RetCInvalidOperation), Data: []byte("CreateTable without schema")}
		}
		res.Entity, err = fsm.database.CreateTable(cmd.Target, *cmd.Body.Schema, e.Index)
	case internal.CommandTStoreRows:
		if cmd.Body.Set == nil {
			return sm.Result{Value: uint64(db.RetCInvalidOperation), Data: []byte("StoreRows without rows")}
		}
		res.Etag, err = fsm.database.StoreRows(cmd.Target, *cmd.Body.Set, e.Index)
	}
	if err != nil {
		return errorResult(err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return sm.Result{Value: uint64(db.RetCInternalError), Data: []byte(err.Error())}
	}
	return sm.Result{Value: uint64(db.RetCSuccess), Data: data}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *WorkspaceStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *WorkspaceStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used WorkspaceDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the database from a snapshot
func (fsm *WorkspaceStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used WorkspaceDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *WorkspaceStateMachine) Close() error {
	return fsm.database.Close()
}
