package dstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/ValentinKolb/dCheck/lib/store"
	"github.com/ValentinKolb/dCheck/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the IStore interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// retryable reports whether a dragonboat error is transient
func retryable(err error) bool {
	return errors.Is(err, dragonboat.ErrSystemBusy) || errors.Is(err, dragonboat.ErrShardNotReady)
}

// unavailable maps dragonboat errors to store errors. Timeouts and a missing
// quorum are reported as RetCUnavailable, everything else as internal error.
func unavailable(err error) *db.Error {
	if errors.Is(err, dragonboat.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, dragonboat.ErrShardNotReady) || errors.Is(err, dragonboat.ErrSystemBusy) {
		return db.NewError(db.RetCUnavailable, err.Error())
	}
	return db.NewError(db.RetCInternalError, err.Error())
}

// write serializes a Command and sends it via SyncPropose.
// The JSON payload of a successful command is decoded into a CommandResult.
func (s *storeImpl) write(cmd internal.Command) (internal.CommandResult, error) {
	var zero internal.CommandResult

	data, err := cmd.Serialize()
	if err != nil {
		return zero, db.NewError(db.RetCInvalidOperation, err.Error())
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if retryable(err) {
			lastErr = err
			log.Infof("SyncPropose: %v, retrying (%d/%d)...", err, i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return zero, unavailable(err)
		}
		if res.Value != uint64(db.RetCSuccess) {
			return zero, db.NewError(db.RetCode(res.Value), string(res.Data))
		}

		var result internal.CommandResult
		if err := json.Unmarshal(res.Data, &result); err != nil {
			return zero, db.Errorf(db.RetCInternalError, "invalid %s result: %v", cmd.Type, err)
		}
		return result, nil
	}
	return zero, unavailable(lastErr)
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	var lastErr error
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if retryable(err) {
			lastErr = err
			log.Infof("SyncRead: %v, retrying (%d/%d)...", err, i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			// errors of the state machine are passed through unchanged
			var dbErr *db.Error
			if errors.As(err, &dbErr) {
				return zero, dbErr
			}
			return zero, unavailable(err)
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, db.Errorf(db.RetCInternalError, "unexpected type: received %T, expected %T", res, zero)
		}
		return casted, nil
	}
	return zero, unavailable(lastErr)
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) CreateEntity(e db.Entity) (db.Entity, error) {
	res, err := s.write(internal.Command{
		Type: internal.CommandTCreateEntity,
		Body: internal.CommandBody{Entity: &e},
	})
	return res.Entity, err
}

func (s *storeImpl) GetEntity(id string) (db.Entity, bool, error) {
	res, err := read[internal.EntityResult](s, internal.Query{
		Type: internal.QueryTGetEntity,
		ID:   id,
	}, false)
	if err != nil {
		return db.Entity{}, false, err
	}
	return res.Entity, res.Found, nil
}

func (s *storeImpl) ListChildren(parentID string, kind db.Kind) ([]db.Entity, error) {
	return read[[]db.Entity](s, internal.Query{
		Type: internal.QueryTListChildren,
		ID:   parentID,
		Kind: kind,
	}, false)
}

func (s *storeImpl) CreateTable(parentID string, schema db.Schema) (db.Entity, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTCreateTable,
		Target: parentID,
		Body:   internal.CommandBody{Schema: &schema},
	})
	return res.Entity, err
}

func (s *storeImpl) QueryTable(tableID string, q db.Query) (db.RowSet, error) {
	return read[db.RowSet](s, internal.Query{
		Type:  internal.QueryTQueryTable,
		ID:    tableID,
		Order: q,
	}, false)
}

func (s *storeImpl) StoreRows(tableID string, set db.RowSet) (string, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTStoreRows,
		Target: tableID,
		Body:   internal.CommandBody{Set: &set},
	})
	return res.Etag, err
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
