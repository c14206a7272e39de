package checkout

import "github.com/ValentinKolb/dCheck/lib/db"

// ICheckoutManager defines the interface for advisory check-out/check-in locks.
type ICheckoutManager interface {
	// Checkout appends an open lock for the caller on a folder or file.
	// If any user already holds an open lock, nothing is written and ErrAlreadyLocked
	// is returned together with the existing record.
	Checkout(entityID string) (res Result, err error)

	// Checkin closes the open lock of the caller on an entity and stores the message.
	// An empty message is stored as absent. The update is conditional on the etag of the
	// log read before; if the table changed in the meantime the read-resolve-write cycle
	// is repeated (Options.ConflictRetries times) before ErrConflict is returned.
	// Returns ErrNoOpenLock if the caller holds no open lock.
	// force is accepted for compatibility but does not bypass the ownership check.
	Checkin(entityID string, message string, force bool) (res Result, err error)

	// Log returns the log records of an entity, most recent check-out first.
	// With showAll the records of all entities in the same log table are returned.
	Log(entityID string, showAll bool) (records []LockRecord, err error)
}

// Result describes where an operation took place and the affected record.
// Fields are filled in as far as the operation got before returning.
type Result struct {
	Entity    db.Entity
	Container db.Entity
	Table     db.Entity
	Record    LockRecord
}
