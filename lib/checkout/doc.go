/*
Package checkout implements advisory check-out/check-in locks on workspace entities.

Locks are not stored in a dedicated lock service. Every project owns a log table
(named checkout_log) with one row per check-out. A row without a check-in time is
an open lock. Checking out appends a row, checking in updates the open row of the
caller. The update is conditional on the etag of the table, so two concurrent
check-ins can not both succeed on the same stale read.

Usage:

	session := checkout.NewSession("alice", store)
	mgr := checkout.NewCheckoutManager(session, checkout.DefaultOptions())

	if _, err := mgr.Checkout("ent12"); errors.Is(err, checkout.ErrAlreadyLocked) {
		// somebody else is working on it
	}
	_, err := mgr.Checkin("ent12", "fixed the header", false)

The lock is advisory: nothing prevents a client from editing an entity that is
checked out by somebody else. Only folders and files can be checked out.
*/
package checkout
