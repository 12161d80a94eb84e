// Package lock coordinates instances sharing one Postgres database through
// advisory locks, so schema bootstrap and history pruning run on a single
// instance at a time.
package lock

// Advisory lock IDs. Session-scoped, held until released or the connection
// drops.
const (
	MigrationLock = iota + 1
	PruneLock
)

type AdvisoryLocker interface {
	// TryAcquire attempts the lock without blocking and reports whether it
	// was obtained.
	TryAcquire(lockID int) (bool, error)
	Release(lockID int) error
}
