// Package hotcache holds the live objects pending persistence, grouped by
// spatial cell. The simulation loop inserts and removes entries as objects
// spawn, move and despawn while a save pass takes snapshots from another
// goroutine.
//
// Each cell bucket has its own lock; there is no cache-wide lock. A bucket
// that becomes empty is unlinked under its lock and marked dead, and writers
// that raced with the unlink retry against a fresh bucket, so entries are
// never stranded in a removed bucket.
//
// Operations on one identity must be issued from a single goroutine (the
// simulation loop). Snapshots and diagnostics may run concurrently with it.
package hotcache
