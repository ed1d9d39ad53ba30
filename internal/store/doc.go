// Package store defines the persistence contract for job records.
//
// The JobStore interface models a plain key-value store (get, put, scan,
// delete, conditional update) so the lifecycle can run on top of Postgres,
// Redis or memory without the service layer knowing which one is in use.
// Backends live under internal/platform.
package store
