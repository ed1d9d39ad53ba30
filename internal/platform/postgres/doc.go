// Package postgres provides the PostgreSQL implementation of store.JobStore
// together with the embedded schema migrations it depends on. Connections are
// opened through the pgx stdlib driver ("pgx") and migrations are applied with
// goose.
package postgres
