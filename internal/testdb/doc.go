//go:build integration

// Package testdb provisions real backing services for integration tests.
//
// Each helper first looks for an externally managed service through an
// environment variable (useful in CI, where services run as sidecars). When
// none is configured it starts a throwaway container with dockertest and
// removes it when the test finishes. Tests are skipped, not failed, when
// neither option is available.
//
//	func TestPostgresJobStore(t *testing.T) {
//	    db := testdb.Postgres(t)
//	    s := postgres.NewPostgresJobStore(db, nil)
//	    ...
//	}
package testdb
