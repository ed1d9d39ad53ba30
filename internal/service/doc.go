// Package service contains the application-specific use cases of the digest
// job lifecycle. It orchestrates the job store and the worker invoker
// (both received through constructor injection) and translates their
// failures into the sentinel errors the API layer maps to HTTP statuses.
//
// The service depends on the interfaces in internal/store and internal/task,
// never on a specific backend.
package service
