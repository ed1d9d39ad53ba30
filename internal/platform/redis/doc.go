// Package redis implements the job store and the worker dispatch queue on
// Redis.
//
// Job records are stored as hashes under digest:job:{id} and enumerated
// through the digest:job_ids set. Worker invocations are pushed onto a list
// per target (digest:invoke:{target}) and popped by a Consumer running in
// cmd/worker. The caller owns the client lifecycle.
package redis
