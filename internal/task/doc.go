// Package task runs digest jobs in the background.
//
// The job initiator hands work to an Invoker, which triggers a named target
// without waiting for it. LocalInvoker runs targets on a worker pool inside
// the server process; the Redis invoker in internal/platform/redis hands them
// to cmd/worker instead. Either way the target is the Processor, which fetches
// and summarizes each news item and writes the job's terminal status.
package task
