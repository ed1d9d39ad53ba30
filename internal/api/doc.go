// Package api handles incoming HTTP requests, request validation and
// response formatting for the digest job endpoints. It translates HTTP
// concerns into calls on service.JobService and maps service errors to
// status codes and generic client messages; details only reach the logs.
package api
