// Package domain contains the core entities of the digest service: the job
// record that tracks one asynchronous request from processing to a terminal
// state, and the news item and summary types that make up its payload.
//
// Entities here have no dependencies on storage, transport or LLM providers.
package domain
