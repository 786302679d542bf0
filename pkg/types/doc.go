// Package types defines the wire-level data structures exchanged with the
// Open Cloud Luau execution API.
//
// This package contains:
//   - Binary input (upload slot) requests and responses
//   - Execution task requests, task records and their lifecycle states
//   - Task errors and test-run output
//   - Structured log entries and paginated log listings
//
// Every enumeration in this package is open: values the client does not
// recognise decode to the matching *_UNSPECIFIED constant instead of failing.
package types
