// Package execution runs one Luau execution session task end to end:
// stage the binary, spawn the task, poll it until it settles, stream its
// logs and aggregate the test results into a Summary.
//
// Stages run strictly one after another. The only retry policy is the
// poll backoff; every other failure is returned to the caller as an *Error.
package execution
