// Package executor runs GraphQL operations over an in-memory root value with
// pluggable field resolution. livebridge uses it to re-execute a preview
// query against the content API's response, swapping every content document
// for the values of its form.
//
// # Execution Model
//
// Execution is breadth-first. Fields whose schema.Field.Async is false are
// resolved on the spot through Runtime.ResolveSync and completed in place.
// Async fields are queued; once the current depth is exhausted the queue is
// handed to Runtime.BatchResolveAsync in a single call and the completed
// results feed the next depth. A query with d levels of async fields makes
// exactly d batch calls, so every document lookup at one depth shares a batch.
//
// # Responses
//
// Every completed value is written into a slot of the response tree. A null
// in a Non-Null position nulls the nearest nullable ancestor and drops any
// queued work below it. Root fields always absorb the null, so one failing
// root field leaves its siblings intact.
//
// Errors are collected, never thrown: each carries the response path and the
// location of the field in the query, and wraps the resolver error.
package executor
