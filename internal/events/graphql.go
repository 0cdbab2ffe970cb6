package events

import "time"

// GraphQLStart is emitted before a payload's query is processed.
type GraphQLStart struct {
	PayloadID string
	Query     string
}

// GraphQLFinish is emitted after a payload's query is processed. Errors holds
// the field errors of the local execution; Err is set when processing failed
// before execution.
type GraphQLFinish struct {
	PayloadID string
	Errors    []error
	Err       error
	Duration  time.Duration
}
