package events

import "time"

// RemoteStart is emitted before a request to the remote content API.
type RemoteStart struct {
	Endpoint      string
	OperationName string
}

// RemoteFinish is emitted after a request to the remote content API.
type RemoteFinish struct {
	Endpoint      string
	OperationName string
	Status        int
	Err           error
	Duration      time.Duration
}
