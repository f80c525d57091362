package model

import "github.com/oklog/ulid/v2"

// NewID returns a time-ordered unique id. ulid.Make draws from a process-wide
// monotonic entropy source, so ids minted in the same millisecond still differ
// and sort in creation order.
func NewID() string {
	return ulid.Make().String()
}

// IDGenerator lets tests pin ids.
type IDGenerator func() string
