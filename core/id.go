package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for records and invocations.
func NewID() string { return uuid.NewString() }
