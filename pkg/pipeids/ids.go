// Package pipeids defines the pipeline's process-unique entity
// identifiers (spec §3: "Input entity ... keyed by a process-unique
// InputId", "Output entity ... keyed by OutputId").
package pipeids

import "github.com/google/uuid"

// InputID identifies one registered input for the lifetime of the
// process.
type InputID string

// OutputID identifies one registered output for the lifetime of the
// process.
type OutputID string

// NewInputID generates a fresh, process-unique InputID.
func NewInputID() InputID {
	return InputID(uuid.NewString())
}

// NewOutputID generates a fresh, process-unique OutputID.
func NewOutputID() OutputID {
	return OutputID(uuid.NewString())
}
