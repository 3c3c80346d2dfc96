package pipeline

// commandTicket is the unit the control-plane dispatcher processes,
// grounded on the teacher's nest.CommandTicket: an execute function plus
// a buffered response channel the submitting caller blocks on.
type commandTicket struct {
	ExecuteFn func() error
	Response  chan error
}
