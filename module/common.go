package module

import "context"

// Startable is a component with background work bound to a context. Start
// must be called at most once; cancelling the context initiates shutdown.
type Startable interface {
	Start(ctx context.Context)
}

// ReadyDoneAware provides an easy interface to wait for component shutdown.
// Done returns a channel that is closed once all background work has stopped.
type ReadyDoneAware interface {
	Done() <-chan struct{}
}
