// Package delivery defines the contract every transport front end satisfies.
package delivery

import "context"

// Delivery is one serving surface of the application. The composition root
// collects all deliveries and runs each in its own goroutine.
type Delivery interface {
	// Serve blocks until the delivery stops or fails. Shutdown is driven
	// through lifecycle hooks, not through ctx.
	Serve(ctx context.Context) error
}
