// Package face defines the abstraction of the network layer used by the
// multi-party signing protocol: expressing interests, registering name
// prefixes to serve packets, publishing packets, and scheduling delayed
// callbacks.
//
// The memface subpackage provides an in-process implementation used by the
// tests of the protocol.
package face

import (
	"time"

	"go.dedis.ch/ndnmps/encoding"
)

// Registration is a handle on a registered prefix.
type Registration interface {
	// Unregister removes the prefix registration. Pending interests under
	// the prefix are not affected.
	Unregister()
}

// Event is a handle on a scheduled callback.
type Event interface {
	// Cancel prevents the callback from firing. Cancelling an already fired
	// event is a no-op.
	Cancel()
}

// Face provides the primitives to exchange packets with the network.
type Face interface {
	// Express sends the interest. Exactly one of the callbacks is invoked:
	// onData when a matching packet arrives before the interest lifetime
	// expires, onFailure otherwise.
	Express(itr *encoding.Interest,
		onData func(*encoding.Interest, *encoding.Data),
		onFailure func(*encoding.Interest, error))

	// Register installs a handler invoked for every incoming interest under
	// the prefix.
	Register(prefix encoding.Name, handler func(*encoding.Interest)) (Registration, error)

	// Put publishes a packet, satisfying the pending interests it matches.
	Put(data *encoding.Data) error
}

// Scheduler provides delayed callbacks.
type Scheduler interface {
	// Schedule invokes the function after the delay.
	Schedule(delay time.Duration, fn func()) Event
}
