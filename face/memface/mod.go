// Package memface is an implementation of the face abstraction that routes
// packets between instances of the same process.
//
// A Manager connects the faces and owns a virtual clock: interest lifetimes
// and scheduled callbacks only progress when the test advances the clock
// explicitly, which makes timeout scenarios deterministic.
//
// The implementation expects the cooperative single-threaded model of the
// protocol: all calls happen from one goroutine, and handlers are invoked
// synchronously while an Express or Advance call is on the stack. A filter
// can be installed on a face to drop incoming interests, simulating an
// unreachable party.
package memface

import (
	"time"

	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/face"
	"golang.org/x/xerrors"
)

// Filter is a function called for any interest delivered to a face. The
// interest is dropped when it returns false.
type Filter func(*encoding.Interest) bool

// Face is an in-process face connected to its manager.
//
// - implements face.Face
type Face struct {
	manager *Manager
	filters []Filter
}

// NewFace creates a face attached to the manager.
func NewFace(manager *Manager) *Face {
	f := &Face{manager: manager}
	manager.faces = append(manager.faces, f)

	return f
}

// AddFilter adds a filter applied to the interests delivered to this face.
func (f *Face) AddFilter(filter Filter) {
	f.filters = append(f.filters, filter)
}

// Express implements face.Face. It records the pending interest and
// delivers it to the registered handlers.
func (f *Face) Express(itr *encoding.Interest,
	onData func(*encoding.Interest, *encoding.Data),
	onFailure func(*encoding.Interest, error)) {

	lifetime := itr.Lifetime
	if lifetime == 0 {
		lifetime = 4 * time.Second
	}

	entry := &pendingInterest{
		interest:  itr,
		onData:    onData,
		onFailure: onFailure,
		expiry:    f.manager.now + lifetime,
	}

	f.manager.pending = append(f.manager.pending, entry)
	f.manager.deliver(itr)
}

// Register implements face.Face. It installs a handler for the prefix.
func (f *Face) Register(prefix encoding.Name,
	handler func(*encoding.Interest)) (face.Registration, error) {

	reg := &registration{
		face:    f,
		prefix:  prefix,
		handler: handler,
	}

	f.manager.registrations = append(f.manager.registrations, reg)

	return reg, nil
}

// Put implements face.Face. It satisfies the pending interests matching the
// packet.
func (f *Face) Put(data *encoding.Data) error {
	if f.manager.satisfy(data) == 0 {
		return xerrors.Errorf("no pending interest for '%s'", data.Name)
	}

	return nil
}

func (f *Face) accepts(itr *encoding.Interest) bool {
	for _, filter := range f.filters {
		if !filter(itr) {
			return false
		}
	}

	return true
}

// registration is a handle on a registered prefix.
//
// - implements face.Registration
type registration struct {
	face    *Face
	prefix  encoding.Name
	handler func(*encoding.Interest)
	dead    bool
}

// Unregister implements face.Registration.
func (r *registration) Unregister() {
	r.dead = true
}

type pendingInterest struct {
	interest  *encoding.Interest
	onData    func(*encoding.Interest, *encoding.Data)
	onFailure func(*encoding.Interest, error)
	expiry    time.Duration
	done      bool
}
