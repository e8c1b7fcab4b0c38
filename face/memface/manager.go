package memface

import (
	"sort"
	"time"

	"go.dedis.ch/ndnmps/encoding"
	"go.dedis.ch/ndnmps/face"
)

// Manager connects in-process faces and owns the virtual clock.
//
// - implements face.Scheduler
type Manager struct {
	faces         []*Face
	registrations []*registration
	pending       []*pendingInterest
	timers        []*timer
	now           time.Duration
	seq           int
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Schedule implements face.Scheduler. It registers a callback fired when
// the clock advances past the delay.
func (m *Manager) Schedule(delay time.Duration, fn func()) face.Event {
	m.seq++
	t := &timer{at: m.now + delay, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)

	return t
}

// Now returns the current virtual time.
func (m *Manager) Now() time.Duration {
	return m.now
}

// Advance moves the virtual clock forward, firing due timers and expiring
// pending interests in chronological order.
func (m *Manager) Advance(d time.Duration) {
	target := m.now + d

	for {
		next, ok := m.nextDeadline(target)
		if !ok {
			break
		}

		m.now = next
		m.fireTimers()
		m.expireInterests()
	}

	m.now = target
	m.fireTimers()
	m.expireInterests()
}

func (m *Manager) nextDeadline(target time.Duration) (time.Duration, bool) {
	found := false
	next := target

	for _, t := range m.timers {
		if !t.dead && t.at > m.now && t.at < next {
			next = t.at
			found = true
		}
	}
	for _, p := range m.pending {
		if !p.done && p.expiry > m.now && p.expiry < next {
			next = p.expiry
			found = true
		}
	}

	return next, found
}

func (m *Manager) fireTimers() {
	due := make([]*timer, 0)
	for _, t := range m.timers {
		if !t.dead && t.at <= m.now {
			due = append(due, t)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})

	for _, t := range due {
		t.dead = true
		t.fn()
	}

	m.timers = keepTimers(m.timers)
}

func (m *Manager) expireInterests() {
	for _, p := range m.pending {
		if !p.done && p.expiry <= m.now {
			p.done = true
			if p.onFailure != nil {
				p.onFailure(p.interest, errTimeout)
			}
		}
	}

	m.pending = keepPending(m.pending)
}

// deliver hands the interest to every live registration matching its name.
func (m *Manager) deliver(itr *encoding.Interest) {
	regs := append([]*registration{}, m.registrations...)

	for _, reg := range regs {
		if reg.dead || !matchesPrefix(reg.prefix, itr.Name) {
			continue
		}

		if reg.face.accepts(itr) {
			reg.handler(itr)
		}
	}

	m.registrations = keepRegistrations(m.registrations)
}

// satisfy delivers the packet to the pending interests it matches and
// returns how many it satisfied.
func (m *Manager) satisfy(data *encoding.Data) int {
	count := 0

	entries := append([]*pendingInterest{}, m.pending...)
	for _, p := range entries {
		if p.done || !matchesData(p.interest, data) {
			continue
		}

		p.done = true
		count++
		if p.onData != nil {
			p.onData(p.interest, data)
		}
	}

	m.pending = keepPending(m.pending)

	return count
}

func matchesPrefix(prefix, name encoding.Name) bool {
	return prefix.IsPrefixOf(name)
}

func matchesData(itr *encoding.Interest, data *encoding.Data) bool {
	name := itr.Name

	if name.Size() > 0 && name.Get(-1).IsImplicitDigest() {
		return name.Equal(data.FullName())
	}

	if itr.CanBePrefix {
		return name.IsPrefixOf(data.Name)
	}

	return name.Equal(data.Name)
}

type timer struct {
	at   time.Duration
	seq  int
	fn   func()
	dead bool
}

// Cancel implements face.Event.
func (t *timer) Cancel() {
	t.dead = true
}

func keepTimers(in []*timer) []*timer {
	out := in[:0]
	for _, t := range in {
		if !t.dead {
			out = append(out, t)
		}
	}

	return out
}

func keepPending(in []*pendingInterest) []*pendingInterest {
	out := in[:0]
	for _, p := range in {
		if !p.done {
			out = append(out, p)
		}
	}

	return out
}

func keepRegistrations(in []*registration) []*registration {
	out := in[:0]
	for _, r := range in {
		if !r.dead {
			out = append(out, r)
		}
	}

	return out
}

var errTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string {
	return "interest timed out"
}
