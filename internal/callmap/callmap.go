// Package callmap holds the fixed-capacity pool of call records the
// B2BUA engine allocates, looks up, and releases.
package callmap

import (
	"net"
	"sync"
)

// Capacity is the fixed number of concurrent calls the server can track.
const Capacity = 32

// Leg identifies which side of a call matched a lookup.
type Leg int

const (
	LegNone Leg = iota
	LegA
	LegB
)

// State is one call's position in the B2BUA state machine.
type State int

const (
	StateIdle State = iota
	StateRouting
	StateRinging
	StateAnswered
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRouting:
		return "ROUTING"
	case StateRinging:
		return "RINGING"
	case StateAnswered:
		return "ANSWERED"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Media tracks whether SDP has been observed in each direction for a leg.
// Informational only; it never gates forwarding.
type Media struct {
	Local  bool
	Remote bool
}

// Call is the data carried by one slot. Field names mirror the data model:
// a_leg_*/b_leg_* become ALeg*/BLeg*.
type Call struct {
	State State

	ALegUUID string
	BLegUUID string

	ALegAddr *net.UDPAddr
	BLegAddr *net.UDPAddr

	ALegVia  string
	ALegFrom string
	ALegTo   string
	ALegCSeq string
	BLegVia  string
	BLegFrom string
	BLegTo   string
	BLegCSeq string

	// BLegCSeqNumber is the numeric CSeq this server assigned when it
	// originated the INVITE to B; later ACK/CANCEL to B reuse it.
	BLegCSeqNumber int

	ALegContact string
	BLegContact string

	ALegMedia Media
	BLegMedia Media

	Caller string
	Callee string
}

// Slot is one array element: a Call plus its own lock, serializing
// transitions per dialog independently of map-level operations.
type Slot struct {
	mu       sync.Mutex
	Index    int
	IsActive bool
	Call     Call
}

// Lock acquires the slot's per-dialog lock. Callers must Unlock when done.
func (s *Slot) Lock() { s.mu.Lock() }

// Unlock releases the slot's per-dialog lock.
func (s *Slot) Unlock() { s.mu.Unlock() }

// Map is the fixed-capacity pool, guarded by one lock for allocation and
// lookup.
type Map struct {
	mu     sync.Mutex
	slots  [Capacity]*Slot
	active int
}

// New builds an empty, fully-initialized call map.
func New() *Map {
	m := &Map{}
	for i := range m.slots {
		m.slots[i] = &Slot{Index: i}
	}
	return m
}

// Allocate reserves the first inactive slot. It returns (nil, false) when
// the pool is full.
func (m *Map) Allocate() (*Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if !s.IsActive {
			s.IsActive = true
			m.active++
			return s, true
		}
	}
	return nil, false
}

// FindByCallID scans active slots for one whose A-leg or B-leg dialog id
// matches id, returning the slot and which leg matched.
func (m *Map) FindByCallID(id string) (*Slot, Leg) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if !s.IsActive {
			continue
		}
		if s.Call.ALegUUID == id {
			return s, LegA
		}
		if s.Call.BLegUUID == id {
			return s, LegB
		}
	}
	return nil, LegNone
}

// Release reinitializes a slot to its zero value and decrements the active
// count. The caller must hold the slot's own lock; Release only takes the
// map lock.
func (m *Map) Release(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.IsActive {
		m.active--
	}
	s.IsActive = false
	s.Call = Call{}
}

// ActiveCount returns the number of currently occupied slots.
func (m *Map) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// DeriveBLegUUID overwrites the first five bytes of the A-leg Call-ID with
// the literal "b-leg", per the dialog correlation invariant. A Call-ID
// shorter than 5 bytes is overwritten entirely and yields "b-leg" itself,
// since a valid Call-ID is never that short in practice.
func DeriveBLegUUID(aLegUUID string) string {
	const prefix = "b-leg"
	if len(aLegUUID) >= len(prefix) {
		return prefix + aLegUUID[len(prefix):]
	}
	return prefix
}
