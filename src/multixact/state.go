package multixact

import (
	"sync"
	"sync/atomic"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

const vacuumSignalInterval = 65536

// sharedState is guarded by mu, except the per-slot arrays: each slot is
// written only by its owner, and loads and stores are atomic. Scans of the
// arrays still take mu so they see a consistent next id.
type sharedState struct {
	mu sync.RWMutex

	nextMXact       common.MultiXactID
	nextOffset      common.MultiXactOffset
	finishedStartup bool

	oldestMultiXactID common.MultiXactID
	oldestOwner       common.OwnerID
	multiVacLimit     common.MultiXactID

	// oldestMember is the oldest group the slot's unit of work could be a
	// member of. oldestVisible is the oldest group it could still need to
	// resolve.
	oldestMember  []atomic.Uint32
	oldestVisible []atomic.Uint32
}

func newSharedState(slots int) sharedState {
	return sharedState{
		nextMXact:         common.FirstMultiXactID,
		oldestMultiXactID: common.FirstMultiXactID,
		oldestMember:      make([]atomic.Uint32, slots),
		oldestVisible:     make([]atomic.Uint32, slots),
	}
}

func loadSlot(slots []atomic.Uint32, i int) common.MultiXactID {
	return common.MultiXactID(slots[i].Load())
}

func storeSlot(slots []atomic.Uint32, i int, v common.MultiXactID) {
	slots[i].Store(uint32(v))
}

// nextLocked must be called with mu held.
func (s *sharedState) nextLocked() common.MultiXactID {
	if s.nextMXact < common.FirstMultiXactID {
		return common.FirstMultiXactID
	}
	return s.nextMXact
}

type CheckpointState struct {
	NextID      common.MultiXactID
	NextOffset  common.MultiXactOffset
	OldestID    common.MultiXactID
	OldestOwner common.OwnerID
}

func (m *Manager) CheckpointState() CheckpointState {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	return CheckpointState{
		NextID:      m.state.nextMXact,
		NextOffset:  m.state.nextOffset,
		OldestID:    m.state.oldestMultiXactID,
		OldestOwner: m.state.oldestOwner,
	}
}

// ReadNextMultiXactID returns the id the next creation will get.
func (m *Manager) ReadNextMultiXactID() common.MultiXactID {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	return m.state.nextLocked()
}

// GetOldestMultiXactID is the oldest group any worker could still care
// about. Vacuum may freeze everything before it.
func (m *Manager) GetOldestMultiXactID() common.MultiXactID {
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()

	oldest := m.state.nextLocked()
	for i := range m.state.oldestMember {
		for _, slots := range [][]atomic.Uint32{m.state.oldestMember, m.state.oldestVisible} {
			v := loadSlot(slots, i)
			if v.IsValid() && v.Precedes(oldest) {
				oldest = v
			}
		}
	}

	return oldest
}

func (m *Manager) vacuumLimit(oldest common.MultiXactID) common.MultiXactID {
	limit := oldest + common.MultiXactID(m.opts.FreezeMaxAge)
	if limit < common.FirstMultiXactID {
		limit += common.FirstMultiXactID
	}
	return limit
}

// SetRetentionFloor records the oldest group that may still exist
// anywhere, and the owner it was found in.
func (m *Manager) SetRetentionFloor(oldest common.MultiXactID, owner common.OwnerID) {
	limit := m.vacuumLimit(oldest)

	m.state.mu.Lock()
	m.state.oldestMultiXactID = oldest
	m.state.oldestOwner = owner
	m.state.multiVacLimit = limit
	started := m.state.finishedStartup
	next := m.state.nextLocked()
	m.state.mu.Unlock()

	m.log.Debugw("multixact retention floor set", "oldest", oldest, "owner", owner, "vacuum_limit", limit)

	if started && !next.Precedes(limit) {
		m.signalVacuum(next)
	}
}

// SetNextMultiXactID sets the counters exactly, from a checkpoint.
func (m *Manager) SetNextMultiXactID(next common.MultiXactID, offset common.MultiXactOffset) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	m.state.nextMXact = next
	m.state.nextOffset = offset
}

// AdvanceNextMultiXactID moves the counters forward to at least the given
// values. They never move back.
func (m *Manager) AdvanceNextMultiXactID(minMulti common.MultiXactID, minOffset common.MultiXactOffset) {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	if m.state.nextMXact.Precedes(minMulti) {
		m.state.nextMXact = minMulti
	}
	if m.state.nextOffset.Precedes(minOffset) {
		m.state.nextOffset = minOffset
	}
}

// AdvanceOldest raises the retention floor if oldest is past it.
func (m *Manager) AdvanceOldest(oldest common.MultiXactID, owner common.OwnerID) {
	m.state.mu.RLock()
	current := m.state.oldestMultiXactID
	m.state.mu.RUnlock()

	if current.Precedes(oldest) {
		m.SetRetentionFloor(oldest, owner)
	}
}
