package multixact

import (
	"encoding/binary"
	"slices"

	"github.com/hashicorp/golang-lru/simplelru"

	"github.com/Blackdeer1524/multixact/src/pkg/assert"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/pkg/optional"
)

const defaultCacheEntries = 256

type cacheEntry struct {
	multi   common.MultiXactID
	key     string
	members []common.MultiXactMember
}

// memberCache remembers groups created or resolved during one unit of work,
// searchable both by id and by member set. Member sets are kept sorted.
// Not safe for concurrent use: every Session owns one.
type memberCache struct {
	lru   *simplelru.LRU
	bySet map[string]common.MultiXactID
}

func newMemberCache(size int) *memberCache {
	if size <= 0 {
		size = defaultCacheEntries
	}

	c := &memberCache{bySet: make(map[string]common.MultiXactID)}
	lru, err := simplelru.NewLRU(size, func(_, value interface{}) {
		e := value.(*cacheEntry)
		if id, ok := c.bySet[e.key]; ok && id == e.multi {
			delete(c.bySet, e.key)
		}
	})
	assert.NoError(err)
	c.lru = lru

	return c
}

func sortMembers(members []common.MultiXactMember) []common.MultiXactMember {
	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b common.MultiXactMember) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// setKey encodes a sorted member set.
func setKey(sorted []common.MultiXactMember) string {
	buf := make([]byte, 0, len(sorted)*5)
	for _, m := range sorted {
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Xid))
		buf = append(buf, byte(m.Status))
	}
	return string(buf)
}

func (c *memberCache) getBySet(sorted []common.MultiXactMember) optional.Optional[common.MultiXactID] {
	id, ok := c.bySet[setKey(sorted)]
	if !ok {
		return optional.None[common.MultiXactID]()
	}
	c.lru.Get(id)
	return optional.Some(id)
}

// getByID returns a copy of the cached members.
func (c *memberCache) getByID(multi common.MultiXactID) ([]common.MultiXactMember, bool) {
	v, ok := c.lru.Get(multi)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.(*cacheEntry).members), true
}

func (c *memberCache) put(multi common.MultiXactID, members []common.MultiXactMember) {
	sorted := sortMembers(members)
	e := &cacheEntry{
		multi:   multi,
		key:     setKey(sorted),
		members: sorted,
	}

	if old, ok := c.lru.Peek(multi); ok {
		oe := old.(*cacheEntry)
		if id, ok := c.bySet[oe.key]; ok && id == multi {
			delete(c.bySet, oe.key)
		}
	}

	c.lru.Add(multi, e)
	c.bySet[e.key] = multi
}

func (c *memberCache) len() int {
	return c.lru.Len()
}

func (c *memberCache) reset() {
	c.lru.Purge()
	clear(c.bySet)
}
