package bufferpool

import (
	"container/list"
	"sync"

	"github.com/go-faster/errors"
)

var ErrNoVictim = errors.New("no victim available")

// LRUReplacer tracks the frames that may be evicted. Pinned frames are not
// in the list at all.
type LRUReplacer struct {
	mu     sync.Mutex
	lru    *list.List
	frames map[uint64]*list.Element
}

var (
	_ Replacer = &LRUReplacer{}
)

func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		lru:    list.New(),
		frames: make(map[uint64]*list.Element),
	}
}

// Pin makes the frame ineligible for eviction.
func (l *LRUReplacer) Pin(frameID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.frames[frameID]; ok {
		l.lru.Remove(elem)
		delete(l.frames, frameID)
	}
}

// Unpin makes the frame eligible for eviction as the most recently used one.
func (l *LRUReplacer) Unpin(frameID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, exists := l.frames[frameID]; exists {
		l.lru.MoveToFront(elem)
		return
	}

	l.frames[frameID] = l.lru.PushFront(frameID)
}

// Touch marks an unpinned frame as just used. Pinned frames stay pinned.
func (l *LRUReplacer) Touch(frameID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.frames[frameID]; ok {
		l.lru.MoveToFront(elem)
	}
}

func (l *LRUReplacer) ChooseVictim() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem := l.lru.Back()
	if elem == nil {
		return 0, ErrNoVictim
	}

	frameID := elem.Value.(uint64)

	l.lru.Remove(elem)
	delete(l.frames, frameID)

	return frameID, nil
}

func (l *LRUReplacer) GetSize() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return uint64(len(l.frames))
}
