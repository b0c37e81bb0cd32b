package bufferpool

import (
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src"
	"github.com/Blackdeer1524/multixact/src/pkg/assert"
	"github.com/Blackdeer1524/multixact/src/storage/disk"
)

type Replacer interface {
	Pin(frameID uint64)
	Unpin(frameID uint64)
	Touch(frameID uint64)
	ChooseVictim() (uint64, error)
	GetSize() uint64
}

type DiskManager interface {
	ReadPage(pageno int64, dst []byte) error
	WritePage(pageno int64, src []byte) error
	PageExists(pageno int64) (bool, error)
	Segments() ([]int64, error)
	DeleteSegment(segno int64) error
}

var (
	_ DiskManager = &disk.Manager{}
)

// PagePrecedes orders page numbers of a log that wraps around.
type PagePrecedes func(a, b int64) bool

type frame struct {
	data   []byte
	pageNo int64
	dirty  bool
}

// Pool caches a fixed number of pages of one log. Its lock is the log's
// control lock: page contents may only be touched while it is held, either
// through View (shared) or Exclusive.
//
// The page that was zeroed or marked latest last is never chosen for
// eviction.
type Pool struct {
	name        string
	pageToFrame map[int64]uint64
	frames      []frame
	emptyFrames []uint64

	replacer    Replacer
	diskManager DiskManager
	precedes    PagePrecedes
	log         src.Logger

	latestPage  int64
	zeroMissing bool

	mu sync.RWMutex
}

func New(
	name string,
	poolSize uint64,
	replacer Replacer,
	diskManager DiskManager,
	precedes PagePrecedes,
	log src.Logger,
) *Pool {
	assert.Assert(poolSize >= 2, "pool %s needs at least two frames, got %d", name, poolSize)

	emptyFrames := make([]uint64, poolSize)
	frames := make([]frame, poolSize)
	for i := range poolSize {
		emptyFrames[i] = i
		frames[i] = frame{data: make([]byte, disk.PageSize), pageNo: -1}
	}

	return &Pool{
		name:        name,
		pageToFrame: make(map[int64]uint64),
		frames:      frames,
		emptyFrames: emptyFrames,
		replacer:    replacer,
		diskManager: diskManager,
		precedes:    precedes,
		log:         log,
		latestPage:  -1,
	}
}

// SetZeroMissing makes reads of pages absent on disk return zeroes instead
// of failing. Replay turns it on: a page may have been truncated away after
// the record that references it was written.
func (p *Pool) SetZeroMissing(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.zeroMissing = v
}

func (p *Pool) LatestPage() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.latestPage
}

func (p *Pool) SetLatestPage(pageno int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setLatestPage(pageno)
}

func (p *Pool) setLatestPage(pageno int64) {
	if id, ok := p.pageToFrame[p.latestPage]; ok {
		p.replacer.Unpin(id)
	}
	p.latestPage = pageno
	if id, ok := p.pageToFrame[pageno]; ok {
		p.replacer.Pin(id)
	}
}

// Txn gives access to the pool while its lock is held exclusively. Slices
// it returns are only valid until the next call on the same Txn.
type Txn struct {
	p *Pool
}

// Page returns the page for modification.
func (t Txn) Page(pageno int64) ([]byte, error) {
	id, err := t.p.loadFrame(pageno)
	if err != nil {
		return nil, err
	}
	t.p.frames[id].dirty = true
	return t.p.frames[id].data, nil
}

func (t Txn) ReadPage(pageno int64) ([]byte, error) {
	id, err := t.p.loadFrame(pageno)
	if err != nil {
		return nil, err
	}
	return t.p.frames[id].data, nil
}

// ZeroPage initializes the page in memory and makes it the latest one.
func (t Txn) ZeroPage(pageno int64) ([]byte, error) {
	return t.p.zeroPage(pageno)
}

func (p *Pool) Exclusive(fn func(tx Txn) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return fn(Txn{p: p})
}

var errNotResident = errors.New("page is not resident")

// ReadTxn gives read-only access to the pool's pages. Slices it returns
// must not be modified.
type ReadTxn struct {
	p      *Pool
	shared bool
}

// ReadPage returns the page for reading. Under the shared lock only
// resident pages can be returned.
func (t ReadTxn) ReadPage(pageno int64) ([]byte, error) {
	if !t.shared {
		return Txn{p: t.p}.ReadPage(pageno)
	}

	id, ok := t.p.pageToFrame[pageno]
	if !ok {
		return nil, errors.Wrapf(errNotResident, "%s: page %d", t.p.name, pageno)
	}
	t.p.replacer.Touch(id)
	return t.p.frames[id].data, nil
}

// Shared runs fn under the shared lock. If fn needs a page that is not in
// memory, it is run again from the start under the exclusive lock, so it
// must not have effects other than reading pages.
func (p *Pool) Shared(fn func(tx ReadTxn) error) error {
	p.mu.RLock()
	err := fn(ReadTxn{p: p, shared: true})
	p.mu.RUnlock()

	if !errors.Is(err, errNotResident) {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return fn(ReadTxn{p: p})
}

// View runs fn on a read-only copy-free view of the page. The shared lock
// suffices when the page is resident, otherwise the page is loaded under
// the exclusive lock.
func (p *Pool) View(pageno int64, fn func(page []byte)) error {
	p.mu.RLock()
	if id, ok := p.pageToFrame[pageno]; ok {
		p.replacer.Touch(id)
		fn(p.frames[id].data)
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.loadFrame(pageno)
	if err != nil {
		return err
	}
	fn(p.frames[id].data)
	return nil
}

func (p *Pool) ZeroPage(pageno int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.zeroPage(pageno)
	return err
}

func (p *Pool) WritePage(pageno int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writePage(pageno)
}

func (p *Pool) zeroPage(pageno int64) ([]byte, error) {
	id, ok := p.pageToFrame[pageno]
	if !ok {
		var err error
		id, err = p.allocFrame()
		if err != nil {
			return nil, err
		}
		p.install(id, pageno)
	}

	fr := &p.frames[id]
	clear(fr.data)
	fr.dirty = true
	p.setLatestPage(pageno)

	return fr.data, nil
}

func (p *Pool) writePage(pageno int64) error {
	id, ok := p.pageToFrame[pageno]
	if !ok {
		return nil
	}

	fr := &p.frames[id]
	if err := p.diskManager.WritePage(pageno, fr.data); err != nil {
		return errors.Wrapf(err, "%s: write page %d", p.name, pageno)
	}
	fr.dirty = false

	return nil
}

func (p *Pool) loadFrame(pageno int64) (uint64, error) {
	if id, ok := p.pageToFrame[pageno]; ok {
		p.replacer.Touch(id)
		return id, nil
	}

	id, err := p.allocFrame()
	if err != nil {
		return 0, err
	}

	fr := &p.frames[id]
	if err := p.diskManager.ReadPage(pageno, fr.data); err != nil {
		if !errors.Is(err, disk.ErrPageNotFound) || !p.zeroMissing {
			p.emptyFrames = append(p.emptyFrames, id)
			return 0, errors.Wrapf(err, "%s: read page %d", p.name, pageno)
		}
		p.log.Infow("page is missing, reading as zeroes", "log", p.name, "page", pageno)
		clear(fr.data)
	}
	p.install(id, pageno)

	return id, nil
}

func (p *Pool) install(id uint64, pageno int64) {
	fr := &p.frames[id]
	fr.pageNo = pageno
	fr.dirty = false
	p.pageToFrame[pageno] = id

	if pageno == p.latestPage {
		p.replacer.Pin(id)
	} else {
		p.replacer.Unpin(id)
	}
}

func (p *Pool) allocFrame() (uint64, error) {
	if len(p.emptyFrames) > 0 {
		id := p.emptyFrames[len(p.emptyFrames)-1]
		p.emptyFrames = p.emptyFrames[:len(p.emptyFrames)-1]
		return id, nil
	}

	victim, err := p.replacer.ChooseVictim()
	if err != nil {
		return 0, errors.Wrapf(err, "%s: no frame to evict", p.name)
	}

	fr := &p.frames[victim]
	if fr.dirty {
		if err := p.diskManager.WritePage(fr.pageNo, fr.data); err != nil {
			p.replacer.Unpin(victim)
			return 0, errors.Wrapf(err, "%s: write back page %d", p.name, fr.pageNo)
		}
	}

	delete(p.pageToFrame, fr.pageNo)
	fr.pageNo = -1
	fr.dirty = false

	return victim, nil
}

func (p *Pool) evict(id uint64) {
	fr := &p.frames[id]
	p.replacer.Pin(id)
	delete(p.pageToFrame, fr.pageNo)
	fr.pageNo = -1
	fr.dirty = false
	p.emptyFrames = append(p.emptyFrames, id)
}

// Flush writes every dirty page out.
func (p *Pool) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.frames {
		fr := &p.frames[i]
		if fr.pageNo < 0 || !fr.dirty {
			continue
		}
		if err := p.diskManager.WritePage(fr.pageNo, fr.data); err != nil {
			return errors.Wrapf(err, "%s: flush page %d", p.name, fr.pageNo)
		}
		fr.dirty = false
	}

	return nil
}

func (p *Pool) PageExists(pageno int64) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.diskManager.PageExists(pageno)
}

// EarliestPage returns the first page of the logically earliest segment on
// disk, ordered by the pool's precedes function.
func (p *Pool) EarliestPage() (int64, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	segs, err := p.diskManager.Segments()
	if err != nil {
		return 0, false, errors.Wrapf(err, "%s: scan segments", p.name)
	}
	if len(segs) == 0 {
		return 0, false, nil
	}

	earliest := segs[0]
	for _, s := range segs[1:] {
		if p.precedes(s*disk.PagesPerSegment, earliest*disk.PagesPerSegment) {
			earliest = s
		}
	}

	return earliest * disk.PagesPerSegment, true, nil
}

// DeleteSegment drops the segment both from memory and from disk.
func (p *Pool) DeleteSegment(segno int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for pageno, id := range p.pageToFrame {
		if disk.SegmentOf(pageno) == segno {
			p.evict(id)
		}
	}

	if err := p.diskManager.DeleteSegment(segno); err != nil {
		return errors.Wrapf(err, "%s: delete segment %s", p.name, disk.SegmentName(segno))
	}
	p.log.Debugw("deleted segment", "log", p.name, "segment", disk.SegmentName(segno))

	return nil
}

// Truncate removes every segment that lies wholly before the segment
// holding cutoffPage.
func (p *Pool) Truncate(cutoffPage int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoffPage -= cutoffPage % disk.PagesPerSegment

	if p.latestPage >= 0 && p.precedes(p.latestPage, cutoffPage) {
		p.log.Warnw(
			"could not truncate, apparent wraparound",
			"log", p.name,
			"latest_page", p.latestPage,
			"cutoff_page", cutoffPage,
		)
		return nil
	}

	for pageno, id := range p.pageToFrame {
		if p.precedes(pageno, cutoffPage) {
			p.evict(id)
		}
	}

	segs, err := p.diskManager.Segments()
	if err != nil {
		return errors.Wrapf(err, "%s: scan segments", p.name)
	}
	for _, segno := range segs {
		if !p.precedes(segno*disk.PagesPerSegment, cutoffPage) {
			continue
		}
		if err := p.diskManager.DeleteSegment(segno); err != nil {
			return errors.Wrapf(err, "%s: delete segment %s", p.name, disk.SegmentName(segno))
		}
		p.log.Debugw("removed segment", "log", p.name, "segment", disk.SegmentName(segno))
	}

	return nil
}

// Resident reports how many pages are held in memory.
func (p *Pool) Resident() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.pageToFrame)
}
