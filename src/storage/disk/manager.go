package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/multixact/src/pkg/utils"
)

const (
	PageSize        = 4096
	PagesPerSegment = 32
	SegmentSize     = PageSize * PagesPerSegment
)

var ErrPageNotFound = errors.New("page not found")

// Manager stores the pages of one log in segment files of PagesPerSegment
// pages each. Segment files live in dir and are named by their segment
// number in upper-case hex.
type Manager struct {
	fs  afero.Fs
	dir string

	mu *sync.RWMutex
}

func New(fs afero.Fs, dir string) *Manager {
	return &Manager{
		fs:  fs,
		dir: dir,
		mu:  new(sync.RWMutex),
	}
}

func (m *Manager) Init() error {
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", m.dir)
	}
	return nil
}

func SegmentName(segno int64) string {
	return fmt.Sprintf("%04X", segno)
}

func SegmentOf(pageno int64) int64 {
	return pageno / PagesPerSegment
}

func (m *Manager) segmentPath(segno int64) string {
	return filepath.Join(m.dir, SegmentName(segno))
}

func pageOffset(pageno int64) int64 {
	return (pageno % PagesPerSegment) * PageSize
}

// ReadPage fills dst with the page contents. It returns ErrPageNotFound
// when the segment is missing or too short to hold the page.
func (m *Manager) ReadPage(pageno int64, dst []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := m.segmentPath(SegmentOf(pageno))
	file, err := m.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrPageNotFound, "segment %s", path)
		}
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if info.Size() < pageOffset(pageno)+PageSize {
		return errors.Wrapf(ErrPageNotFound, "page %d in %s", pageno, path)
	}

	n, err := file.ReadAt(dst[:PageSize], pageOffset(pageno))
	if err != nil && !(errors.Is(err, io.EOF) && n == PageSize) {
		return errors.Wrapf(err, "read page %d from %s", pageno, path)
	}

	return nil
}

func (m *Manager) WritePage(pageno int64, src []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := m.segmentPath(SegmentOf(pageno))
	file, err := m.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	if _, err := file.WriteAt(src[:PageSize], pageOffset(pageno)); err != nil {
		return errors.Wrapf(err, "write page %d to %s", pageno, path)
	}
	if err := file.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", path)
	}

	return nil
}

// PageExists reports whether the page is physically present on disk.
func (m *Manager) PageExists(pageno int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size, err := utils.FileSize(m.fs, m.segmentPath(SegmentOf(pageno)))
	if err != nil {
		return false, err
	}

	return size >= pageOffset(pageno)+PageSize, nil
}

// Segments lists the segment numbers present in the directory, in no
// particular order. Files that don't look like segments are ignored.
func (m *Manager) Segments() ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read directory %s", m.dir)
	}

	segments := make([]int64, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		segno, ok := parseSegmentName(info.Name())
		if !ok {
			continue
		}
		segments = append(segments, segno)
	}

	return segments, nil
}

func parseSegmentName(name string) (int64, bool) {
	if len(name) < 4 || len(name) > 6 {
		return 0, false
	}
	for _, c := range name {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return 0, false
		}
	}
	segno, err := strconv.ParseInt(name, 16, 64)
	if err != nil {
		return 0, false
	}
	return segno, true
}

// DeleteSegment removes a segment file. A missing file is not an error.
func (m *Manager) DeleteSegment(segno int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.segmentPath(segno)
	if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", path)
	}
	return nil
}
