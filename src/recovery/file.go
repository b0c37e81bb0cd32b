package recovery

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/multixact/src"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

const (
	frameHeaderSize = 8
	maxFramePayload = 1 << 24
)

// FileLog is an append-only journal file. Every record is framed as
//
//	checksum uint32 | length uint32 | payload
//
// where checksum is the low half of the xxhash of length and payload. An
// LSN is the file offset right after the frame.
type FileLog struct {
	mu      sync.Mutex
	path    string
	file    afero.File
	end     int64
	flushed common.LSN
	log     src.Logger
}

var (
	_ Sink = &FileLog{}
)

// OpenFileLog opens or creates the journal. A torn or corrupt tail left by
// a crash is cut off.
func OpenFileLog(fs afero.Fs, path string, log src.Logger) (*FileLog, error) {
	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "stat journal %s", path)
	}

	end := int64(0)
	for {
		_, next, ok, err := readFrame(file, end, info.Size())
		if err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "scan journal %s", path)
		}
		if !ok {
			break
		}
		end = next
	}

	if end < info.Size() {
		log.Warnw("discarding torn journal tail", "path", path, "valid", end, "size", info.Size())
		if err := file.Truncate(end); err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "truncate journal %s", path)
		}
	}

	return &FileLog{
		path:    path,
		file:    file,
		end:     end,
		flushed: common.LSN(end),
		log:     log,
	}, nil
}

func frameChecksum(lengthBytes, payload []byte) uint32 {
	d := xxhash.New()
	_, _ = d.Write(lengthBytes)
	_, _ = d.Write(payload)
	return uint32(d.Sum64())
}

// readFrame returns ok=false when no complete, intact frame starts at pos.
func readFrame(r io.ReaderAt, pos, end int64) ([]byte, int64, bool, error) {
	if end-pos < frameHeaderSize {
		return nil, pos, false, nil
	}

	var hdr [frameHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], pos); err != nil && !errors.Is(err, io.EOF) {
		return nil, pos, false, err
	}

	sum := binary.BigEndian.Uint32(hdr[0:4])
	length := int64(binary.BigEndian.Uint32(hdr[4:8]))
	if length == 0 || length > maxFramePayload || pos+frameHeaderSize+length > end {
		return nil, pos, false, nil
	}

	payload := make([]byte, length)
	n, err := r.ReadAt(payload, pos+frameHeaderSize)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, pos, false, err
	}

	if frameChecksum(hdr[4:8], payload) != sum {
		return nil, pos, false, nil
	}

	return payload, pos + frameHeaderSize + length, true, nil
}

func (l *FileLog) Append(r Record) (common.LSN, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return common.NIL_LSN, errors.Wrap(err, "marshal record")
	}

	frame := make([]byte, frameHeaderSize+len(data))
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(data)))
	copy(frame[frameHeaderSize:], data)
	binary.BigEndian.PutUint32(frame[0:4], frameChecksum(frame[4:8], data))

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.WriteAt(frame, l.end); err != nil {
		return common.NIL_LSN, errors.Wrapf(err, "append to journal %s", l.path)
	}
	l.end += int64(len(frame))

	return common.LSN(l.end), nil
}

func (l *FileLog) Flush(lsn common.LSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lsn <= l.flushed {
		return nil
	}
	if lsn > common.LSN(l.end) {
		return errors.Errorf("flush past end of journal: %d > %d", lsn, l.end)
	}

	if err := l.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync journal %s", l.path)
	}
	l.flushed = common.LSN(l.end)

	return nil
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync journal %s", l.path)
	}
	return l.file.Close()
}

// Iterator walks the records appended so far.
func (l *FileLog) Iterator() Iterator {
	l.mu.Lock()
	defer l.mu.Unlock()

	return &fileIter{r: l.file, end: l.end}
}

type fileIter struct {
	r   io.ReaderAt
	end int64

	pos     int64
	payload []byte
	done    bool
}

func (it *fileIter) MoveForward() (bool, error) {
	if it.done {
		return false, nil
	}

	payload, next, ok, err := readFrame(it.r, it.pos, it.end)
	if err != nil {
		return false, err
	}
	if !ok {
		it.done = true
		it.payload = nil
		return false, nil
	}

	it.payload = payload
	it.pos = next
	return true, nil
}

func (it *fileIter) ReadRecord() (Record, error) {
	if it.payload == nil {
		return nil, ErrInvalidIterator
	}
	return ReadRecord(it.payload)
}

func (it *fileIter) Location() common.LSN {
	return common.LSN(it.pos)
}
