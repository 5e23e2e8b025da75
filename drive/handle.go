package drive

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
)

// Errors returned by handle operations
var (
	ErrorHandleClosed = errors.New("file handle is closed")
	ErrorNotReadable  = errors.New("file handle is not open for reading")
	ErrorNotWritable  = errors.New("file handle is not open for writing")
)

// Flags is a decoded open mode.
type Flags struct {
	Read      bool
	Write     bool
	Append    bool
	Truncate  bool
	Create    bool
	Exclusive bool
}

// ParseMode decodes an open mode string like "rb", "w+b" or "ab".
//
// Exactly one of r/w/a/x must appear, the b marker is required (there
// is no text mode) and "+" widens the mode to read-write.
func ParseMode(mode string) (Flags, error) {
	var f Flags
	var base byte
	hasB := false
	for i := 0; i < len(mode); i++ {
		switch ch := mode[i]; ch {
		case 'r', 'w', 'a', 'x':
			if base != 0 {
				return Flags{}, errors.Errorf("invalid open mode %q", mode)
			}
			base = ch
		case '+':
			f.Read = true
			f.Write = true
		case 'b':
			hasB = true
		default:
			return Flags{}, errors.Errorf("invalid open mode %q", mode)
		}
	}
	if base == 0 || !hasB {
		return Flags{}, errors.Errorf("invalid open mode %q", mode)
	}
	switch base {
	case 'r':
		f.Read = true
	case 'w':
		f.Write = true
		f.Create = true
		f.Truncate = true
	case 'a':
		f.Write = true
		f.Create = true
		f.Append = true
	case 'x':
		f.Write = true
		f.Create = true
		f.Exclusive = true
	}
	return f, nil
}

// Handle is an open file: a fully buffered copy of the content,
// flushed back as a fresh chunk set on Close when it was written to.
type Handle struct {
	mu     sync.Mutex
	d      *Drive
	ctx    context.Context
	parent *catalog.Node
	name   string
	flags  Flags
	buf    []byte
	pos    int64
	dirty  bool
	closed bool
}

// Handle implements these
var (
	_ io.Reader   = (*Handle)(nil)
	_ io.ReaderAt = (*Handle)(nil)
	_ io.Writer   = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Seeker   = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)

// Open opens name under parent with flags.  node is the existing file
// node, or nil when there is none - existence policy (missing file,
// exclusive create) is the caller's business.
//
// A newly created file is committed empty right away so it is visible
// before the handle is closed.  Truncating an existing file marks the
// handle dirty so a plain open-close pair actually truncates.
func (d *Drive) Open(ctx context.Context, parent *catalog.Node, node *catalog.Node, name string, flags Flags) (*Handle, error) {
	h := &Handle{
		d:      d,
		ctx:    ctx,
		parent: parent,
		name:   name,
		flags:  flags,
	}
	if node != nil && !flags.Truncate {
		var buf bytes.Buffer
		if err := d.DownloadFile(ctx, node, &buf); err != nil {
			return nil, err
		}
		h.buf = buf.Bytes()
	}
	if node != nil && flags.Truncate {
		h.dirty = true
	}
	if node == nil && flags.Create {
		if _, err := d.catalog.CommitFile(ctx, parent, name, nil, nil, 0); err != nil {
			return nil, err
		}
	}
	if flags.Append {
		h.pos = int64(len(h.buf))
	}
	return h, nil
}

// Size returns the current content length.
func (h *Handle) Size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.buf))
}

// Read reads from the current position.
func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.readAt(p, h.pos)
	h.pos += int64(n)
	return n, err
}

// ReadAt reads at off without moving the position.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readAt(p, off)
}

func (h *Handle) readAt(p []byte, off int64) (int, error) {
	if h.closed {
		return 0, ErrorHandleClosed
	}
	if !h.flags.Read {
		return 0, ErrorNotReadable
	}
	if off >= int64(len(h.buf)) {
		return 0, io.EOF
	}
	n := copy(p, h.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write writes at the current position, or at the end in append mode.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.flags.Append {
		h.pos = int64(len(h.buf))
	}
	n, err := h.writeAt(p, h.pos)
	h.pos += int64(n)
	return n, err
}

// WriteAt writes at off without moving the position.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeAt(p, off)
}

func (h *Handle) writeAt(p []byte, off int64) (int, error) {
	if h.closed {
		return 0, ErrorHandleClosed
	}
	if !h.flags.Write {
		return 0, ErrorNotWritable
	}
	if end := off + int64(len(p)); end > int64(len(h.buf)) {
		// writing past the end zero fills the gap
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[off:], p)
	h.dirty = true
	return len(p), nil
}

// Seek moves the position.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrorHandleClosed
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = h.pos + offset
	case io.SeekEnd:
		pos = int64(len(h.buf)) + offset
	default:
		return 0, errors.Errorf("invalid seek whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	h.pos = pos
	return pos, nil
}

// Truncate resizes the content to size, zero filling when growing.
func (h *Handle) Truncate(size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrorHandleClosed
	}
	if !h.flags.Write {
		return ErrorNotWritable
	}
	switch {
	case size < int64(len(h.buf)):
		h.buf = h.buf[:size]
	case size > int64(len(h.buf)):
		grown := make([]byte, size)
		copy(grown, h.buf)
		h.buf = grown
	}
	h.dirty = true
	return nil
}

// Close flushes the buffered content back through the drive when the
// handle was written to, then invalidates the handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrorHandleClosed
	}
	h.closed = true
	if !h.dirty || !h.flags.Write {
		return nil
	}
	_, err := h.d.SendFile(h.ctx, h.parent, h.name, bytes.NewReader(h.buf))
	return err
}
