package drive

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
)

func TestParseMode(t *testing.T) {
	for _, test := range []struct {
		mode string
		want Flags
	}{
		{"rb", Flags{Read: true}},
		{"r+b", Flags{Read: true, Write: true}},
		{"wb", Flags{Write: true, Create: true, Truncate: true}},
		{"w+b", Flags{Read: true, Write: true, Create: true, Truncate: true}},
		{"ab", Flags{Write: true, Create: true, Append: true}},
		{"a+b", Flags{Read: true, Write: true, Create: true, Append: true}},
		{"xb", Flags{Write: true, Create: true, Exclusive: true}},
		{"bw", Flags{Write: true, Create: true, Truncate: true}},
	} {
		got, err := ParseMode(test.mode)
		require.NoError(t, err, test.mode)
		assert.Equal(t, test.want, got, "mode %q", test.mode)
	}

	for _, mode := range []string{"", "r", "w", "b", "rt", "rw", "wa", "rbz", "+b"} {
		_, err := ParseMode(mode)
		assert.Error(t, err, "mode %q", mode)
	}
}

func openTestHandle(t *testing.T, d *Drive, name, mode string) *Handle {
	ctx := context.Background()
	flags, err := ParseMode(mode)
	require.NoError(t, err)
	node, err := d.Catalog().GetInfo(ctx, []string{name})
	if err == catalog.ErrorNotFound {
		node = nil
	} else {
		require.NoError(t, err)
	}
	h, err := d.Open(ctx, d.Catalog().Root(), node, name, flags)
	require.NoError(t, err)
	return h
}

func TestHandleWriteReadBack(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})

	h := openTestHandle(t, d, "f", "w+b")
	n, err := h.Write([]byte("hello handle"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	pos, err := h.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
	got, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "hello handle", string(got))
	require.NoError(t, h.Close())

	// a fresh handle sees the flushed content
	h = openTestHandle(t, d, "f", "rb")
	got, err = io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "hello handle", string(got))
	require.NoError(t, h.Close())
}

func TestHandleCreateVisibleBeforeClose(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	h := openTestHandle(t, d, "new", "wb")

	node, err := d.Catalog().GetInfo(context.Background(), []string{"new"})
	require.NoError(t, err, "the file exists as soon as it is opened for create")
	assert.Equal(t, int64(0), node.Details.Size)
	require.NoError(t, h.Close())
}

func TestHandleAppend(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()
	_, err := d.SendFile(ctx, d.Catalog().Root(), "log", strings.NewReader("one\n"))
	require.NoError(t, err)

	h := openTestHandle(t, d, "log", "ab")
	assert.Equal(t, int64(4), h.Size(), "append opens with the existing content")
	_, err = h.Write([]byte("two\n"))
	require.NoError(t, err)
	// append writes go to the end regardless of seeks
	_, err = h.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = h.Write([]byte("three\n"))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	node, err := d.Catalog().GetInfo(ctx, []string{"log"})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, d.DownloadFile(ctx, node, &out))
	assert.Equal(t, "one\ntwo\nthree\n", out.String())
}

func TestHandleTruncateOnOpen(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()
	_, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("old content"))
	require.NoError(t, err)

	// open for write and close without writing - the file is truncated
	h := openTestHandle(t, d, "f", "wb")
	require.NoError(t, h.Close())

	node, err := d.Catalog().GetInfo(ctx, []string{"f"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), node.Details.Size)
	assert.Empty(t, node.URLs)
}

func TestHandleTruncate(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	h := openTestHandle(t, d, "f", "w+b")
	_, err := h.Write([]byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, h.Truncate(4))
	assert.Equal(t, int64(4), h.Size())

	require.NoError(t, h.Truncate(8))
	_, err = h.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123\x00\x00\x00\x00"), got, "growing zero fills")
	require.NoError(t, h.Close())
}

func TestHandleWriteAtPastEnd(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	h := openTestHandle(t, d, "f", "w+b")
	_, err := h.WriteAt([]byte("end"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(8), h.Size())

	got := make([]byte, 8)
	_, err = h.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00\x00\x00\x00\x00end"), got)
	require.NoError(t, h.Close())
}

func TestHandleModeEnforcement(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()
	_, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("content"))
	require.NoError(t, err)

	ro := openTestHandle(t, d, "f", "rb")
	_, err = ro.Write([]byte("nope"))
	assert.Equal(t, ErrorNotWritable, err)
	require.NoError(t, ro.Close())

	wo := openTestHandle(t, d, "f", "ab")
	_, err = wo.Read(make([]byte, 4))
	assert.Equal(t, ErrorNotReadable, err)
	require.NoError(t, wo.Close())
}

func TestHandleClosed(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	h := openTestHandle(t, d, "f", "w+b")
	require.NoError(t, h.Close())

	_, err := h.Read(make([]byte, 1))
	assert.Equal(t, ErrorHandleClosed, err)
	_, err = h.Write([]byte("x"))
	assert.Equal(t, ErrorHandleClosed, err)
	assert.Equal(t, ErrorHandleClosed, h.Close())
}

func TestHandleReadOnlySkipsFlush(t *testing.T) {
	d, transport := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()
	_, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("content"))
	require.NoError(t, err)
	sends := transport.sends

	h := openTestHandle(t, d, "f", "rb")
	_, err = io.ReadAll(h)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, sends, transport.sends, "a read only handle uploads nothing on close")
}
