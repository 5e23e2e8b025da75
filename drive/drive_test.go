package drive

import (
	"bytes"
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
	"github.com/TWTom041/DiscordFS-SFTP/cipher"
	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
	"github.com/TWTom041/DiscordFS-SFTP/webhook"
)

// memTransport keeps uploaded chunks in memory, keyed by their CDN
// URL with the signature query stripped so renewed URLs still hit.
type memTransport struct {
	mu      sync.Mutex
	chunks  map[string][]byte
	nextID  uint64
	sends   int
	gets    int
	sendErr error
}

func newMemTransport() *memTransport {
	return &memTransport{chunks: make(map[string][]byte)}
}

func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

func (t *memTransport) Send(ctx context.Context, filename string, chunk []byte) (*webhook.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return nil, t.sendErr
	}
	t.nextID++
	t.sends++
	expire := time.Now().Unix() + 86400
	u := &dsurl.DSUrl{
		ChannelID:    42,
		MessageID:    t.nextID,
		AttachmentID: t.nextID,
		Filename:     filename,
		Expire:       expire,
		Issue:        expire - 86400,
		Signature:    []byte{0xab, 0xcd},
	}
	t.chunks[stripQuery(u.URL())] = append([]byte(nil), chunk...)
	id := strconv.FormatUint(t.nextID, 10)
	return &webhook.Message{
		ID: id,
		Attachments: []webhook.Attachment{
			{ID: id, Filename: filename, Size: int64(len(chunk)), URL: u.URL()},
		},
	}, nil
}

func (t *memTransport) Get(ctx context.Context, url string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gets++
	chunk, ok := t.chunks[stripQuery(url)]
	if !ok {
		return nil, assert.AnError
	}
	return chunk, nil
}

// stubPolicy renews by bumping the expiry, counting invocations.
type stubPolicy struct {
	expired bool
	renews  int32
}

func (p *stubPolicy) IsExpired(u *dsurl.DSUrl) bool { return p.expired }

func (p *stubPolicy) Renew(ctx context.Context, batch []*dsurl.DSUrl) ([]*dsurl.DSUrl, error) {
	atomic.AddInt32(&p.renews, 1)
	out := make([]*dsurl.DSUrl, len(batch))
	for i, u := range batch {
		cp := *u
		cp.Expire = time.Now().Unix() + 7200
		out[i] = &cp
	}
	return out, nil
}

const testChunkSize = 32

func newTestDrive(t *testing.T, policy *stubPolicy) (*Drive, *memTransport) {
	cat, err := catalog.New(context.Background(), catalog.NewMem())
	require.NoError(t, err)
	transport := newMemTransport()
	d := New(cat, transport, cipher.New([]byte("test passphrase")), policy)
	d.SetChunkSize(testChunkSize)
	return d, transport
}

func TestChunkName(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592-3610a686", chunkName([]byte("hello")))
}

func TestSendFileRoundTrip(t *testing.T) {
	d, transport := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()

	content := make([]byte, testChunkSize*3+4)
	_, err := rand.New(rand.NewSource(1)).Read(content)
	require.NoError(t, err)

	node, err := d.SendFile(ctx, d.Catalog().Root(), "data.bin", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), node.Details.Size)
	require.Len(t, node.URLs, 4)
	require.Len(t, node.ChunkSizes, 4)
	assert.Equal(t, 4, transport.sends)
	for i, want := range []int{testChunkSize, testChunkSize, testChunkSize, 4} {
		assert.Equal(t, int64(cipher.Overhead(want)), node.ChunkSizes[i], "chunk %d", i)
	}

	var out bytes.Buffer
	require.NoError(t, d.DownloadFile(ctx, node, &out))
	assert.Equal(t, content, out.Bytes())
}

func TestSendPathDownloadPath(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()

	// the parent chain is created on the way
	node, err := d.SendPath(ctx, "/deep/sub/dir/report.txt", strings.NewReader("path variant"))
	require.NoError(t, err)
	assert.Equal(t, "report.txt", node.Name)
	parents, err := d.Catalog().GetInfo(ctx, []string{"deep", "sub", "dir"})
	require.NoError(t, err)
	assert.True(t, parents.IsDir())

	var out bytes.Buffer
	require.NoError(t, d.DownloadPath(ctx, "/deep/sub/dir/report.txt", &out))
	assert.Equal(t, "path variant", out.String())
}

func TestSendPathRoot(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	_, err := d.SendPath(context.Background(), "/", strings.NewReader("x"))
	assert.Equal(t, catalog.ErrorWrongKind, err)
}

func TestDownloadPathErrors(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()

	var out bytes.Buffer
	assert.Equal(t, catalog.ErrorNotFound, d.DownloadPath(ctx, "/missing", &out))

	_, err := d.Catalog().MakeDirs(ctx, []string{"dir"}, true, true)
	require.NoError(t, err)
	assert.Equal(t, catalog.ErrorWrongKind, d.DownloadPath(ctx, "/dir", &out))
}

func TestSendFileEmpty(t *testing.T) {
	d, transport := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()

	node, err := d.SendFile(ctx, d.Catalog().Root(), "empty", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, node.URLs)
	assert.Equal(t, int64(0), node.Details.Size)
	assert.Equal(t, 0, transport.sends)

	var out bytes.Buffer
	require.NoError(t, d.DownloadFile(ctx, node, &out))
	assert.Zero(t, out.Len())
	assert.Equal(t, 0, transport.gets, "an empty file downloads nothing")
}

func TestSendFileOverwrite(t *testing.T) {
	d, _ := newTestDrive(t, &stubPolicy{})
	ctx := context.Background()

	first, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("version one"))
	require.NoError(t, err)
	second, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("the second, longer version"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "overwrite keeps the node")
	assert.NotEqual(t, first.URLs, second.URLs, "locators are replaced wholesale")
	assert.True(t, second.Details.Modified.After(first.Details.Modified))

	var out bytes.Buffer
	require.NoError(t, d.DownloadFile(ctx, second, &out))
	assert.Equal(t, "the second, longer version", out.String())
}

func TestSendFileUploadError(t *testing.T) {
	d, transport := newTestDrive(t, &stubPolicy{})
	transport.sendErr = assert.AnError
	_, err := d.SendFile(context.Background(), d.Catalog().Root(), "f", strings.NewReader("content"))
	require.Error(t, err)
	// nothing committed
	_, err = d.Catalog().GetInfo(context.Background(), []string{"f"})
	assert.Equal(t, catalog.ErrorNotFound, err)
}

func TestDownloadFileRenewsStaleLocators(t *testing.T) {
	policy := &stubPolicy{expired: true}
	d, _ := newTestDrive(t, policy)
	ctx := context.Background()

	node, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("needs renewal"))
	require.NoError(t, err)
	oldExpire := node.URLs[0].Expire

	var out bytes.Buffer
	require.NoError(t, d.DownloadFile(ctx, node, &out))
	assert.Equal(t, "needs renewal", out.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&policy.renews))

	// the renewed locators were persisted
	stored, err := d.Catalog().GetInfo(ctx, []string{"f"})
	require.NoError(t, err)
	assert.Greater(t, stored.URLs[0].Expire, oldExpire)
}

func TestDownloadFileFreshLocatorsSkipRenewal(t *testing.T) {
	policy := &stubPolicy{}
	d, _ := newTestDrive(t, policy)
	ctx := context.Background()

	node, err := d.SendFile(ctx, d.Catalog().Root(), "f", strings.NewReader("fresh"))
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, d.DownloadFile(ctx, node, &out))
	assert.Equal(t, int32(0), atomic.LoadInt32(&policy.renews))
}
