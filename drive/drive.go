// Package drive is the chunked object engine: it slices file content
// into fixed size chunks, encrypts them, ships them through the
// transport and records the resulting locators in the catalog.
package drive

import (
	"context"
	"crypto/md5"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
	"github.com/TWTom041/DiscordFS-SFTP/cipher"
	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
	"github.com/TWTom041/DiscordFS-SFTP/expire"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
	"github.com/TWTom041/DiscordFS-SFTP/webhook"
)

// DefaultChunkSize is the plaintext chunk size.  The remote caps
// uploads at 25 MiB, and encryption plus base64 add roughly a third on
// top, so stay comfortably below.
const DefaultChunkSize = 24 * 1024 * 1024

// Transport moves chunk bytes to and from the remote store.
// *webhook.Ring implements it.
type Transport interface {
	Send(ctx context.Context, filename string, chunk []byte) (*webhook.Message, error)
	Get(ctx context.Context, url string) ([]byte, error)
}

var _ Transport = (*webhook.Ring)(nil)

// Drive uploads and downloads whole files as ordered chunk sets.
type Drive struct {
	catalog   *catalog.Catalog
	transport Transport
	cipher    *cipher.Cipher
	policy    expire.Policy
	chunkSize int64
}

// New makes a Drive with the default chunk size.
func New(cat *catalog.Catalog, transport Transport, ciph *cipher.Cipher, policy expire.Policy) *Drive {
	return &Drive{
		catalog:   cat,
		transport: transport,
		cipher:    ciph,
		policy:    policy,
		chunkSize: DefaultChunkSize,
	}
}

// String converts it to printable
func (d *Drive) String() string {
	return "drive"
}

// SetChunkSize overrides the plaintext chunk size.
func (d *Drive) SetChunkSize(size int64) {
	d.chunkSize = size
}

// Catalog returns the catalog the drive records into.
func (d *Drive) Catalog() *catalog.Catalog {
	return d.catalog
}

// chunkName is the remote filename for an encrypted chunk, derived
// from the chunk's md5 and crc32.
func chunkName(enc []byte) string {
	sum := md5.Sum(enc)
	return fmt.Sprintf("%x-%08x", sum, crc32.ChecksumIEEE(enc))
}

// sendChunk encrypts and uploads one chunk, returning its locator and
// the uploaded (encrypted) length.
func (d *Drive) sendChunk(ctx context.Context, plain []byte) (*dsurl.DSUrl, int64, error) {
	enc, err := d.cipher.Encrypt(plain)
	if err != nil {
		return nil, 0, err
	}
	msg, err := d.transport.Send(ctx, chunkName(enc), enc)
	if err != nil {
		return nil, 0, err
	}
	messageID, err := strconv.ParseUint(msg.ID, 10, 64)
	if err != nil {
		return nil, 0, errors.Wrap(err, "bad message id in upload response")
	}
	u, err := dsurl.FromURL(msg.Attachments[0].URL, messageID)
	if err != nil {
		return nil, 0, err
	}
	return u, int64(len(enc)), nil
}

// SendFile reads r to the end, uploads it in chunks and commits the
// file at (parent, name).  A zero length file commits with no chunks.
//
// An existing file at that name has its locators replaced wholesale -
// the old chunks stay behind on the remote, unreferenced.
func (d *Drive) SendFile(ctx context.Context, parent *catalog.Node, name string, r io.Reader) (*catalog.Node, error) {
	var (
		urls       []*dsurl.DSUrl
		chunkSizes []int64
		size       int64
	)
	buf := make([]byte, d.chunkSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			u, encLen, err := d.sendChunk(ctx, buf[:n])
			if err != nil {
				return nil, errors.Wrapf(err, "failed to upload chunk %d of %q", len(urls), name)
			}
			urls = append(urls, u)
			chunkSizes = append(chunkSizes, encLen)
			size += int64(n)
			fs.Debugf(d, "uploaded chunk %d of %q (%d bytes)", len(urls), name, n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return d.catalog.CommitFile(ctx, parent, name, urls, chunkSizes, size)
}

// SendPath uploads r to path, creating the parent directory chain as
// needed.
func (d *Drive) SendPath(ctx context.Context, path string, r io.Reader) (*catalog.Node, error) {
	segments := catalog.SplitPath(path)
	if len(segments) == 0 {
		return nil, catalog.ErrorWrongKind
	}
	parent, err := d.catalog.MakeDirs(ctx, segments[:len(segments)-1], true, true)
	if err != nil {
		return nil, err
	}
	return d.SendFile(ctx, parent, segments[len(segments)-1], r)
}

// DownloadPath streams the plaintext of the file at path to w.
func (d *Drive) DownloadPath(ctx context.Context, path string, w io.Writer) error {
	status, node, err := d.catalog.Resolve(ctx, catalog.SplitPath(path))
	if err != nil {
		return err
	}
	if status != catalog.ResolveFound {
		return catalog.ErrorNotFound
	}
	if node.IsDir() {
		return catalog.ErrorWrongKind
	}
	return d.DownloadFile(ctx, node, w)
}

// renewed returns usable locators for node, renewing through the
// policy when any of them is stale.  Renewed locators are persisted
// back to the catalog; a persistence failure is logged, not fatal -
// the download can still proceed with the fresh URLs in hand.
func (d *Drive) renewed(ctx context.Context, node *catalog.Node) ([]*dsurl.DSUrl, error) {
	stale := false
	for _, u := range node.URLs {
		if d.policy.IsExpired(u) {
			stale = true
			break
		}
	}
	if !stale {
		return node.URLs, nil
	}
	fs.Debugf(d, "renewing %d locators of %q", len(node.URLs), node.Name)
	fresh, err := d.policy.Renew(ctx, node.URLs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to renew chunk locators")
	}
	if err := d.catalog.UpdateURLs(ctx, node, fresh); err != nil {
		fs.Errorf(d, "failed to persist renewed locators: %v", err)
	}
	return fresh, nil
}

// DownloadFile streams the plaintext of node to w, renewing stale
// locators first.
func (d *Drive) DownloadFile(ctx context.Context, node *catalog.Node, w io.Writer) error {
	if len(node.URLs) == 0 {
		return nil
	}
	urls, err := d.renewed(ctx, node)
	if err != nil {
		return err
	}
	for i, u := range urls {
		enc, err := d.transport.Get(ctx, u.URL())
		if err != nil {
			return errors.Wrapf(err, "failed to fetch chunk %d of %q", i, node.Name)
		}
		plain, err := d.cipher.Decrypt(enc)
		if err != nil {
			return errors.Wrapf(err, "failed to decrypt chunk %d of %q", i, node.Name)
		}
		if _, err := w.Write(plain); err != nil {
			return err
		}
	}
	return nil
}
