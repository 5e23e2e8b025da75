// Package webhook uploads chunks through a rotating pool of webhook
// endpoints and reads them back from their signed CDN URLs.
//
// Rate limits (HTTP 429) are absorbed internally by sleeping for the
// advertised retry_after and retrying; all other failures surface to
// the caller.
package webhook

import (
	"bytes"
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/TWTom041/DiscordFS-SFTP/fs"
	"github.com/TWTom041/DiscordFS-SFTP/lib/rest"
)

const (
	requestTimeout = 10 * time.Second

	// extra sleep on top of the advertised retry_after
	sendRetryCushion = 30 * time.Millisecond
	getRetryCushion  = 100 * time.Millisecond

	// how long to wait before re-fetching a 200 with an empty body
	emptyBodyRetrySleep = 100 * time.Millisecond
)

// ErrorTimeout is returned when an upload or download request times out.
var ErrorTimeout = errors.New("timeout")

// Ring is a round-robin dispatcher over a pool of webhook endpoints.
//
// Concurrent senders interleave endpoints through the shared counter,
// which spreads the per-endpoint rate limits across all of them.
type Ring struct {
	hooks  []string
	index  uint64 // advanced atomically on every Send
	client *rest.Client
}

// NewRing makes a Ring rotating across hooks.
func NewRing(hooks []string) (*Ring, error) {
	if len(hooks) == 0 {
		return nil, errors.New("no webhook endpoints configured")
	}
	return &Ring{
		hooks:  hooks,
		client: rest.NewClient(&http.Client{Timeout: requestTimeout}),
	}, nil
}

// String converts it to printable
func (r *Ring) String() string {
	return "webhook ring"
}

// next advances the index and returns the endpoint to use.
func (r *Ring) next() string {
	i := atomic.AddUint64(&r.index, 1)
	return r.hooks[i%uint64(len(r.hooks))]
}

// isTimeout reports whether err is a client side timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// retryAfter converts the advertised retry_after seconds to a Duration.
func retryAfter(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Send uploads chunk as a multipart file named filename through the
// next endpoint in the ring, returning the parsed message.
//
// A 429 response sleeps for retry_after plus a small cushion and
// retries the same request; the retry picks the next endpoint.
func (r *Ring) Send(ctx context.Context, filename string, chunk []byte) (*Message, error) {
	for {
		body, contentType, err := rest.MultipartUpload(bytes.NewReader(chunk), "file", filename)
		if err != nil {
			return nil, err
		}
		opts := rest.Opts{
			Method:       "POST",
			RootURL:      r.next(),
			Body:         body,
			ContentType:  contentType,
			IgnoreStatus: true,
		}
		resp, err := r.client.Call(ctx, &opts)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrorTimeout
			}
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusOK:
			var msg Message
			if err := rest.DecodeJSON(resp, &msg); err != nil {
				return nil, errors.Wrap(err, "failed to decode upload response")
			}
			if len(msg.Attachments) == 0 {
				return nil, errors.New("upload response has no attachments")
			}
			return &msg, nil
		case http.StatusTooManyRequests:
			var rl rateLimit
			_ = rest.DecodeJSON(resp, &rl)
			fs.Debugf(r, "upload rate limited, sleeping for %.2fs", rl.RetryAfter)
			time.Sleep(retryAfter(rl.RetryAfter) + sendRetryCushion)
		default:
			errBody, _ := rest.ReadBody(resp)
			return nil, errors.Errorf("upload failed: HTTP %d: %q", resp.StatusCode, errBody)
		}
	}
}

// Get fetches url, typically a signed CDN URL, returning the body.
//
// It shares the Send timeout and 429 handling.  A 200 with an empty
// body is treated as transient and refetched after a short sleep.
func (r *Ring) Get(ctx context.Context, url string) ([]byte, error) {
	for {
		opts := rest.Opts{
			Method:       "GET",
			RootURL:      url,
			IgnoreStatus: true,
		}
		resp, err := r.client.Call(ctx, &opts)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrorTimeout
			}
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusOK:
			body, err := rest.ReadBody(resp)
			if err != nil {
				return nil, err
			}
			if len(body) == 0 {
				fs.Debugf(r, "empty body from %q, retrying", url)
				time.Sleep(emptyBodyRetrySleep)
				continue
			}
			return body, nil
		case http.StatusTooManyRequests:
			var rl rateLimit
			_ = rest.DecodeJSON(resp, &rl)
			fs.Debugf(r, "download rate limited, sleeping for %.2fs", rl.RetryAfter)
			time.Sleep(retryAfter(rl.RetryAfter) + getRetryCushion)
		default:
			errBody, _ := rest.ReadBody(resp)
			return nil, errors.Errorf("download failed: HTTP %d: %q", resp.StatusCode, errBody)
		}
	}
}
