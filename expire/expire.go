// Package expire renews expired signed CDN URLs.
//
// The renewal strategy is pluggable: the production policy reads the
// current attachment URL back through the service's messages endpoint,
// and an alternative funnels lookups through a long lived bot session.
// Tests substitute their own Policy.
package expire

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
	"github.com/TWTom041/DiscordFS-SFTP/lib/pacer"
	"github.com/TWTom041/DiscordFS-SFTP/lib/rest"
)

// Policy is the capability to decide whether locators are stale and to
// produce fresh ones.
//
// Renew preserves order and length: an expired locator must be
// replaced, a still valid one may be passed through unchanged.
type Policy interface {
	IsExpired(u *dsurl.DSUrl) bool
	Renew(ctx context.Context, batch []*dsurl.DSUrl) ([]*dsurl.DSUrl, error)
}

const (
	apiRoot        = "https://discord.com/api/v9"
	requestTimeout = 10 * time.Second

	// launchInterval spaces out the fan-out to stay under the
	// service's global limit of ~50 requests/s.
	launchInterval = 22 * time.Millisecond

	// renewConcurrency caps the renewal requests in flight at once,
	// on top of the launch pacing.
	renewConcurrency = 8

	// extra sleep on top of the Retry-After header
	retryCushion = 80 * time.Millisecond
)

// APIPolicy renews locators through the channel messages endpoint,
// authenticated with a bot token.
type APIPolicy struct {
	client *rest.Client
	pacer  *pacer.Pacer
	tokens *pacer.TokenDispenser
}

// NewAPIPolicy makes an APIPolicy using token for authentication.
func NewAPIPolicy(token string) *APIPolicy {
	client := rest.NewClient(&http.Client{Timeout: requestTimeout}).SetRoot(apiRoot)
	client.SetHeader("Authorization", "Bot "+token)
	return &APIPolicy{
		client: client,
		pacer:  pacer.New(launchInterval),
		tokens: pacer.NewTokenDispenser(renewConcurrency),
	}
}

// String converts it to printable
func (p *APIPolicy) String() string {
	return "api expire policy"
}

// IsExpired reports whether u needs renewing.
func (p *APIPolicy) IsExpired(u *dsurl.DSUrl) bool {
	return u.IsExpired()
}

// message is the part of a messages endpoint entry we care about.
type message struct {
	ID          string `json:"id"`
	Attachments []struct {
		URL string `json:"url"`
	} `json:"attachments"`
}

// fetch reads the current attachment URL for u's message and parses it
// into a fresh locator carrying over u's message id.
func (p *APIPolicy) fetch(ctx context.Context, u *dsurl.DSUrl) (*dsurl.DSUrl, error) {
	opts := rest.Opts{
		Method:       "GET",
		Path:         fmt.Sprintf("/channels/%d/messages?%d&limit=3", u.ChannelID, u.MessageID),
		IgnoreStatus: true,
	}
	for {
		resp, err := p.client.Call(ctx, &opts)
		if err != nil {
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusOK:
			var msgs []message
			if err := rest.DecodeJSON(resp, &msgs); err != nil {
				return nil, errors.Wrap(err, "failed to decode messages response")
			}
			if len(msgs) == 0 || len(msgs[0].Attachments) == 0 {
				return nil, errors.Errorf("message %d has no attachments", u.MessageID)
			}
			return dsurl.FromURL(msgs[0].Attachments[0].URL, u.MessageID)
		case http.StatusTooManyRequests:
			// the messages endpoint advertises Retry-After in a
			// header, unlike the webhook 429 JSON body
			seconds, _ := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
			_ = resp.Body.Close()
			fs.Debugf(p, "rate limited, sleeping for %.2fs", seconds)
			time.Sleep(time.Duration(seconds*float64(time.Second)) + retryCushion)
		default:
			errBody, _ := rest.ReadBody(resp)
			return nil, errors.Errorf("renew failed: HTTP %d: %q", resp.StatusCode, errBody)
		}
	}
}

// Renew refreshes the expired locators of the batch in parallel,
// pacing the launches and keeping at most renewConcurrency requests in
// flight.  Still valid locators are passed through unchanged.  Any
// single failure fails the batch.
func (p *APIPolicy) Renew(ctx context.Context, batch []*dsurl.DSUrl) ([]*dsurl.DSUrl, error) {
	out := make([]*dsurl.DSUrl, len(batch))
	g, gCtx := errgroup.WithContext(ctx)
	for i, u := range batch {
		i, u := i, u
		if !u.IsExpired() {
			out[i] = u
			continue
		}
		p.pacer.Wait()
		p.tokens.Get()
		g.Go(func() error {
			defer p.tokens.Put()
			fresh, err := p.fetch(gCtx, u)
			if err != nil {
				return err
			}
			out[i] = fresh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
