package expire

import (
	"context"

	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
)

// MessageFetcher resolves the current attachment URL of a message.  It
// abstracts a privileged long lived session with the chat service so
// the rest of BotPolicy stays free of session details.
type MessageFetcher interface {
	FetchMessageURL(ctx context.Context, channelID, messageID uint64) (string, error)
}

// BotPolicy funnels all renewals through a single worker goroutine
// owning the session.  Callers enqueue requests on a channel and wait
// for a per-request completion; the session object is never shared
// across goroutines.
type BotPolicy struct {
	fetcher  MessageFetcher
	requests chan renewRequest
	done     chan struct{}
}

type renewRequest struct {
	u     *dsurl.DSUrl
	reply chan renewReply
}

type renewReply struct {
	fresh *dsurl.DSUrl
	err   error
}

// NewBotPolicy makes a BotPolicy and starts its worker.
func NewBotPolicy(fetcher MessageFetcher) *BotPolicy {
	p := &BotPolicy{
		fetcher:  fetcher,
		requests: make(chan renewRequest),
		done:     make(chan struct{}),
	}
	go p.worker()
	return p
}

// worker serves renewal requests one at a time until Stop.
func (p *BotPolicy) worker() {
	for {
		select {
		case req := <-p.requests:
			fresh, err := p.renewOne(req.u)
			req.reply <- renewReply{fresh: fresh, err: err}
		case <-p.done:
			return
		}
	}
}

func (p *BotPolicy) renewOne(u *dsurl.DSUrl) (*dsurl.DSUrl, error) {
	raw, err := p.fetcher.FetchMessageURL(context.Background(), u.ChannelID, u.MessageID)
	if err != nil {
		return nil, err
	}
	return dsurl.FromURL(raw, u.MessageID)
}

// IsExpired reports whether u needs renewing.
func (p *BotPolicy) IsExpired(u *dsurl.DSUrl) bool {
	return u.IsExpired()
}

// Renew refreshes the batch through the worker, preserving order.
func (p *BotPolicy) Renew(ctx context.Context, batch []*dsurl.DSUrl) ([]*dsurl.DSUrl, error) {
	out := make([]*dsurl.DSUrl, len(batch))
	for i, u := range batch {
		reply := make(chan renewReply, 1)
		select {
		case p.requests <- renewRequest{u: u, reply: reply}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		select {
		case r := <-reply:
			if r.err != nil {
				return nil, r.err
			}
			out[i] = r.fresh
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// Stop shuts the worker down.  Renew must not be called after Stop.
func (p *BotPolicy) Stop() {
	close(p.done)
}

// check interface
var _ Policy = (*BotPolicy)(nil)
