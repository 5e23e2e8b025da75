// Package dsurl handles signed CDN attachment URLs.
//
// A DSUrl is a resolved but possibly expiring reference to one
// uploaded chunk.  The message id is not part of the URL itself - it
// comes out of band from the upload response - so it has to be carried
// alongside the parsed fields to make renewal possible later.
package dsurl

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CDNHost is the host the signed attachment URLs are served from.
const CDNHost = "cdn.discordapp.com"

// expireSkew is subtracted from the expiry time when deciding whether
// a URL is still usable, so that a URL can't expire mid-transfer.
const expireSkew = 600

// DSUrl is a locator for one uploaded chunk.
type DSUrl struct {
	ChannelID    uint64 `bson:"channel_id" json:"channel_id"`
	MessageID    uint64 `bson:"message_id" json:"message_id"`
	AttachmentID uint64 `bson:"attachment_id" json:"attachment_id"`
	Filename     string `bson:"filename" json:"filename"`
	Expire       int64  `bson:"expire" json:"expire"`
	Issue        int64  `bson:"issue" json:"issue"`
	Signature    []byte `bson:"signature" json:"signature"`
}

// FromURL parses a signed CDN URL into a DSUrl.
//
// messageID is supplied separately as it does not appear in the URL.
func FromURL(rawURL string, messageID uint64) (*DSUrl, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse attachment URL")
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "attachments" {
		return nil, errors.Errorf("unexpected attachment path %q", parsed.Path)
	}
	channelID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad channel id")
	}
	attachmentID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad attachment id")
	}
	query := parsed.Query()
	expire, err := strconv.ParseInt(query.Get("ex"), 16, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad ex parameter")
	}
	issue, err := strconv.ParseInt(query.Get("is"), 16, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad is parameter")
	}
	signature, err := hex.DecodeString(query.Get("hm"))
	if err != nil {
		return nil, errors.Wrap(err, "bad hm parameter")
	}
	return &DSUrl{
		ChannelID:    channelID,
		MessageID:    messageID,
		AttachmentID: attachmentID,
		Filename:     parts[3],
		Expire:       expire,
		Issue:        issue,
		Signature:    signature,
	}, nil
}

// URL renders the full signed CDN URL.
func (u *DSUrl) URL() string {
	return fmt.Sprintf("https://%s/attachments/%d/%d/%s?ex=%x&is=%x&hm=%s",
		CDNHost, u.ChannelID, u.AttachmentID, u.Filename,
		u.Expire, u.Issue, hex.EncodeToString(u.Signature))
}

// String converts it to printable
func (u *DSUrl) String() string {
	if u == nil {
		return "<nil *DSUrl>"
	}
	return u.URL()
}

// IsExpired reports whether the URL is expired, or will expire within
// the skew window.
func (u *DSUrl) IsExpired() bool {
	return time.Now().Unix() >= u.Expire-expireSkew
}
