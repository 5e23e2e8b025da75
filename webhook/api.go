// Types for the webhook and CDN wire protocol.

package webhook

// Attachment is one uploaded file in a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// Message is the response to a webhook upload.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Attachments []Attachment `json:"attachments"`
}

// rateLimit is the JSON body of a 429 from a webhook or CDN endpoint.
type rateLimit struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// Hook describes a webhook as returned by the channel webhooks API.
type Hook struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ChannelID string `json:"channel_id"`
	Token     string `json:"token"`
	URL       string `json:"url"`
}

// createHookRequest is the body for creating a webhook in a channel.
type createHookRequest struct {
	Name string `json:"name"`
}
