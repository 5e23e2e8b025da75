package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/TWTom041/DiscordFS-SFTP/lib/rest"
)

// apiRoot is the service API used for webhook management.
const apiRoot = "https://discord.com/api/v9"

// hookName is the name given to webhooks provisioned by us.
const hookName = "DSFS Hook"

// Manager provisions and deletes webhooks in a channel.
//
// The bot token needs the MANAGE_WEBHOOKS permission or the service
// answers 401.
type Manager struct {
	client *rest.Client
}

// NewManager makes a Manager authenticated with the bot token.
func NewManager(token string) *Manager {
	client := rest.NewClient(&http.Client{Timeout: requestTimeout}).SetRoot(apiRoot)
	if token != "" {
		client.SetHeader("Authorization", "Bot "+token)
	}
	return &Manager{client: client}
}

// Create makes amount new webhooks in the channel, returning them with
// their tokens.
func (m *Manager) Create(ctx context.Context, channelID string, amount int) ([]Hook, error) {
	hooks := make([]Hook, 0, amount)
	for i := 0; i < amount; i++ {
		opts := rest.Opts{
			Method: "POST",
			Path:   fmt.Sprintf("/channels/%s/webhooks", channelID),
		}
		var hook Hook
		if _, err := m.client.CallJSON(ctx, &opts, &createHookRequest{Name: hookName}, &hook); err != nil {
			return hooks, errors.Wrap(err, "failed to create webhook")
		}
		hook.URL = HookURL(hook.ID, hook.Token)
		hooks = append(hooks, hook)
	}
	return hooks, nil
}

// List returns all webhooks in the channel.
func (m *Manager) List(ctx context.Context, channelID string) ([]Hook, error) {
	opts := rest.Opts{
		Method: "GET",
		Path:   fmt.Sprintf("/channels/%s/webhooks", channelID),
	}
	var hooks []Hook
	if _, err := m.client.CallJSON(ctx, &opts, nil, &hooks); err != nil {
		return nil, errors.Wrap(err, "failed to list webhooks")
	}
	for i := range hooks {
		hooks[i].URL = HookURL(hooks[i].ID, hooks[i].Token)
	}
	return hooks, nil
}

// Delete removes one webhook by id.  token may be empty if the bot
// token authorizes the deletion on its own.
func (m *Manager) Delete(ctx context.Context, hookID, token string) error {
	path := fmt.Sprintf("/webhooks/%s", hookID)
	if token != "" {
		path += "/" + token
	}
	opts := rest.Opts{
		Method:     "DELETE",
		Path:       path,
		NoResponse: true,
	}
	if _, err := m.client.Call(ctx, &opts); err != nil {
		return errors.Wrap(err, "failed to delete webhook")
	}
	return nil
}

// DeleteAll removes every webhook in the channel.
func (m *Manager) DeleteAll(ctx context.Context, channelID string) error {
	hooks, err := m.List(ctx, channelID)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		if err := m.Delete(ctx, hook.ID, hook.Token); err != nil {
			return err
		}
	}
	return nil
}

// HookURL renders the POST endpoint for a webhook id and token.
func HookURL(id, token string) string {
	return fmt.Sprintf("%s/webhooks/%s/%s", apiRoot, id, token)
}
