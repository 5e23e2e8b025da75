// Package webhook provides the webhook command for provisioning the
// upload endpoints in a channel.
package webhook

import (
	"context"
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	"github.com/TWTom041/DiscordFS-SFTP/config"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
	"github.com/TWTom041/DiscordFS-SFTP/webhook"
)

var (
	amount int
	save   bool
)

func init() {
	cmd.Root.AddCommand(Command)
	Command.AddCommand(createCommand)
	Command.AddCommand(listCommand)
	Command.AddCommand(deleteCommand)
	Command.AddCommand(wipeCommand)
	createFlags := createCommand.Flags()
	createFlags.IntVarP(&amount, "amount", "n", 1, "Number of webhooks to create")
	createFlags.BoolVar(&save, "save", false, "Append the new webhook URLs to the webhooks file")
}

// Command definition for cobra
var Command = &cobra.Command{
	Use:   "webhook",
	Short: `Manage the upload webhooks of a channel.`,
	Long: `Manage the upload webhooks of a channel.

All subcommands authenticate with the bot token, which needs the
MANAGE_WEBHOOKS permission in the channel.`,
}

func newManager() (*webhook.Manager, error) {
	token, err := config.ReadToken(cmd.TokenPath)
	if err != nil {
		return nil, err
	}
	return webhook.NewManager(token), nil
}

func appendToWebhooksFile(hooks []webhook.Hook) (err error) {
	path, err := homedir.Expand(cmd.WebhooksPath)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Wrap(err, "failed to open the webhooks file")
	}
	defer fs.CheckClose(f, &err)
	for _, hook := range hooks {
		if _, err := fmt.Fprintln(f, hook.URL); err != nil {
			return errors.Wrap(err, "failed to append to the webhooks file")
		}
	}
	return err
}

var createCommand = &cobra.Command{
	Use:   "create <channel id>",
	Short: `Create webhooks in a channel.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		hooks, err := m.Create(context.Background(), args[0], amount)
		for _, hook := range hooks {
			fmt.Println(hook.URL)
		}
		if err != nil {
			return err
		}
		if save {
			return appendToWebhooksFile(hooks)
		}
		return nil
	},
}

var listCommand = &cobra.Command{
	Use:   "list <channel id>",
	Short: `List the webhooks of a channel.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		hooks, err := m.List(context.Background(), args[0])
		if err != nil {
			return err
		}
		for _, hook := range hooks {
			fmt.Printf("%s %q %s\n", hook.ID, hook.Name, hook.URL)
		}
		return nil
	},
}

var deleteCommand = &cobra.Command{
	Use:   "delete <webhook id> [webhook token]",
	Short: `Delete one webhook by id.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(command *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		token := ""
		if len(args) == 2 {
			token = args[1]
		}
		return m.Delete(context.Background(), args[0], token)
	},
}

var wipeCommand = &cobra.Command{
	Use:   "wipe <channel id>",
	Short: `Delete every webhook in a channel.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		return m.DeleteAll(context.Background(), args[0])
	},
}
