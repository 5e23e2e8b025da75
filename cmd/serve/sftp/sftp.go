// Package sftp implements an SFTP server serving the chunked
// encrypted filesystem.
package sftp

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
	"github.com/TWTom041/DiscordFS-SFTP/cipher"
	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	"github.com/TWTom041/DiscordFS-SFTP/config"
	"github.com/TWTom041/DiscordFS-SFTP/dfs"
	"github.com/TWTom041/DiscordFS-SFTP/drive"
	"github.com/TWTom041/DiscordFS-SFTP/expire"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
	"github.com/TWTom041/DiscordFS-SFTP/webhook"
)

// Command definition for cobra
var Command = &cobra.Command{
	Use:   "sftp",
	Short: `Serve the filesystem over SFTP.`,
	Long: `Serve the filesystem over SFTP.

The server connects to the document store and the webhook endpoints
named in the config files, then listens for SFTP clients on the
configured address.  Authentication is password or public key per the
Auths list in the config, or disabled entirely with NoAuth.`,
	RunE: func(command *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.Load(cmd.ConfigPath)
		if err != nil {
			return err
		}
		hooks, err := config.ReadWebhooks(cmd.WebhooksPath)
		if err != nil {
			return err
		}
		token, err := config.ReadToken(cmd.TokenPath)
		if err != nil {
			return err
		}
		hostKey, err := config.ReadHostKey(cmd.HostKeyPath)
		if err != nil {
			return err
		}
		secret, err := cmd.Secret()
		if err != nil {
			return err
		}

		store, err := catalog.NewMongo(ctx, cfg.MongoURL())
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				fs.Errorf(nil, "failed to disconnect from the document store: %v", err)
			}
		}()
		cat, err := catalog.New(ctx, store)
		if err != nil {
			return err
		}
		ring, err := webhook.NewRing(hooks)
		if err != nil {
			return err
		}
		d := drive.New(cat, ring, cipher.New(secret), expire.NewAPIPolicy(token))

		s, err := newServer(dfs.New(d), cfg, hostKey)
		if err != nil {
			return err
		}
		return s.Serve()
	},
}
