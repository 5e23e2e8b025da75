// Package backup provides the backup command: dump the catalog
// collection to a BSON file and load it back, optionally together with
// the host key and webhook list and optionally encrypted with the
// chunk secret.
package backup

import (
	"context"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
	"github.com/TWTom041/DiscordFS-SFTP/cipher"
	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	"github.com/TWTom041/DiscordFS-SFTP/config"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
)

var (
	withKey      bool
	withWebhooks bool
	encrypted    bool
	wipe         bool
)

func init() {
	cmd.Root.AddCommand(Command)
	Command.AddCommand(dumpCommand)
	Command.AddCommand(loadCommand)
	dumpFlags := dumpCommand.Flags()
	dumpFlags.BoolVarP(&withKey, "include-key", "k", false, "Include the SFTP host private key")
	dumpFlags.BoolVarP(&withWebhooks, "include-webhooks", "w", false, "Include the webhook URL list")
	dumpFlags.BoolVarP(&encrypted, "encrypt", "e", false, "Encrypt the archive with the chunk secret")
	loadFlags := loadCommand.Flags()
	loadFlags.BoolVarP(&encrypted, "encrypt", "e", false, "The archive is encrypted with the chunk secret")
	loadFlags.BoolVar(&wipe, "wipe", false, "Clear the catalog before loading")
}

// Command definition for cobra
var Command = &cobra.Command{
	Use:   "backup",
	Short: `Dump and load the catalog.`,
}

// archive is the BSON document written to the backup file.
type archive struct {
	Database []catalog.Node `bson:"database"`
	HostKey  []byte         `bson:"host_key,omitempty"`
	Webhooks []byte         `bson:"webhooks,omitempty"`
}

// encodeArchive serializes a, encrypting with secret when given.
func encodeArchive(a *archive, secret []byte) ([]byte, error) {
	raw, err := bson.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode the archive")
	}
	if secret != nil {
		return cipher.New(secret).Encrypt(raw)
	}
	return raw, nil
}

// decodeArchive reverses encodeArchive.
func decodeArchive(raw, secret []byte) (*archive, error) {
	if secret != nil {
		var err error
		if raw, err = cipher.New(secret).Decrypt(raw); err != nil {
			return nil, errors.Wrap(err, "failed to decrypt the archive")
		}
	}
	var a archive
	if err := bson.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrap(err, "failed to decode the archive")
	}
	return &a, nil
}

// graftRoot drops the archived root document and reattaches its direct
// children to rootID.  The dump includes the root, but the target
// database already has one (Clear keeps it), so inserting it back would
// either collide on _id or leave two roots.
func graftRoot(nodes []catalog.Node, rootID string) []catalog.Node {
	oldRootID := ""
	for i := range nodes {
		if nodes[i].IsRoot() {
			oldRootID = nodes[i].ID
			break
		}
	}
	out := make([]catalog.Node, 0, len(nodes))
	for _, node := range nodes {
		if node.IsRoot() {
			continue
		}
		if node.Parent == oldRootID {
			node.Parent = rootID
		}
		out = append(out, node)
	}
	return out
}

func connect(ctx context.Context) (*catalog.Mongo, error) {
	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		return nil, err
	}
	return catalog.NewMongo(ctx, cfg.MongoURL())
}

func readAncillary(path string) ([]byte, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return data, nil
}

var dumpCommand = &cobra.Command{
	Use:   "dump <output file>",
	Short: `Dump the catalog to a BSON archive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close(context.Background())
		}()

		cursor, err := store.Collection().Find(ctx, bson.M{})
		if err != nil {
			return errors.Wrap(err, "failed to read the catalog")
		}
		var a archive
		if err := cursor.All(ctx, &a.Database); err != nil {
			return errors.Wrap(err, "failed to decode the catalog")
		}
		if withKey {
			if a.HostKey, err = readAncillary(cmd.HostKeyPath); err != nil {
				return err
			}
		}
		if withWebhooks {
			if a.Webhooks, err = readAncillary(cmd.WebhooksPath); err != nil {
				return err
			}
		}

		var secret []byte
		if encrypted {
			if secret, err = cmd.Secret(); err != nil {
				return err
			}
		}
		raw, err := encodeArchive(&a, secret)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], raw, 0600); err != nil {
			return errors.Wrap(err, "failed to write the archive")
		}
		fs.Logf(nil, "dumped %d nodes to %q", len(a.Database), args[0])
		return nil
	},
}

var loadCommand = &cobra.Command{
	Use:   "load <input file>",
	Short: `Load the catalog from a BSON archive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(command *cobra.Command, args []string) error {
		ctx := context.Background()
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to read the archive")
		}
		var secret []byte
		if encrypted {
			if secret, err = cmd.Secret(); err != nil {
				return err
			}
		}
		a, err := decodeArchive(raw, secret)
		if err != nil {
			return err
		}

		store, err := connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close(context.Background())
		}()
		if wipe {
			if err := store.Clear(ctx); err != nil {
				return err
			}
		}
		root, err := store.EnsureRoot(ctx)
		if err != nil {
			return err
		}
		nodes := graftRoot(a.Database, root.ID)
		docs := make([]interface{}, len(nodes))
		for i := range nodes {
			docs[i] = nodes[i]
		}
		if len(docs) > 0 {
			if _, err := store.Collection().InsertMany(ctx, docs); err != nil {
				return errors.Wrap(err, "failed to insert the catalog")
			}
		}
		if len(a.HostKey) > 0 {
			path, err := homedir.Expand(cmd.HostKeyPath)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, a.HostKey, 0600); err != nil {
				return errors.Wrap(err, "failed to restore the host key")
			}
		}
		if len(a.Webhooks) > 0 {
			path, err := homedir.Expand(cmd.WebhooksPath)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, a.Webhooks, 0600); err != nil {
				return errors.Wrap(err, "failed to restore the webhook list")
			}
		}
		fs.Logf(nil, "loaded %d nodes from %q", len(nodes), args[0])
		return nil
	},
}
