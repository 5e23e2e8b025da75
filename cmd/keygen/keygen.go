// Package keygen provides the keygen command.
package keygen

import (
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TWTom041/DiscordFS-SFTP/cipher"
	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
)

var force bool

func init() {
	cmd.Root.AddCommand(commandDefinition)
	commandDefinition.Flags().BoolVar(&force, "force", false, "Overwrite an existing key file")
}

var commandDefinition = &cobra.Command{
	Use:   "keygen",
	Short: `Generate a fresh chunk key protected by the passphrase.`,
	Long: `Generate a fresh chunk key protected by the passphrase.

The random 32 byte key is written encrypted under --passphrase to the
--key-file path, together with a validator file that lets a wrong
passphrase be detected at startup.  Chunks already uploaded under a
different key become unreadable, so an existing key file is only
replaced with --force.`,
	RunE: func(command *cobra.Command, args []string) error {
		if cmd.Passphrase == "" {
			return errors.New("a --passphrase is required")
		}
		keyPath, err := homedir.Expand(cmd.KeyPath)
		if err != nil {
			return err
		}
		validatePath, err := homedir.Expand(cmd.ValidatePath)
		if err != nil {
			return err
		}
		if !force {
			if _, err := os.Stat(keyPath); err == nil {
				return errors.Errorf("key file %q already exists, use --force to replace it", keyPath)
			}
		}
		if _, err := cipher.GenerateKey([]byte(cmd.Passphrase), keyPath, validatePath); err != nil {
			return err
		}
		fs.Logf(nil, "wrote key file %q and validator %q", keyPath, validatePath)
		return nil
	},
}
