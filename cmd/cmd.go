// Package cmd implements the dsfs command tree.
//
// Subcommand packages register themselves on Root from their init
// functions; the main package only calls Main.
package cmd

import (
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/TWTom041/DiscordFS-SFTP/cipher"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
)

// Paths to the configuration and its ancillary files, shared by all
// subcommands and overridable with persistent flags.
var (
	ConfigPath   = ".conf/config.yaml"
	HostKeyPath  = ".conf/host_key"
	WebhooksPath = ".conf/webhooks.txt"
	TokenPath    = ".conf/bot_token"
	KeyPath      = ".conf/key.bin"
	ValidatePath = ".conf/validator.bin"
	Passphrase   = ""
)

var verbose int

// Root is the main dsfs command.
var Root = &cobra.Command{
	Use:   "dsfs",
	Short: "dsfs serves an encrypted chunked filesystem stored on a chat CDN",
	PersistentPreRun: func(command *cobra.Command, args []string) {
		switch {
		case verbose >= 2:
			fs.SetLogLevel(fs.LogLevelDebug)
		case verbose == 1:
			fs.SetLogLevel(fs.LogLevelInfo)
		default:
			fs.SetLogLevel(fs.LogLevelNotice)
		}
	},
}

func init() {
	flags := Root.PersistentFlags()
	flags.CountVarP(&verbose, "verbose", "v", "Print lots more stuff (repeat for more)")
	flags.StringVar(&ConfigPath, "config", ConfigPath, "Path to the YAML config file")
	flags.StringVar(&HostKeyPath, "host-key", HostKeyPath, "Path to the SFTP host private key")
	flags.StringVar(&WebhooksPath, "webhooks", WebhooksPath, "Path to the newline separated webhook URL list")
	flags.StringVar(&TokenPath, "bot-token", TokenPath, "Path to the bot token file")
	flags.StringVar(&KeyPath, "key-file", KeyPath, "Path to the encrypted chunk key file")
	flags.StringVar(&ValidatePath, "validate-file", ValidatePath, "Path to the key validator file")
	flags.StringVar(&Passphrase, "passphrase", Passphrase, "Passphrase protecting the chunk key")
}

// Secret returns the chunk encryption secret: the key file decrypted
// under the passphrase when one exists, otherwise the passphrase
// itself.
func Secret() ([]byte, error) {
	keyPath, err := homedir.Expand(KeyPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		return []byte(Passphrase), nil
	}
	validatePath, err := homedir.Expand(ValidatePath)
	if err != nil {
		return nil, err
	}
	return cipher.LoadKey([]byte(Passphrase), keyPath, validatePath)
}

// Main runs the root command.  It only returns on success.
func Main() {
	if err := Root.Execute(); err != nil {
		fs.Errorf(nil, "failed: %v", err)
		os.Exit(1)
	}
}
