// Package serve provides the serve command.
package serve

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	"github.com/TWTom041/DiscordFS-SFTP/cmd/serve/sftp"
)

func init() {
	Command.AddCommand(sftp.Command)
	cmd.Root.AddCommand(Command)
}

// Command definition for cobra
var Command = &cobra.Command{
	Use:   "serve <protocol>",
	Short: `Serve the filesystem over a protocol.`,
	RunE: func(command *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("serve requires a protocol, e.g. 'dsfs serve sftp'")
		}
		return errors.Errorf("unknown protocol %q", args[0])
	},
}
