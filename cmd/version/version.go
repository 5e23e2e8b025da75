// Package version provides the version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
)

func init() {
	cmd.Root.AddCommand(commandDefinition)
}

var commandDefinition = &cobra.Command{
	Use:   "version",
	Short: `Show the version number.`,
	Run: func(command *cobra.Command, args []string) {
		fmt.Printf("dsfs %s\n", fs.Version)
		fmt.Printf("- os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("- go/version: %s\n", runtime.Version())
	},
}
