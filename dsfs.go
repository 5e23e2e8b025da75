// dsfs serves an encrypted chunked filesystem stored on a chat CDN
// over SFTP.
package main

import (
	"github.com/TWTom041/DiscordFS-SFTP/cmd"
	_ "github.com/TWTom041/DiscordFS-SFTP/cmd/backup"
	_ "github.com/TWTom041/DiscordFS-SFTP/cmd/keygen"
	_ "github.com/TWTom041/DiscordFS-SFTP/cmd/serve"
	_ "github.com/TWTom041/DiscordFS-SFTP/cmd/version"
	_ "github.com/TWTom041/DiscordFS-SFTP/cmd/webhook"
)

func main() {
	cmd.Main()
}
