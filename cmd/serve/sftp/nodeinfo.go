package sftp

import (
	"os"
	"time"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
)

// entry adapts a catalog node to os.FileInfo.
type entry struct {
	node *catalog.Node
}

var permissionBits = map[string]os.FileMode{
	"u_r": 0400, "u_w": 0200, "u_x": 0100,
	"g_r": 0040, "g_w": 0020, "g_x": 0010,
	"o_r": 0004, "o_w": 0002, "o_x": 0001,
}

func modeFromPermissions(perms []string) os.FileMode {
	var mode os.FileMode
	for _, p := range perms {
		mode |= permissionBits[p]
	}
	return mode
}

func (e entry) Name() string {
	if e.node.IsRoot() {
		return "/"
	}
	return e.node.Name
}

func (e entry) Size() int64 { return e.node.Details.Size }

func (e entry) Mode() os.FileMode {
	mode := modeFromPermissions(e.node.Access.Permissions)
	if e.node.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

func (e entry) ModTime() time.Time { return e.node.Details.Modified }

func (e entry) IsDir() bool { return e.node.IsDir() }

func (e entry) Sys() interface{} { return nil }
