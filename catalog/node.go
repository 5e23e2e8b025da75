package catalog

import (
	"time"

	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
)

// Node types
const (
	TypeFolder = "folder"
	TypeFile   = "file"
)

// Kind numbers stored in Details, matching the resource types the
// facade reports.
const (
	KindFolder = 1
	KindFile   = 2
)

// Default ownership for newly created nodes.  Permissions are advisory
// only - they are stored and reported but not enforced.
const (
	DefaultUser  = "root"
	DefaultGroup = "staff"
)

// AllPermissions is the default permission set of a new node.
var AllPermissions = []string{
	"u_r", "u_w", "u_x",
	"g_r", "g_w", "g_x",
	"o_r", "o_w", "o_x",
}

// Access holds the advisory ownership and permission tokens of a node.
type Access struct {
	Group       string   `bson:"group" json:"group"`
	User        string   `bson:"user" json:"user"`
	Permissions []string `bson:"permissions" json:"permissions"`
}

// Details holds the timestamps and size of a node.
type Details struct {
	Accessed        time.Time `bson:"accessed" json:"accessed"`
	Created         time.Time `bson:"created" json:"created"`
	MetadataChanged time.Time `bson:"metadata_changed" json:"metadata_changed"`
	Modified        time.Time `bson:"modified" json:"modified"`
	Size            int64     `bson:"size" json:"size"`
	Kind            int       `bson:"type" json:"type"`
}

// Node is one row in the catalog tree - either a folder or a file.
//
// For file nodes URLs holds the ordered chunk locators and ChunkSizes
// the matching ciphertext lengths.  Details.Size is the logical
// (plaintext) length of the whole file.
type Node struct {
	ID         string         `bson:"_id,omitempty"`
	Parent     string         `bson:"parent"` // empty only for the root
	Name       string         `bson:"name"`   // empty only for the root
	Type       string         `bson:"type"`
	URLs       []*dsurl.DSUrl `bson:"urls,omitempty"`
	ChunkSizes []int64        `bson:"chunk_sizes,omitempty"`
	Access     Access         `bson:"access"`
	Details    Details        `bson:"details"`
}

// IsDir reports whether the node is a folder.
func (n *Node) IsDir() bool {
	return n.Type == TypeFolder
}

// IsRoot reports whether the node is the root.
func (n *Node) IsRoot() bool {
	return n.Parent == "" && n.Name == ""
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := *n
	if n.URLs != nil {
		out.URLs = make([]*dsurl.DSUrl, len(n.URLs))
		for i, u := range n.URLs {
			cp := *u
			if u.Signature != nil {
				cp.Signature = append([]byte(nil), u.Signature...)
			}
			out.URLs[i] = &cp
		}
	}
	if n.ChunkSizes != nil {
		out.ChunkSizes = append([]int64(nil), n.ChunkSizes...)
	}
	if n.Access.Permissions != nil {
		out.Access.Permissions = append([]string(nil), n.Access.Permissions...)
	}
	return &out
}

// defaultAccess is the access block given to new nodes.
func defaultAccess() Access {
	return Access{
		User:        DefaultUser,
		Group:       DefaultGroup,
		Permissions: append([]string(nil), AllPermissions...),
	}
}

// newFolderNode makes a folder node under parentID.
func newFolderNode(parentID, name string) *Node {
	now := time.Now()
	return &Node{
		Parent: parentID,
		Name:   name,
		Type:   TypeFolder,
		Access: defaultAccess(),
		Details: Details{
			Accessed:        now,
			Created:         now,
			MetadataChanged: now,
			Modified:        now,
			Kind:            KindFolder,
		},
	}
}

// newFileNode makes a file node under parentID.
func newFileNode(parentID, name string, urls []*dsurl.DSUrl, chunkSizes []int64, size int64) *Node {
	now := time.Now()
	return &Node{
		Parent:     parentID,
		Name:       name,
		Type:       TypeFile,
		URLs:       urls,
		ChunkSizes: chunkSizes,
		Access:     defaultAccess(),
		Details: Details{
			Accessed:        now,
			Created:         now,
			MetadataChanged: now,
			Modified:        now,
			Size:            size,
			Kind:            KindFile,
		},
	}
}
