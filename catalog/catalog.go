// Package catalog persists the filesystem tree: one collection of
// nodes with a self referential parent pointer, plus the path
// resolution and mutation logic on top of it.
//
// The document level operations are behind the Store interface so the
// same tree logic runs against MongoDB in production and an in-memory
// store in tests.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
)

// Errors returned by catalog operations.  The facade maps these onto
// its own taxonomy depending on the operation.
var (
	ErrorNotFound   = errors.New("resource not found")
	ErrorWrongKind  = errors.New("wrong kind of resource")
	ErrorExists     = errors.New("resource already exists")
	ErrorNotEmpty   = errors.New("directory not empty")
	ErrorRemoveRoot = errors.New("cannot remove root directory")
)

// Store is the document level interface the tree logic runs on.
//
// Lookups return (nil, nil) when no matching node exists.
type Store interface {
	// EnsureRoot returns the root node, inserting it first if absent.
	EnsureRoot(ctx context.Context) (*Node, error)
	// Get returns the node with the given id.
	Get(ctx context.Context, id string) (*Node, error)
	// Child returns the node named name directly under parentID.
	Child(ctx context.Context, parentID, name string) (*Node, error)
	// Children returns all nodes directly under parentID.
	Children(ctx context.Context, parentID string) ([]*Node, error)
	// Insert stores a new node and returns its assigned id.
	Insert(ctx context.Context, node *Node) (string, error)
	// Update replaces the stored node with the same id.
	Update(ctx context.Context, node *Node) error
	// Delete removes the node with the given id.
	Delete(ctx context.Context, id string) error
	// Clear removes every node except the root.
	Clear(ctx context.Context) error
}

// ResolveStatus describes the outcome of a path walk.
type ResolveStatus int

// Resolve outcomes.
const (
	// ResolveFound - the full path exists.
	ResolveFound ResolveStatus = iota
	// ResolveLeafMissing - every prefix exists but the last segment
	// does not.  Useful to distinguish "parent ok, leaf absent" when
	// creating files.
	ResolveLeafMissing
	// ResolveMissing - an intermediate segment is missing.
	ResolveMissing
)

// Catalog is the tree of folder and file nodes.
type Catalog struct {
	store Store
	root  *Node
}

// New makes a Catalog on store, creating the root node if needed.
func New(ctx context.Context, store Store) (*Catalog, error) {
	root, err := store.EnsureRoot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init catalog root")
	}
	return &Catalog{store: store, root: root}, nil
}

// SplitPath normalizes path and splits it into segments, dropping
// empty and "." components and resolving ".." against the walked
// prefix.  The root corresponds to the empty slice; back references
// beyond the root are dropped.
func SplitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, segment)
		}
	}
	return segments
}

// Root returns the root node.
func (c *Catalog) Root() *Node {
	return c.root
}

// Resolve walks segments from the root.
//
// On ResolveFound the returned node is the resolved one.  On
// ResolveLeafMissing it is the (existing) parent directory.  A file
// node in an intermediate position counts as missing.
func (c *Catalog) Resolve(ctx context.Context, segments []string) (ResolveStatus, *Node, error) {
	parent := c.root
	for i, segment := range segments {
		child, err := c.store.Child(ctx, parent.ID, segment)
		if err != nil {
			return ResolveMissing, nil, err
		}
		last := i == len(segments)-1
		if child == nil {
			if last {
				return ResolveLeafMissing, parent, nil
			}
			return ResolveMissing, nil, nil
		}
		if !last && !child.IsDir() {
			return ResolveMissing, nil, nil
		}
		parent = child
	}
	return ResolveFound, parent, nil
}

// MakeDirs creates the missing directories along segments.
//
// With allowMany false at most one missing segment may be created; a
// longer gap fails with ErrorNotFound.  A segment that exists as a
// file fails with ErrorWrongKind.  If the leaf already existed and
// existOK is false it fails with ErrorExists; with existOK true the
// call is idempotent.
func (c *Catalog) MakeDirs(ctx context.Context, segments []string, allowMany, existOK bool) (*Node, error) {
	parent := c.root
	created := 0
	for _, segment := range segments {
		child, err := c.store.Child(ctx, parent.ID, segment)
		if err != nil {
			return nil, err
		}
		if child != nil {
			if !child.IsDir() {
				return nil, ErrorWrongKind
			}
			parent = child
			continue
		}
		if !allowMany && created > 0 {
			return nil, ErrorNotFound
		}
		node := newFolderNode(parent.ID, segment)
		id, err := c.store.Insert(ctx, node)
		if err != nil {
			return nil, err
		}
		node.ID = id
		parent = node
		created++
	}
	// the leaf pre-existed exactly when nothing was created
	if created == 0 && !existOK && len(segments) > 0 {
		return nil, ErrorExists
	}
	return parent, nil
}

// List returns the direct children of node.
func (c *Catalog) List(ctx context.Context, node *Node) ([]*Node, error) {
	return c.store.Children(ctx, node.ID)
}

// resolveFile resolves segments and insists the result is a file.
func (c *Catalog) resolveFile(ctx context.Context, segments []string) (*Node, error) {
	status, node, err := c.Resolve(ctx, segments)
	if err != nil {
		return nil, err
	}
	if status != ResolveFound {
		return nil, ErrorNotFound
	}
	if node.IsDir() {
		return nil, ErrorWrongKind
	}
	return node, nil
}

// destParent resolves the parent directory for a rename/copy
// destination, optionally creating it.
func (c *Catalog) destParent(ctx context.Context, segments []string, createDirs bool) (*Node, error) {
	if createDirs {
		return c.MakeDirs(ctx, segments, true, true)
	}
	status, node, err := c.Resolve(ctx, segments)
	if err != nil {
		return nil, err
	}
	if status != ResolveFound {
		return nil, ErrorNotFound
	}
	if !node.IsDir() {
		return nil, ErrorWrongKind
	}
	return node, nil
}

// prepareDest resolves the destination parent and clears the target
// slot, deleting an existing file when overwrite is set.  A destination
// occupied by the node with id skipID is left alone - that is the
// source of a self rename, not something to clear.
func (c *Catalog) prepareDest(ctx context.Context, dst []string, overwrite, createDirs bool, skipID string) (*Node, string, error) {
	if len(dst) == 0 {
		return nil, "", ErrorWrongKind
	}
	parent, err := c.destParent(ctx, dst[:len(dst)-1], createDirs)
	if err != nil {
		return nil, "", err
	}
	name := dst[len(dst)-1]
	existing, err := c.store.Child(ctx, parent.ID, name)
	if err != nil {
		return nil, "", err
	}
	if existing != nil && existing.ID != skipID {
		if !overwrite {
			return nil, "", ErrorExists
		}
		if existing.IsDir() {
			return nil, "", ErrorWrongKind
		}
		if err := c.store.Delete(ctx, existing.ID); err != nil {
			return nil, "", err
		}
	}
	return parent, name, nil
}

// Rename moves the file at src to dst.  Folders are refused with
// ErrorWrongKind.  An existing file destination is replaced when
// overwrite is set (delete then update - there is no atomicity across
// the two writes).
func (c *Catalog) Rename(ctx context.Context, src, dst []string, overwrite, createDirs, preserveTimestamps bool) error {
	node, err := c.resolveFile(ctx, src)
	if err != nil {
		return err
	}
	parent, name, err := c.prepareDest(ctx, dst, overwrite, createDirs, node.ID)
	if err != nil {
		return err
	}
	node.Parent = parent.ID
	node.Name = name
	now := time.Now()
	node.Details.MetadataChanged = now
	if !preserveTimestamps {
		node.Details.Modified = now
	}
	return c.store.Update(ctx, node)
}

// Copy duplicates the file at src to dst, including locators, chunk
// sizes, access and details.
func (c *Catalog) Copy(ctx context.Context, src, dst []string, overwrite, createDirs, preserveTimestamps bool) error {
	node, err := c.resolveFile(ctx, src)
	if err != nil {
		return err
	}
	parent, name, err := c.prepareDest(ctx, dst, overwrite, createDirs, "")
	if err != nil {
		return err
	}
	dup := node.Clone()
	dup.ID = ""
	dup.Parent = parent.ID
	dup.Name = name
	now := time.Now()
	dup.Details.Created = now
	dup.Details.Accessed = now
	dup.Details.MetadataChanged = now
	if !preserveTimestamps {
		dup.Details.Modified = now
	}
	_, err = c.store.Insert(ctx, dup)
	return err
}

// RemoveFile deletes the file at segments.
func (c *Catalog) RemoveFile(ctx context.Context, segments []string) error {
	node, err := c.resolveFile(ctx, segments)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, node.ID)
}

// RemoveDir deletes the empty directory at segments.  The root cannot
// be removed.
func (c *Catalog) RemoveDir(ctx context.Context, segments []string) error {
	if len(segments) == 0 {
		return ErrorRemoveRoot
	}
	status, node, err := c.Resolve(ctx, segments)
	if err != nil {
		return err
	}
	if status != ResolveFound {
		return ErrorNotFound
	}
	if !node.IsDir() {
		return ErrorWrongKind
	}
	children, err := c.store.Children(ctx, node.ID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return ErrorNotEmpty
	}
	return c.store.Delete(ctx, node.ID)
}

// RemoveTree deletes the node at segments and all its descendants.
// The root cannot be removed.
func (c *Catalog) RemoveTree(ctx context.Context, segments []string) error {
	if len(segments) == 0 {
		return ErrorRemoveRoot
	}
	status, node, err := c.Resolve(ctx, segments)
	if err != nil {
		return err
	}
	if status != ResolveFound {
		return ErrorNotFound
	}
	return c.removeSubtree(ctx, node)
}

func (c *Catalog) removeSubtree(ctx context.Context, node *Node) error {
	if node.IsDir() {
		children, err := c.store.Children(ctx, node.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := c.removeSubtree(ctx, child); err != nil {
				return err
			}
		}
	}
	return c.store.Delete(ctx, node.ID)
}

// GetInfo returns the node at segments.
func (c *Catalog) GetInfo(ctx context.Context, segments []string) (*Node, error) {
	status, node, err := c.Resolve(ctx, segments)
	if err != nil {
		return nil, err
	}
	if status != ResolveFound {
		return nil, ErrorNotFound
	}
	return node, nil
}

// InfoUpdate is a partial update applied by SetInfo.  Nil sections and
// nil fields are left unchanged.
type InfoUpdate struct {
	Access  *Access
	Details *DetailsUpdate
}

// DetailsUpdate is the mutable subset of Details.
type DetailsUpdate struct {
	Accessed *time.Time
	Modified *time.Time
}

// SetInfo applies update to the node at segments.  The details update
// merges against the node's prior details, and metadata_changed is
// bumped.
func (c *Catalog) SetInfo(ctx context.Context, segments []string, update *InfoUpdate) error {
	status, node, err := c.Resolve(ctx, segments)
	if err != nil {
		return err
	}
	if status != ResolveFound {
		return ErrorNotFound
	}
	if update.Access != nil {
		node.Access = *update.Access
	}
	if update.Details != nil {
		if update.Details.Accessed != nil {
			node.Details.Accessed = *update.Details.Accessed
		}
		if update.Details.Modified != nil {
			node.Details.Modified = *update.Details.Modified
		}
	}
	node.Details.MetadataChanged = time.Now()
	return c.store.Update(ctx, node)
}

// CommitFile records an uploaded file at (parent, name).  An existing
// file node is updated in place - keeping its id - with the new
// locators; an existing folder aborts with ErrorWrongKind.
func (c *Catalog) CommitFile(ctx context.Context, parent *Node, name string, urls []*dsurl.DSUrl, chunkSizes []int64, size int64) (*Node, error) {
	existing, err := c.store.Child(ctx, parent.ID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IsDir() {
			// never replace a folder with a file
			return nil, ErrorWrongKind
		}
		existing.URLs = urls
		existing.ChunkSizes = chunkSizes
		existing.Details.Size = size
		existing.Details.Modified = time.Now()
		if err := c.store.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	node := newFileNode(parent.ID, name, urls, chunkSizes, size)
	id, err := c.store.Insert(ctx, node)
	if err != nil {
		return nil, err
	}
	node.ID = id
	return node, nil
}

// UpdateURLs persists refreshed locators on node.
func (c *Catalog) UpdateURLs(ctx context.Context, node *Node, urls []*dsurl.DSUrl) error {
	node.URLs = urls
	return c.store.Update(ctx, node)
}

// Clear wipes the whole tree except the root.  Used by tests and the
// backup load path.
func (c *Catalog) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}
