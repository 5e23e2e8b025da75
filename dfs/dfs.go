// Package dfs is the filesystem facade: POSIX-like path operations
// over the catalog and the chunked object engine, with a uniform error
// taxonomy for the frontends.
//
// Paths are absolute, unicode and case sensitive.  Back references
// resolve against the walked prefix and cannot escape the root.
package dfs

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
	"github.com/TWTom041/DiscordFS-SFTP/drive"
)

// FS is the filesystem facade.
type FS struct {
	drive *drive.Drive
	cat   *catalog.Catalog
}

// New makes an FS over d.
func New(d *drive.Drive) *FS {
	return &FS{drive: d, cat: d.Catalog()}
}

// Meta describes the filesystem's capabilities.
type Meta struct {
	ReadOnly      bool
	UnicodePaths  bool
	CaseSensitive bool
}

// Meta returns the filesystem's capabilities.
func (fsys *FS) Meta() Meta {
	return Meta{
		ReadOnly:      false,
		UnicodePaths:  true,
		CaseSensitive: true,
	}
}

// ValidatePath checks that every code point of path is printable.
func (fsys *FS) ValidatePath(path string) error {
	for _, r := range path {
		if r != '/' && !unicode.IsPrint(r) {
			return ErrorInvalidPath
		}
	}
	return nil
}

// AbsPath returns the canonical absolute form of path.  Back
// references that escape the root resolve to "/".
func AbsPath(path string) string {
	return "/" + strings.Join(catalog.SplitPath(path), "/")
}

// mapDirError translates a catalog error raised in a directory
// context.
func mapDirError(err error) error {
	switch err {
	case nil:
		return nil
	case catalog.ErrorNotFound:
		return ErrorNotFound
	case catalog.ErrorWrongKind:
		return ErrorDirectoryExpected
	case catalog.ErrorExists:
		return ErrorDirectoryExists
	case catalog.ErrorNotEmpty:
		return ErrorDirectoryNotEmpty
	case catalog.ErrorRemoveRoot:
		return ErrorRemoveRoot
	}
	return err
}

// mapFileError translates a catalog error raised in a file context.
func mapFileError(err error) error {
	switch err {
	case nil:
		return nil
	case catalog.ErrorNotFound:
		return ErrorNotFound
	case catalog.ErrorWrongKind:
		return ErrorFileExpected
	case catalog.ErrorExists:
		return ErrorFileExists
	case catalog.ErrorRemoveRoot:
		return ErrorRemoveRoot
	}
	return err
}

// GetInfo returns the node at path.
func (fsys *FS) GetInfo(ctx context.Context, path string) (*catalog.Node, error) {
	if err := fsys.ValidatePath(path); err != nil {
		return nil, err
	}
	node, err := fsys.cat.GetInfo(ctx, catalog.SplitPath(path))
	if err != nil {
		return nil, mapFileError(err)
	}
	return node, nil
}

// ReadDir returns the entries of the directory at path.
func (fsys *FS) ReadDir(ctx context.Context, path string) ([]*catalog.Node, error) {
	if err := fsys.ValidatePath(path); err != nil {
		return nil, err
	}
	status, node, err := fsys.cat.Resolve(ctx, catalog.SplitPath(path))
	if err != nil {
		return nil, err
	}
	if status != catalog.ResolveFound {
		return nil, ErrorNotFound
	}
	if !node.IsDir() {
		return nil, ErrorDirectoryExpected
	}
	entries, err := fsys.cat.List(ctx, node)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ListDir returns the sorted entry names of the directory at path.
func (fsys *FS) ListDir(ctx context.Context, path string) ([]string, error) {
	entries, err := fsys.ReadDir(ctx, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	return names, nil
}

// MakeDir creates a single directory at path.  A missing parent fails
// with ErrorNotFound; an existing directory fails with
// ErrorDirectoryExists unless recreate is set.
func (fsys *FS) MakeDir(ctx context.Context, path string, recreate bool) error {
	if err := fsys.ValidatePath(path); err != nil {
		return err
	}
	_, err := fsys.cat.MakeDirs(ctx, catalog.SplitPath(path), false, recreate)
	return mapDirError(err)
}

// MakeDirs creates the whole directory chain down to path.
func (fsys *FS) MakeDirs(ctx context.Context, path string, recreate bool) error {
	if err := fsys.ValidatePath(path); err != nil {
		return err
	}
	_, err := fsys.cat.MakeDirs(ctx, catalog.SplitPath(path), true, recreate)
	return mapDirError(err)
}

// OpenBin opens the file at path with a mode string like "rb" or
// "w+b".
//
// A directory target fails with ErrorFileExpected, an exclusive create
// on an existing target with ErrorFileExists, and a missing target
// without a create mode with ErrorNotFound.
func (fsys *FS) OpenBin(ctx context.Context, path, mode string) (*drive.Handle, error) {
	if err := fsys.ValidatePath(path); err != nil {
		return nil, err
	}
	flags, err := drive.ParseMode(mode)
	if err != nil {
		return nil, ErrorNotSupported
	}
	segments := catalog.SplitPath(path)
	if len(segments) == 0 {
		return nil, ErrorFileExpected
	}
	status, node, err := fsys.cat.Resolve(ctx, segments)
	if err != nil {
		return nil, err
	}
	name := segments[len(segments)-1]
	switch status {
	case catalog.ResolveMissing:
		return nil, ErrorNotFound
	case catalog.ResolveLeafMissing:
		if !flags.Create {
			return nil, ErrorNotFound
		}
		// on leaf-missing the resolved node is the parent directory
		return fsys.drive.Open(ctx, node, nil, name, flags)
	}
	if node.IsDir() {
		return nil, ErrorFileExpected
	}
	if flags.Exclusive {
		return nil, ErrorFileExists
	}
	parent, err := fsys.cat.GetInfo(ctx, segments[:len(segments)-1])
	if err != nil {
		return nil, mapDirError(err)
	}
	return fsys.drive.Open(ctx, parent, node, name, flags)
}

// Remove deletes the file at path.
func (fsys *FS) Remove(ctx context.Context, path string) error {
	if err := fsys.ValidatePath(path); err != nil {
		return err
	}
	return mapFileError(fsys.cat.RemoveFile(ctx, catalog.SplitPath(path)))
}

// RemoveDir deletes the empty directory at path.
func (fsys *FS) RemoveDir(ctx context.Context, path string) error {
	if err := fsys.ValidatePath(path); err != nil {
		return err
	}
	return mapDirError(fsys.cat.RemoveDir(ctx, catalog.SplitPath(path)))
}

// RemoveTree deletes path and everything below it.
func (fsys *FS) RemoveTree(ctx context.Context, path string) error {
	if err := fsys.ValidatePath(path); err != nil {
		return err
	}
	return mapDirError(fsys.cat.RemoveTree(ctx, catalog.SplitPath(path)))
}

// Move renames the file at src to dst.
func (fsys *FS) Move(ctx context.Context, src, dst string, overwrite bool) error {
	if err := fsys.ValidatePath(src); err != nil {
		return err
	}
	if err := fsys.ValidatePath(dst); err != nil {
		return err
	}
	err := fsys.cat.Rename(ctx, catalog.SplitPath(src), catalog.SplitPath(dst), overwrite, false, false)
	return mapFileError(err)
}

// Copy duplicates the file at src to dst.
func (fsys *FS) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	if err := fsys.ValidatePath(src); err != nil {
		return err
	}
	if err := fsys.ValidatePath(dst); err != nil {
		return err
	}
	err := fsys.cat.Copy(ctx, catalog.SplitPath(src), catalog.SplitPath(dst), overwrite, false, false)
	return mapFileError(err)
}

// SetInfo applies a partial metadata update to the node at path.
func (fsys *FS) SetInfo(ctx context.Context, path string, update *catalog.InfoUpdate) error {
	if err := fsys.ValidatePath(path); err != nil {
		return err
	}
	return mapFileError(fsys.cat.SetInfo(ctx, catalog.SplitPath(path), update))
}
