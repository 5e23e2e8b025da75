package catalog

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWTom041/DiscordFS-SFTP/dsurl"
)

func newTestCatalog(t *testing.T) *Catalog {
	c, err := New(context.Background(), NewMem())
	require.NoError(t, err)
	return c
}

func mustMakeDirs(t *testing.T, c *Catalog, path string) *Node {
	node, err := c.MakeDirs(context.Background(), SplitPath(path), true, true)
	require.NoError(t, err)
	return node
}

func commitTestFile(t *testing.T, c *Catalog, path string, size int64) *Node {
	ctx := context.Background()
	segments := SplitPath(path)
	parent, err := c.MakeDirs(ctx, segments[:len(segments)-1], true, true)
	require.NoError(t, err)
	urls := []*dsurl.DSUrl{{ChannelID: 1, MessageID: 2, AttachmentID: 3, Filename: "f", Expire: time.Now().Unix() + 3600}}
	node, err := c.CommitFile(ctx, parent, segments[len(segments)-1], urls, []int64{size}, size)
	require.NoError(t, err)
	return node
}

func TestSplitPath(t *testing.T) {
	for _, test := range []struct {
		in  string
		out []string
	}{
		{"", nil},
		{"/", nil},
		{"//", nil},
		{"/a", []string{"a"}},
		{"/a/b/c", []string{"a", "b", "c"}},
		{"a/b/", []string{"a", "b"}},
		{"./a/./b", []string{"a", "b"}},
		{"/a/../b", []string{"b"}},
		{"/../../a", []string{"a"}},
	} {
		assert.Equal(t, test.out, SplitPath(test.in), "SplitPath(%q)", test.in)
	}
}

func TestResolve(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	mustMakeDirs(t, c, "/a/b")

	status, node, err := c.Resolve(ctx, SplitPath("/a/b"))
	require.NoError(t, err)
	assert.Equal(t, ResolveFound, status)
	assert.Equal(t, "b", node.Name)

	status, parent, err := c.Resolve(ctx, SplitPath("/a/b/missing"))
	require.NoError(t, err)
	assert.Equal(t, ResolveLeafMissing, status)
	assert.Equal(t, "b", parent.Name, "leaf-missing returns the parent")

	status, _, err = c.Resolve(ctx, SplitPath("/a/nope/deeper"))
	require.NoError(t, err)
	assert.Equal(t, ResolveMissing, status)

	// the empty path resolves to the root
	status, node, err = c.Resolve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ResolveFound, status)
	assert.True(t, node.IsRoot())

	// a file in an intermediate position counts as missing
	commitTestFile(t, c, "/a/file", 1)
	status, _, err = c.Resolve(ctx, SplitPath("/a/file/below"))
	require.NoError(t, err)
	assert.Equal(t, ResolveMissing, status)
}

func TestMakeDirsSingle(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	// a two-deep gap with allowMany=false is refused
	_, err := c.MakeDirs(ctx, SplitPath("/a/b/c"), false, false)
	assert.Equal(t, ErrorNotFound, err)

	// one level at a time works
	for _, path := range []string{"/a", "/a/b", "/a/b/c"} {
		_, err := c.MakeDirs(ctx, SplitPath(path), false, false)
		require.NoError(t, err, path)
	}

	// recreating the leaf without existOK fails
	_, err = c.MakeDirs(ctx, SplitPath("/a/b/c"), false, false)
	assert.Equal(t, ErrorExists, err)

	// with existOK it is idempotent
	_, err = c.MakeDirs(ctx, SplitPath("/a/b/c"), false, true)
	assert.NoError(t, err)
}

func TestMakeDirsLeafOnlyExistsCheck(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	mustMakeDirs(t, c, "/a")

	// prefix exists but the leaf is new - this must NOT report
	// AlreadyExists even though no directory was created for /a
	_, err := c.MakeDirs(ctx, SplitPath("/a/b"), false, false)
	assert.NoError(t, err)
}

func TestMakeDirsConflictWithFile(t *testing.T) {
	c := newTestCatalog(t)
	commitTestFile(t, c, "/a/file", 1)
	_, err := c.MakeDirs(context.Background(), SplitPath("/a/file/sub"), true, true)
	assert.Equal(t, ErrorWrongKind, err)
	_, err = c.MakeDirs(context.Background(), SplitPath("/a/file"), true, true)
	assert.Equal(t, ErrorWrongKind, err)
}

func TestMakeDirsIdempotent(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	segments := SplitPath("/x/y/z")

	_, err := c.MakeDirs(ctx, segments, true, true)
	require.NoError(t, err)
	store := c.store.(*Mem)
	countAfterFirst := store.Len()

	_, err = c.MakeDirs(ctx, segments, true, true)
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, store.Len(), "second makedirs must not change the catalog")
}

func TestList(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	mustMakeDirs(t, c, "/d/sub")
	commitTestFile(t, c, "/d/x.bin", 10)

	status, node, err := c.Resolve(ctx, SplitPath("/d"))
	require.NoError(t, err)
	require.Equal(t, ResolveFound, status)
	children, err := c.List(ctx, node)
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"sub", "x.bin"}, names)
}

func TestRename(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	src := commitTestFile(t, c, "/a/src.txt", 11)

	require.NoError(t, c.Rename(ctx, SplitPath("/a/src.txt"), SplitPath("/a/dst.txt"), false, false, false))

	status, _, err := c.Resolve(ctx, SplitPath("/a/src.txt"))
	require.NoError(t, err)
	assert.Equal(t, ResolveLeafMissing, status)

	status, node, err := c.Resolve(ctx, SplitPath("/a/dst.txt"))
	require.NoError(t, err)
	require.Equal(t, ResolveFound, status)
	assert.Equal(t, src.ID, node.ID, "rename keeps the node id")
	assert.Equal(t, src.URLs, node.URLs)
}

func TestRenameRefusesFolder(t *testing.T) {
	c := newTestCatalog(t)
	mustMakeDirs(t, c, "/dir")
	err := c.Rename(context.Background(), SplitPath("/dir"), SplitPath("/dir2"), false, false, false)
	assert.Equal(t, ErrorWrongKind, err)
}

func TestRenameOverwrite(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	src := commitTestFile(t, c, "/a.txt", 5)
	commitTestFile(t, c, "/b.txt", 7)

	// without overwrite the existing destination wins
	err := c.Rename(ctx, SplitPath("/a.txt"), SplitPath("/b.txt"), false, false, false)
	assert.Equal(t, ErrorExists, err)

	// with overwrite the destination is replaced by the source node
	require.NoError(t, c.Rename(ctx, SplitPath("/a.txt"), SplitPath("/b.txt"), true, false, false))
	status, _, err := c.Resolve(ctx, SplitPath("/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, ResolveLeafMissing, status)
	status, node, err := c.Resolve(ctx, SplitPath("/b.txt"))
	require.NoError(t, err)
	require.Equal(t, ResolveFound, status)
	assert.Equal(t, src.ID, node.ID)
	assert.Equal(t, int64(5), node.Details.Size)
}

func TestRenameOntoItself(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	src := commitTestFile(t, c, "/same.txt", 5)

	// renaming a file onto itself must not delete it
	require.NoError(t, c.Rename(ctx, SplitPath("/same.txt"), SplitPath("/same.txt"), true, false, false))
	status, node, err := c.Resolve(ctx, SplitPath("/same.txt"))
	require.NoError(t, err)
	require.Equal(t, ResolveFound, status)
	assert.Equal(t, src.ID, node.ID)
	assert.Equal(t, src.URLs, node.URLs)
	assert.Equal(t, int64(5), node.Details.Size)

	// without overwrite it is a no-op as well
	require.NoError(t, c.Rename(ctx, SplitPath("/same.txt"), SplitPath("/same.txt"), false, false, false))
	status, _, err = c.Resolve(ctx, SplitPath("/same.txt"))
	require.NoError(t, err)
	assert.Equal(t, ResolveFound, status)
}

func TestRenameCreateDirs(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	commitTestFile(t, c, "/a.txt", 5)

	err := c.Rename(ctx, SplitPath("/a.txt"), SplitPath("/new/deep/a.txt"), false, false, false)
	assert.Equal(t, ErrorNotFound, err)

	require.NoError(t, c.Rename(ctx, SplitPath("/a.txt"), SplitPath("/new/deep/a.txt"), false, true, false))
	status, _, err := c.Resolve(ctx, SplitPath("/new/deep/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, ResolveFound, status)
}

func TestCopy(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	src := commitTestFile(t, c, "/orig.bin", 9)

	require.NoError(t, c.Copy(ctx, SplitPath("/orig.bin"), SplitPath("/copy.bin"), false, false, false))

	status, copied, err := c.Resolve(ctx, SplitPath("/copy.bin"))
	require.NoError(t, err)
	require.Equal(t, ResolveFound, status)
	assert.NotEqual(t, src.ID, copied.ID)
	assert.Equal(t, src.URLs, copied.URLs)
	assert.Equal(t, src.ChunkSizes, copied.ChunkSizes)
	assert.Equal(t, src.Details.Size, copied.Details.Size)

	// the source is still there
	status, _, err = c.Resolve(ctx, SplitPath("/orig.bin"))
	require.NoError(t, err)
	assert.Equal(t, ResolveFound, status)
}

func TestRemoveFile(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	mustMakeDirs(t, c, "/dir")
	commitTestFile(t, c, "/f.txt", 1)

	assert.Equal(t, ErrorNotFound, c.RemoveFile(ctx, SplitPath("/nope")))
	assert.Equal(t, ErrorWrongKind, c.RemoveFile(ctx, SplitPath("/dir")))
	require.NoError(t, c.RemoveFile(ctx, SplitPath("/f.txt")))
	assert.Equal(t, ErrorNotFound, c.RemoveFile(ctx, SplitPath("/f.txt")))
}

func TestRemoveDir(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	mustMakeDirs(t, c, "/a/b")
	commitTestFile(t, c, "/f.txt", 1)

	assert.Equal(t, ErrorRemoveRoot, c.RemoveDir(ctx, nil))
	assert.Equal(t, ErrorNotFound, c.RemoveDir(ctx, SplitPath("/nope")))
	assert.Equal(t, ErrorWrongKind, c.RemoveDir(ctx, SplitPath("/f.txt")))
	assert.Equal(t, ErrorNotEmpty, c.RemoveDir(ctx, SplitPath("/a")))
	require.NoError(t, c.RemoveDir(ctx, SplitPath("/a/b")))
	require.NoError(t, c.RemoveDir(ctx, SplitPath("/a")))
}

func TestRemoveTree(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	mustMakeDirs(t, c, "/t/a/b")
	commitTestFile(t, c, "/t/f1", 1)
	commitTestFile(t, c, "/t/a/f2", 1)

	assert.Equal(t, ErrorRemoveRoot, c.RemoveTree(ctx, nil))
	require.NoError(t, c.RemoveTree(ctx, SplitPath("/t")))
	status, _, err := c.Resolve(ctx, SplitPath("/t"))
	require.NoError(t, err)
	assert.Equal(t, ResolveLeafMissing, status)
	// only the root remains
	assert.Equal(t, 1, c.store.(*Mem).Len())
}

func TestSetInfoMergesDetails(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	node := commitTestFile(t, c, "/f.txt", 42)

	newModified := time.Now().Add(-time.Hour).Truncate(time.Second)
	err := c.SetInfo(ctx, SplitPath("/f.txt"), &InfoUpdate{
		Details: &DetailsUpdate{Modified: &newModified},
	})
	require.NoError(t, err)

	got, err := c.GetInfo(ctx, SplitPath("/f.txt"))
	require.NoError(t, err)
	// the details update merges against the prior details: size and
	// created are untouched, modified is replaced
	assert.Equal(t, newModified, got.Details.Modified)
	assert.Equal(t, int64(42), got.Details.Size)
	assert.Equal(t, node.Details.Created, got.Details.Created)
	assert.Equal(t, node.Access, got.Access, "access is untouched by a details update")
	assert.True(t, got.Details.MetadataChanged.After(node.Details.MetadataChanged))
}

func TestSetInfoNotFound(t *testing.T) {
	c := newTestCatalog(t)
	err := c.SetInfo(context.Background(), SplitPath("/nope"), &InfoUpdate{})
	assert.Equal(t, ErrorNotFound, err)
}

func TestCommitFile(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	first := commitTestFile(t, c, "/o.txt", 11)
	assert.Len(t, first.URLs, len(first.ChunkSizes))
	assert.False(t, first.Details.Modified.Before(first.Details.Created))

	// overwriting keeps the node id and bumps modified
	urls := []*dsurl.DSUrl{{ChannelID: 9, MessageID: 9, AttachmentID: 9, Filename: "new"}}
	second, err := c.CommitFile(ctx, c.Root(), "o.txt", urls, []int64{11}, 11)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, urls, second.URLs)
	assert.True(t, second.Details.Modified.After(first.Details.Modified))

	// a folder in the way aborts without touching it
	mustMakeDirs(t, c, "/somedir")
	_, err = c.CommitFile(ctx, c.Root(), "somedir", nil, nil, 0)
	assert.Equal(t, ErrorWrongKind, err)
	status, node, err := c.Resolve(ctx, SplitPath("/somedir"))
	require.NoError(t, err)
	assert.Equal(t, ResolveFound, status)
	assert.True(t, node.IsDir())
}

func TestCommitFileZeroLength(t *testing.T) {
	c := newTestCatalog(t)
	node, err := c.CommitFile(context.Background(), c.Root(), "empty", nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, node.URLs)
	assert.Empty(t, node.ChunkSizes)
	assert.Equal(t, int64(0), node.Details.Size)
}
