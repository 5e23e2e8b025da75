package sftp

import (
	"io"
	"os"
	"time"

	"github.com/pkg/sftp"

	"github.com/TWTom041/DiscordFS-SFTP/catalog"
	"github.com/TWTom041/DiscordFS-SFTP/dfs"
)

// dfsHandler converts the filesystem facade to be served by SFTP.
type dfsHandler struct {
	fsys *dfs.FS
}

// newHandlers returns a Handlers object serving fsys.
func newHandlers(fsys *dfs.FS) sftp.Handlers {
	h := dfsHandler{fsys: fsys}
	return sftp.Handlers{
		FileGet:  h,
		FilePut:  h,
		FileCmd:  h,
		FileList: h,
	}
}

// translateError maps facade errors onto values the wire layer turns
// into the right SFTP status codes.
func translateError(err error) error {
	switch err {
	case nil:
		return nil
	case dfs.ErrorNotFound:
		return os.ErrNotExist
	case dfs.ErrorNotSupported:
		return sftp.ErrSSHFxOpUnsupported
	}
	return err
}

func (h dfsHandler) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	handle, err := h.fsys.OpenBin(r.Context(), r.Filepath, "rb")
	if err != nil {
		return nil, translateError(err)
	}
	return handle, nil
}

func (h dfsHandler) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	handle, err := h.fsys.OpenBin(r.Context(), r.Filepath, "wb")
	if err != nil {
		return nil, translateError(err)
	}
	return handle, nil
}

func (h dfsHandler) Filecmd(r *sftp.Request) error {
	ctx := r.Context()
	switch r.Method {
	case "Setstat":
		if r.AttrFlags().Size {
			handle, err := h.fsys.OpenBin(ctx, r.Filepath, "r+b")
			if err != nil {
				return translateError(err)
			}
			if err := handle.Truncate(int64(r.Attributes().Size)); err != nil {
				_ = handle.Close()
				return err
			}
			if err := handle.Close(); err != nil {
				return err
			}
		}
		if r.AttrFlags().Acmodtime {
			attr := r.Attributes()
			atime := time.Unix(int64(attr.Atime), 0)
			mtime := time.Unix(int64(attr.Mtime), 0)
			err := h.fsys.SetInfo(ctx, r.Filepath, &catalog.InfoUpdate{
				Details: &catalog.DetailsUpdate{Accessed: &atime, Modified: &mtime},
			})
			if err != nil {
				return translateError(err)
			}
		}
		return nil
	case "Rename":
		return translateError(h.fsys.Move(ctx, r.Filepath, r.Target, false))
	case "Rmdir":
		return translateError(h.fsys.RemoveDir(ctx, r.Filepath))
	case "Remove":
		return translateError(h.fsys.Remove(ctx, r.Filepath))
	case "Mkdir":
		return translateError(h.fsys.MakeDir(ctx, r.Filepath, false))
	case "Link", "Symlink":
		return sftp.ErrSSHFxOpUnsupported
	}
	return sftp.ErrSSHFxOpUnsupported
}

type listerat []os.FileInfo

// Modeled after strings.Reader's ReadAt() implementation
func (f listerat) ListAt(ls []os.FileInfo, offset int64) (int, error) {
	var n int
	if offset >= int64(len(f)) {
		return 0, io.EOF
	}
	n = copy(ls, f[offset:])
	if n < len(ls) {
		return n, io.EOF
	}
	return n, nil
}

func (h dfsHandler) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	ctx := r.Context()
	switch r.Method {
	case "List":
		nodes, err := h.fsys.ReadDir(ctx, r.Filepath)
		if err != nil {
			return nil, translateError(err)
		}
		infos := make([]os.FileInfo, len(nodes))
		for i, node := range nodes {
			infos[i] = entry{node: node}
		}
		return listerat(infos), nil
	case "Stat":
		node, err := h.fsys.GetInfo(ctx, r.Filepath)
		if err != nil {
			return nil, translateError(err)
		}
		return listerat([]os.FileInfo{entry{node: node}}), nil
	}
	// Readlink falls through - symlinks are not supported
	return nil, sftp.ErrSSHFxOpUnsupported
}
