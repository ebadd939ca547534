package client

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/nfsclient/pkg/client/engine"
	"github.com/marmos91/nfsclient/pkg/nfserrors"
)

// FileAttributes is the façade's public attribute view, a re-export of the
// engine's version-independent shape so callers never import the engine
// package directly.
type FileAttributes = engine.FileAttributes

// DirEntry is one entry returned by ListDir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// resolvePath turns path into (handle, attrs), consulting the cache first
// and falling back to a LOOKUP chain from the mount's root handle on a
// miss. Per spec §4.6, a hit just refreshes last-touch; a miss re-walks
// and repopulates.
func (c *Client) resolvePath(ctx context.Context, path string) ([]byte, *FileAttributes, error) {
	if c.cache != nil {
		if entry, ok := c.cache.Get(path); ok {
			if attrs, ok := entry.Attrs.(*FileAttributes); ok && attrs != nil {
				return entry.Handle, attrs, nil
			}
			// Size-stale entry: handle is still good, refresh attributes only.
			attrs, err := c.eng.GetAttr(ctx, entry.Handle)
			if err != nil {
				return c.resolveAndRetryStale(ctx, path, err)
			}
			c.cache.Touch(path, attrs)
			return entry.Handle, attrs, nil
		}
	}
	handle, attrs, err := c.eng.LookupPath(ctx, c.rootHandle, path)
	if err != nil {
		return nil, nil, c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.Put(path, handle, attrs, 0)
	}
	return handle, attrs, nil
}

// resolveAndRetryStale handles a STALE hit on a cached handle: per spec
// §7's propagation policy, a cached handle that comes back STALE gets
// exactly one automatic re-resolution before the error is surfaced.
func (c *Client) resolveAndRetryStale(ctx context.Context, path string, cause error) ([]byte, *FileAttributes, error) {
	if kind, ok := nfserrors.AsStatus(cause); !ok || kind != nfserrors.StatusStale {
		return nil, nil, c.wrapStatus(cause)
	}
	if c.cache != nil {
		c.cache.Invalidate(path)
	}
	handle, attrs, err := c.eng.LookupPath(ctx, c.rootHandle, path)
	if err != nil {
		return nil, nil, c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.Put(path, handle, attrs, 0)
	}
	return handle, attrs, nil
}

// wrapStatus converts an engine-surfaced error into the façade's taxonomy.
// Engine adapters return server statuses unchanged (per spec §7); this is
// the one place that conversion happens, so every façade method shares it.
func (c *Client) wrapStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(nfserrors.ProtocolError); ok {
		return err
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return &nfserrors.CancelledError{Op: "nfs call", Err: err}
	}
	return &nfserrors.NFSProtocolError{Op: "nfs call", Err: err}
}

// ListExports returns engine.ErrUnsupported for every NFS version: it
// makes no MOUNT EXPORT call and does not list a server's exports. (NFSv4
// has no MOUNT protocol at all; export discovery there is pseudo-root
// traversal.)
func (c *Client) ListExports(ctx context.Context) ([]string, error) {
	return nil, engine.ErrUnsupported
}

// ListDir lists path's directory contents. includeDots controls whether
// "." and ".." are included in the result.
func (c *Client) ListDir(ctx context.Context, path string, includeDots bool) ([]DirEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return nil, err
	}
	handle, _, err := c.resolvePath(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []DirEntry
	var cookie uint64
	var verifier [8]byte
	for {
		entries, nextVerf, eof, err := c.eng.ReadDir(ctx, handle, cookie, verifier)
		if err != nil {
			return nil, c.wrapStatus(err)
		}
		for _, ent := range entries {
			if !includeDots && (ent.Name == "." || ent.Name == "..") {
				continue
			}
			childPath := Combine(path, ent.Name)
			childHandle, attrs, err := c.eng.LookupPath(ctx, handle, ent.Name)
			isDir := false
			if err == nil {
				isDir = attrs != nil && attrs.Type == engine.FileTypeDirectory
				if c.cache != nil {
					c.cache.Put(childPath, childHandle, attrs, 0)
				}
			}
			out = append(out, DirEntry{Name: ent.Name, IsDir: isDir})
		}
		if eof || len(entries) == 0 {
			break
		}
		cookie = entries[len(entries)-1].Cookie
		verifier = nextVerf
	}
	return out, nil
}

// GetAttributes returns path's attributes. If mustExist is true, a missing
// path surfaces its NfsStatusError instead of being treated as a
// not-found-is-ok probe by the caller.
func (c *Client) GetAttributes(ctx context.Context, path string, mustExist bool) (*FileAttributes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return nil, err
	}
	_, attrs, err := c.resolvePath(ctx, path)
	if err != nil {
		if !mustExist {
			if kind, ok := nfserrors.AsStatus(err); ok && kind == nfserrors.StatusNoEnt {
				return nil, nil
			}
		}
		return nil, err
	}
	return attrs, nil
}

// Exists reports whether path resolves to anything.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	attrs, err := c.GetAttributes(ctx, path, false)
	if err != nil {
		return false, err
	}
	return attrs != nil, nil
}

// IsDir reports whether path exists and is a directory.
func (c *Client) IsDir(ctx context.Context, path string) (bool, error) {
	attrs, err := c.GetAttributes(ctx, path, false)
	if err != nil {
		return false, err
	}
	return attrs != nil && attrs.Type == engine.FileTypeDirectory, nil
}

// CreateFile creates path as a regular file. mode defaults to 0644 when
// zero.
func (c *Client) CreateFile(ctx context.Context, path string, mode uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	dirHandle, _, err := c.resolvePath(ctx, GetDirectoryName(path))
	if err != nil {
		return err
	}
	handle, err := c.eng.Create(ctx, dirHandle, GetFileName(path), mode)
	if err != nil {
		return c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.Put(path, handle, nil, 0)
	}
	return nil
}

// CreateDir creates path as a directory. mode defaults to 0755 when zero.
func (c *Client) CreateDir(ctx context.Context, path string, mode uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0755
	}
	dirHandle, _, err := c.resolvePath(ctx, GetDirectoryName(path))
	if err != nil {
		return err
	}
	handle, err := c.eng.Mkdir(ctx, dirHandle, GetFileName(path), mode)
	if err != nil {
		return c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.Put(path, handle, nil, 0)
	}
	return nil
}

// DeleteFile removes the file at path.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return err
	}
	dirHandle, _, err := c.resolvePath(ctx, GetDirectoryName(path))
	if err != nil {
		return err
	}
	if err := c.eng.Remove(ctx, dirHandle, GetFileName(path)); err != nil {
		return c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.Invalidate(path)
	}
	return nil
}

// DeleteDir removes the directory at path. recursive is accepted for
// interface symmetry with deletion tools that walk a tree first; this
// client never removes a non-empty directory itself — NFS RMDIR refuses
// that server-side, and building a client-side tree walk here would bypass
// the server's own atomicity guarantee on the check.
func (c *Client) DeleteDir(ctx context.Context, path string, recursive bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return err
	}
	dirHandle, _, err := c.resolvePath(ctx, GetDirectoryName(path))
	if err != nil {
		return err
	}
	if err := c.eng.Rmdir(ctx, dirHandle, GetFileName(path)); err != nil {
		return c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.InvalidatePrefix(path)
	}
	return nil
}

// Move renames src to dst, which may be in a different directory.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return err
	}
	srcDir, _, err := c.resolvePath(ctx, GetDirectoryName(src))
	if err != nil {
		return err
	}
	dstDir, _, err := c.resolvePath(ctx, GetDirectoryName(dst))
	if err != nil {
		return err
	}
	if err := c.eng.Rename(ctx, srcDir, GetFileName(src), dstDir, GetFileName(dst)); err != nil {
		return c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.InvalidatePrefix(src)
		c.cache.Invalidate(dst)
	}
	return nil
}

// SetSize truncates or extends the file at path to size.
func (c *Client) SetSize(ctx context.Context, path string, size uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return err
	}
	handle, _, err := c.resolvePath(ctx, path)
	if err != nil {
		return err
	}
	if err := c.eng.SetAttr(ctx, handle, engine.Attrs{Size: &size}); err != nil {
		return c.wrapStatus(err)
	}
	if c.cache != nil {
		c.cache.MarkSizeStale(path)
	}
	return nil
}

// Read fills buf with up to len(buf) bytes from path starting at offset,
// chunking the request to the negotiated block size, and returns the
// number of bytes actually read. io.EOF is returned alongside a short read
// at end of file, matching io.ReaderAt's contract.
func (c *Client) Read(ctx context.Context, path string, offset uint64, buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return 0, err
	}
	handle, _, err := c.resolvePath(ctx, path)
	if err != nil {
		return 0, err
	}

	total := 0
	for total < len(buf) {
		chunk := c.blockSize
		if remain := uint32(len(buf) - total); remain < chunk {
			chunk = remain
		}
		data, eof, err := c.eng.Read(ctx, handle, offset+uint64(total), chunk)
		if err != nil {
			return total, c.wrapStatus(err)
		}
		n := copy(buf[total:], data)
		total += n
		if eof {
			return total, io.EOF
		}
		if n == 0 {
			return total, fmt.Errorf("nfsclient: read made no progress at offset %d", offset+uint64(total))
		}
	}
	return total, nil
}

// Write writes buf to path starting at offset, chunking the request to the
// negotiated block size, and returns the number of bytes actually written.
func (c *Client) Write(ctx context.Context, path string, offset uint64, buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return 0, err
	}
	handle, _, err := c.resolvePath(ctx, path)
	if err != nil {
		return 0, err
	}

	total := 0
	for total < len(buf) {
		end := total + int(c.blockSize)
		if end > len(buf) {
			end = len(buf)
		}
		n, err := c.eng.Write(ctx, handle, offset+uint64(total), buf[total:end])
		if err != nil {
			total += int(n)
			return total, c.wrapStatus(err)
		}
		if n == 0 {
			return total, fmt.Errorf("nfsclient: write made no progress at offset %d", offset+uint64(total))
		}
		total += int(n)
	}
	if c.cache != nil {
		c.cache.MarkSizeStale(path)
	}
	return total, nil
}

// StatFs reports the mounted export's capacity.
func (c *Client) StatFs(ctx context.Context) (engine.FsStat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireMountedLocked(); err != nil {
		return engine.FsStat{}, err
	}
	stat, err := c.eng.FsStat(ctx, c.rootHandle)
	if err != nil {
		return engine.FsStat{}, c.wrapStatus(err)
	}
	return stat, nil
}

// CompleteIo signals the end of a logical I/O session to the engine (a
// no-op for v2/v3, closing the current OPEN for v4).
func (c *Client) CompleteIo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireConnectedLocked(); err != nil {
		return err
	}
	return c.eng.CompleteIo(ctx)
}
