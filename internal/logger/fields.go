package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so the client's
// logs can be aggregated and queried the same way regardless of which
// package or NFS version emitted them.
const (
	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyXID        = "xid"         // ONC-RPC transaction ID (rpc.CallHeader.XID)
	KeyOperation  = "operation"   // Client operation/procedure name: READ, WRITE, LOOKUP, etc.
	KeyHandle     = "handle"      // File handle (hex-encoded, version-specific opaque bytes)
	KeyServerAddr = "server_addr" // Remote NFS server address (host:port)
	KeyExport     = "export"      // Mounted export/share path
	KeyStatus     = "status"      // NFS status code (nfsstat, nfsstat3, nfsstat4)
	KeyStatusMsg  = "status_msg"  // Human-readable status message
	KeyAuth       = "auth"        // RPC authentication flavor (AUTH_NONE, AUTH_SYS, ...)

	// ========================================================================
	// File System Operations
	// ========================================================================
	KeyPath       = "path"        // Full file/directory path, client-side
	KeyFilename   = "filename"    // File or directory name (basename)
	KeyParentPath = "parent_path" // Parent directory path
	KeyOldPath    = "old_path"    // Source path for rename operations
	KeyNewPath    = "new_path"    // Destination path for rename operations
	KeyType       = "type"        // File type: regular, directory, symlink, etc.
	KeySize       = "size"        // File size in bytes
	KeyMode       = "mode"        // File mode/permissions (Unix-style)
	KeyUID        = "uid"         // Owning user ID
	KeyGID        = "gid"         // Owning group ID
	KeyFileID     = "file_id"     // Server-assigned file/inode identifier

	// ========================================================================
	// I/O Operations
	// ========================================================================
	KeyOffset       = "offset"        // File offset for read/write operations
	KeyCount        = "count"         // Byte count requested
	KeyBytesRead    = "bytes_read"    // Actual bytes read
	KeyBytesWritten = "bytes_written" // Actual bytes written
	KeyEOF          = "eof"           // End of file indicator
	KeyStable       = "stable"        // Write durability level (UNSTABLE, DATA_SYNC, FILE_SYNC)

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeySessionID = "session_id" // NFSv4.1 session identifier
	KeyPoolKey   = "pool_key"   // Connection pool key (server, export, version)

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyAttempt    = "attempt"     // Retry/reconnect attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// Directory Operations
	// ========================================================================
	KeyEntries    = "entries"     // Number of directory entries returned
	KeyCookieEnd  = "cookie_end"  // Continuation cookie for the next READDIR
	KeyMaxEntries = "max_entries" // Maximum entries requested

	// ========================================================================
	// Link Operations
	// ========================================================================
	KeyLinkTarget = "link_target" // Symbolic link target path
	KeyLinkCount  = "link_count"  // Hard link count

	// ========================================================================
	// Handle Cache
	// ========================================================================
	KeyCacheHit  = "cache_hit"  // Handle-cache hit indicator
	KeyCacheSize = "cache_size" // Current handle-cache entry count
	KeyEvicted   = "evicted"    // Number of entries evicted
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// XID returns a slog.Attr for an ONC-RPC transaction ID.
func XID(id uint32) slog.Attr {
	return slog.Any(KeyXID, id)
}

// Operation returns a slog.Attr for the client operation/procedure name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Handle returns a slog.Attr for a file handle, formatted as hex.
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, fmt.Sprintf("%x", h))
}

// HandleHex returns a slog.Attr for a file handle already in hex format.
func HandleHex(h string) slog.Attr {
	return slog.String(KeyHandle, h)
}

// ServerAddr returns a slog.Attr for the remote NFS server address.
func ServerAddr(addr string) slog.Attr {
	return slog.String(KeyServerAddr, addr)
}

// Export returns a slog.Attr for the mounted export path.
func Export(path string) slog.Attr {
	return slog.String(KeyExport, path)
}

// Status returns a slog.Attr for an NFS status code.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for a human-readable status message.
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// Auth returns a slog.Attr for the RPC authentication flavor.
func Auth(flavor uint32) slog.Attr {
	return slog.Any(KeyAuth, flavor)
}

// AuthStr returns a slog.Attr for the RPC authentication flavor as a string.
func AuthStr(method string) slog.Attr {
	return slog.String(KeyAuth, method)
}

// Path returns a slog.Attr for a file/directory path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a filename (basename).
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// ParentPath returns a slog.Attr for a parent directory path.
func ParentPath(p string) slog.Attr {
	return slog.String(KeyParentPath, p)
}

// OldPath returns a slog.Attr for the source path of a rename.
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for the destination path of a rename.
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// Type returns a slog.Attr for a file type code.
func Type(t int) slog.Attr {
	return slog.Int(KeyType, t)
}

// TypeStr returns a slog.Attr for a file type as a string.
func TypeStr(t string) slog.Attr {
	return slog.String(KeyType, t)
}

// Size returns a slog.Attr for a file size.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// Mode returns a slog.Attr for a file mode.
func Mode(m uint32) slog.Attr {
	return slog.Any(KeyMode, m)
}

// UID returns a slog.Attr for an owning user ID.
func UID(uid uint32) slog.Attr {
	return slog.Any(KeyUID, uid)
}

// GID returns a slog.Attr for an owning group ID.
func GID(gid uint32) slog.Attr {
	return slog.Any(KeyGID, gid)
}

// FileID returns a slog.Attr for a server-assigned file identifier.
func FileID(id uint64) slog.Attr {
	return slog.Uint64(KeyFileID, id)
}

// Offset returns a slog.Attr for a file offset.
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Count returns a slog.Attr for a byte count requested.
func Count(c uint32) slog.Attr {
	return slog.Any(KeyCount, c)
}

// BytesRead returns a slog.Attr for actual bytes read.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// EOF returns a slog.Attr for an end-of-file indicator.
func EOF(eof bool) slog.Attr {
	return slog.Bool(KeyEOF, eof)
}

// Stable returns a slog.Attr for a write durability level.
func Stable(s int) slog.Attr {
	return slog.Int(KeyStable, s)
}

// SessionID returns a slog.Attr for an NFSv4.1 session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// PoolKey returns a slog.Attr for a connection pool key.
func PoolKey(key string) slog.Attr {
	return slog.String(KeyPoolKey, key)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Entries returns a slog.Attr for a number of directory entries.
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// CookieEnd returns a slog.Attr for a READDIR continuation cookie.
func CookieEnd(cookie uint64) slog.Attr {
	return slog.Uint64(KeyCookieEnd, cookie)
}

// MaxEntries returns a slog.Attr for the maximum entries requested.
func MaxEntries(n int) slog.Attr {
	return slog.Int(KeyMaxEntries, n)
}

// LinkTarget returns a slog.Attr for a symbolic link target path.
func LinkTarget(target string) slog.Attr {
	return slog.String(KeyLinkTarget, target)
}

// LinkCount returns a slog.Attr for a hard link count.
func LinkCount(count uint32) slog.Attr {
	return slog.Any(KeyLinkCount, count)
}

// CacheHit returns a slog.Attr for a handle-cache hit indicator.
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheSize returns a slog.Attr for the current handle-cache size.
func CacheSize(size int64) slog.Attr {
	return slog.Int64(KeyCacheSize, size)
}

// Evicted returns a slog.Attr for a number of entries evicted.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}
