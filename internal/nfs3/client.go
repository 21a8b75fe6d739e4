package nfs3

import (
	"fmt"
	"net"

	"github.com/cubbit/nfsraw/internal/rpc"
)

// Program and Version identify the NFSv3 service as registered with
// portmap (RFC 1813 Section 3).
const (
	Program = 100003
	Version = 3
)

// Client drives NFSv3 procedure calls over a single RPC connection to the
// nfs daemon. It is not safe for concurrent use: the session model this
// client serves keeps exactly one RPC in flight at a time.
type Client struct {
	rpc *rpc.Client
}

// NewClient wraps conn (already dialed to the nfs service's port, per
// portmap.GetPort) in an NFSv3 RPC client.
func NewClient(conn net.Conn, network string, auth *rpc.Authenticator) *Client {
	return &Client{rpc: rpc.NewClient(conn, network, Program, Version, auth)}
}

// SetAuthenticator installs auth as the credential used for subsequent
// calls, destroying whatever authenticator was previously installed.
func (c *Client) SetAuthenticator(auth *rpc.Authenticator) {
	c.rpc.SetAuthenticator(auth)
}

// Close tears down the underlying RPC client and its authenticator.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(procedure uint32, args []byte) ([]byte, error) {
	return c.rpc.Call(procedure, args)
}

// GetAttr issues GETATTR3 for handle.
func (c *Client) GetAttr(handle *Handle) (*GetAttrResult, error) {
	args, err := encodeGetAttrArgs(handle)
	if err != nil {
		return nil, fmt.Errorf("encode getattr args: %w", err)
	}
	reply, err := c.call(ProcGetAttr, args)
	if err != nil {
		return nil, err
	}
	return decodeGetAttrResult(reply)
}

// SetAttr issues SETATTR3 for handle.
func (c *Client) SetAttr(handle *Handle, sa *SetAttr, guard TimeGuard) (*SetAttrResult, error) {
	args, err := encodeSetAttrArgs(handle, sa, guard)
	if err != nil {
		return nil, fmt.Errorf("encode setattr args: %w", err)
	}
	reply, err := c.call(ProcSetAttr, args)
	if err != nil {
		return nil, err
	}
	return decodeSetAttrResult(reply)
}

// Lookup issues LOOKUP3 for name within dir.
func (c *Client) Lookup(dir *Handle, name string) (*LookupResult, error) {
	args, err := encodeLookupArgs(dir, name)
	if err != nil {
		return nil, fmt.Errorf("encode lookup args: %w", err)
	}
	reply, err := c.call(ProcLookup, args)
	if err != nil {
		return nil, err
	}
	return decodeLookupResult(reply)
}

// Access issues ACCESS3 for handle, requesting the bits in want.
func (c *Client) Access(handle *Handle, want uint32) (*AccessResult, error) {
	args, err := encodeAccessArgs(handle, want)
	if err != nil {
		return nil, fmt.Errorf("encode access args: %w", err)
	}
	reply, err := c.call(ProcAccess, args)
	if err != nil {
		return nil, err
	}
	return decodeAccessResult(reply)
}

// ReadLink issues READLINK3 for handle.
func (c *Client) ReadLink(handle *Handle) (*ReadLinkResult, error) {
	args, err := encodeReadLinkArgs(handle)
	if err != nil {
		return nil, fmt.Errorf("encode readlink args: %w", err)
	}
	reply, err := c.call(ProcReadLink, args)
	if err != nil {
		return nil, err
	}
	return decodeReadLinkResult(reply)
}

// Read issues READ3 for handle at offset, requesting count bytes. Callers
// drive their own read loop; this client issues one RPC per call and does
// not retry short reads itself.
func (c *Client) Read(handle *Handle, offset uint64, count uint32) (*ReadResult, error) {
	args, err := encodeReadArgs(handle, offset, count)
	if err != nil {
		return nil, fmt.Errorf("encode read args: %w", err)
	}
	reply, err := c.call(ProcRead, args)
	if err != nil {
		return nil, err
	}
	return decodeReadResult(reply)
}

// Write issues WRITE3 for handle at offset with the given stability mode.
// The client never issues a trailing COMMIT of its own; FILE_SYNC writes
// are the caller's only durability guarantee unless it calls Commit itself.
func (c *Client) Write(handle *Handle, offset uint64, data []byte, stable uint32) (*WriteResult, error) {
	args, err := encodeWriteArgs(handle, offset, data, stable)
	if err != nil {
		return nil, fmt.Errorf("encode write args: %w", err)
	}
	reply, err := c.call(ProcWrite, args)
	if err != nil {
		return nil, err
	}
	return decodeWriteResult(reply)
}

// Create issues CREATE3 for name within dir. verifier is only meaningful
// when createMode is CreateExclusive.
func (c *Client) Create(dir *Handle, name string, sa *SetAttr, createMode uint32, verifier uint64) (*CreateResult, error) {
	args, err := encodeCreateArgs(dir, name, 0, sa, createMode, verifier)
	if err != nil {
		return nil, fmt.Errorf("encode create args: %w", err)
	}
	reply, err := c.call(ProcCreate, args)
	if err != nil {
		return nil, err
	}
	return decodeCreateResult(reply)
}

// Mkdir issues MKDIR3 for name within dir.
func (c *Client) Mkdir(dir *Handle, name string, sa *SetAttr) (*MkdirResult, error) {
	args, err := encodeMkdirArgs(dir, name, sa)
	if err != nil {
		return nil, fmt.Errorf("encode mkdir args: %w", err)
	}
	reply, err := c.call(ProcMkdir, args)
	if err != nil {
		return nil, err
	}
	return decodeMkdirResult(reply)
}

// Symlink issues SYMLINK3, creating name within dir pointing at target.
func (c *Client) Symlink(dir *Handle, name, target string, sa *SetAttr) (*SymlinkResult, error) {
	args, err := encodeSymlinkArgs(dir, name, target, sa)
	if err != nil {
		return nil, fmt.Errorf("encode symlink args: %w", err)
	}
	reply, err := c.call(ProcSymlink, args)
	if err != nil {
		return nil, err
	}
	return decodeSymlinkResult(reply)
}

// Mknod issues MKNOD3, creating a device, socket or FIFO node named name
// within dir.
func (c *Client) Mknod(dir *Handle, name string, fileType uint32, sa *SetAttr, spec SpecData) (*MknodResult, error) {
	args, err := encodeMknodArgs(dir, name, fileType, sa, spec)
	if err != nil {
		return nil, fmt.Errorf("encode mknod args: %w", err)
	}
	reply, err := c.call(ProcMknod, args)
	if err != nil {
		return nil, err
	}
	return decodeMknodResult(reply)
}

// Remove issues REMOVE3 for name within dir.
func (c *Client) Remove(dir *Handle, name string) (*RemoveResult, error) {
	args, err := encodeRemoveArgs(dir, name)
	if err != nil {
		return nil, fmt.Errorf("encode remove args: %w", err)
	}
	reply, err := c.call(ProcRemove, args)
	if err != nil {
		return nil, err
	}
	return decodeRemoveResult(reply)
}

// Rmdir issues RMDIR3 for name within dir.
func (c *Client) Rmdir(dir *Handle, name string) (*RemoveResult, error) {
	args, err := encodeRemoveArgs(dir, name)
	if err != nil {
		return nil, fmt.Errorf("encode rmdir args: %w", err)
	}
	reply, err := c.call(ProcRmdir, args)
	if err != nil {
		return nil, err
	}
	return decodeRemoveResult(reply)
}

// Rename issues RENAME3, moving fromName in fromDir to toName in toDir.
func (c *Client) Rename(fromDir *Handle, fromName string, toDir *Handle, toName string) (*RenameResult, error) {
	args, err := encodeRenameArgs(fromDir, fromName, toDir, toName)
	if err != nil {
		return nil, fmt.Errorf("encode rename args: %w", err)
	}
	reply, err := c.call(ProcRename, args)
	if err != nil {
		return nil, err
	}
	return decodeRenameResult(reply)
}

// Link issues LINK3, creating name within dir as a hard link to handle.
func (c *Client) Link(handle *Handle, dir *Handle, name string) (*LinkResult, error) {
	args, err := encodeLinkArgs(handle, dir, name)
	if err != nil {
		return nil, fmt.Errorf("encode link args: %w", err)
	}
	reply, err := c.call(ProcLink, args)
	if err != nil {
		return nil, err
	}
	return decodeLinkResult(reply)
}

// ReadDir issues READDIR3 for dir, resuming from cookie/cookieVerf. The
// caller is responsible for pagination: take the cookie of the last entry
// returned and feed it back in until EOF is set, per the cookie contract
// in the glossary.
func (c *Client) ReadDir(dir *Handle, cookie, cookieVerf uint64, count uint32) (*ReadDirResult, error) {
	args, err := encodeReadDirArgs(dir, cookie, cookieVerf, count)
	if err != nil {
		return nil, fmt.Errorf("encode readdir args: %w", err)
	}
	reply, err := c.call(ProcReadDir, args)
	if err != nil {
		return nil, err
	}
	return decodeReadDirResult(reply)
}

// FsStat issues FSSTAT3 for handle.
func (c *Client) FsStat(handle *Handle) (*FsStatResult, error) {
	args, err := encodeFsStatArgs(handle)
	if err != nil {
		return nil, fmt.Errorf("encode fsstat args: %w", err)
	}
	reply, err := c.call(ProcFsStat, args)
	if err != nil {
		return nil, err
	}
	return decodeFsStatResult(reply)
}

// FsInfo issues FSINFO3 for handle. The driver layer falls back to
// DefaultTransferSize when this call fails rather than leaving the
// session's transfer size unset.
func (c *Client) FsInfo(handle *Handle) (*FsInfoResult, error) {
	args, err := encodeFsInfoArgs(handle)
	if err != nil {
		return nil, fmt.Errorf("encode fsinfo args: %w", err)
	}
	reply, err := c.call(ProcFsInfo, args)
	if err != nil {
		return nil, err
	}
	return decodeFsInfoResult(reply)
}

// PathConf issues PATHCONF3 for handle.
func (c *Client) PathConf(handle *Handle) (*PathConfResult, error) {
	args, err := encodePathConfArgs(handle)
	if err != nil {
		return nil, fmt.Errorf("encode pathconf args: %w", err)
	}
	reply, err := c.call(ProcPathConf, args)
	if err != nil {
		return nil, err
	}
	return decodePathConfResult(reply)
}

// Commit issues COMMIT3 for handle, flushing unstably written data in
// [offset, offset+count) to stable storage. The spec notes this client
// never issues one on the caller's behalf after a `put`; it is exposed
// here only for a future or explicit caller.
func (c *Client) Commit(handle *Handle, offset uint64, count uint32) (*CommitResult, error) {
	args, err := encodeCommitArgs(handle, offset, count)
	if err != nil {
		return nil, fmt.Errorf("encode commit args: %w", err)
	}
	reply, err := c.call(ProcCommit, args)
	if err != nil {
		return nil, err
	}
	return decodeCommitResult(reply)
}
