package mountproto

import (
	"fmt"
	"net"

	"github.com/cubbit/nfsraw/internal/portmap"
	"github.com/cubbit/nfsraw/internal/rpc"
)

// Client drives MOUNTv3 procedure calls over a single RPC connection to
// the mount daemon.
type Client struct {
	rpc *rpc.Client
}

// NewClient wraps conn (already dialed to the mount service's port, per
// portmap.GetPort or the well-known CALLIT indirection) in a MOUNT client.
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

// Mnt issues MNT for dirPath, the export's server-side path.
func (c *Client) Mnt(dirPath string) (*MntResult, error) {
	args, err := encodeMntArgs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("encode mnt args: %w", err)
	}
	reply, err := c.rpc.Call(ProcMnt, args)
	if err != nil {
		return nil, err
	}
	return decodeMntResult(reply)
}

// MntViaPortmap issues MNT for dirPath indirectly, through the
// portmapper's CALLIT relay on pm rather than a direct connection to the
// mount daemon's own port. This is what `mount -p` asks for: the
// portmapper resolves and forwards the call itself, so the client never
// needs a GETPORT round-trip against the MOUNT program.
func MntViaPortmap(pm *portmap.Client, dirPath string) (*MntResult, error) {
	args, err := encodeMntArgs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("encode mnt args: %w", err)
	}
	result, err := pm.CallIt(Program, Version, ProcMnt, args)
	if err != nil {
		return nil, fmt.Errorf("callit mnt: %w", err)
	}
	return decodeMntResult(result.Data)
}

// UmntViaPortmap issues UMNT for dirPath through the same CALLIT relay,
// for the `-up` combination (mount-then-immediately-umount, routed
// through the portmapper).
func UmntViaPortmap(pm *portmap.Client, dirPath string) error {
	args, err := encodeUmntArgs(dirPath)
	if err != nil {
		return fmt.Errorf("encode umnt args: %w", err)
	}
	_, err = pm.CallIt(Program, Version, ProcUmnt, args)
	return err
}

// Umnt issues UMNT for dirPath. The reply is void; a nil error means the
// server accepted the unmount request.
func (c *Client) Umnt(dirPath string) error {
	args, err := encodeUmntArgs(dirPath)
	if err != nil {
		return fmt.Errorf("encode umnt args: %w", err)
	}
	_, err = c.rpc.Call(ProcUmnt, args)
	return err
}

// UmntAll issues UMNTALL, asking the server to drop every mount it has
// recorded for this client's host entry.
func (c *Client) UmntAll() error {
	_, err := c.rpc.Call(ProcUmntAll, nil)
	return err
}

// Dump issues DUMP, listing every client/directory pair the server
// currently has mounted.
func (c *Client) Dump() ([]DumpEntry, error) {
	reply, err := c.rpc.Call(ProcDump, nil)
	if err != nil {
		return nil, err
	}
	return decodeDumpResult(reply)
}

// Export issues EXPORT, listing the server's exported directories and the
// client groups permitted to mount each.
func (c *Client) Export() ([]ExportEntry, error) {
	reply, err := c.rpc.Call(ProcExport, nil)
	if err != nil {
		return nil, err
	}
	return decodeExportResult(reply)
}
