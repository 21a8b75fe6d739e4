// Package session holds the single mutable record of where this tool
// currently stands: which host it is talking to, what it has mounted, and
// where in that mount it currently is.
//
// Exactly one session exists per process. It enforces, rather than just
// documents, the following invariants:
//
//	I1. MountClient/NFSClient are either both nil or both non-nil only with
//	    respect to their own protocol: MountClient is non-nil only between
//	    Host and a later Close/Umount-that-drops-the-transport; NFSClient is
//	    non-nil only once Mount or OpenNFS has succeeded. A non-nil
//	    NFSClient implies a non-nil CwdHandle, but not necessarily a
//	    non-nil RootHandle — the `handle` verb's bypass path (OpenNFS) opens
//	    an NFS client with no RootHandle at all, since it never issues MNT.
//	I2. CwdHandle always refers to a directory. Operations that would point
//	    it at a non-directory (a failed `cd`, a stale LOOKUP) must leave the
//	    previous CwdHandle in place instead of overwriting it.
//	I3. RootHandle is set by each successful Mount, replacing any earlier
//	    one, and cleared by Umount/UmountAll/Close and by Host; OpenNFS
//	    leaves it nil.
//	I4. Whenever an Authenticator is replaced (uid/gid/auth-flavor change),
//	    the previous one is destroyed first — see rpc.Authenticator.Close
//	    and rpc.Client.SetAuthenticator, which this package relies on rather
//	    than duplicating.
package session

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/cubbit/nfsraw/internal/logger"
	"github.com/cubbit/nfsraw/internal/mountproto"
	"github.com/cubbit/nfsraw/internal/nfs3"
	"github.com/cubbit/nfsraw/internal/portmap"
	"github.com/cubbit/nfsraw/internal/rpc"
	"github.com/cubbit/nfsraw/internal/transport"
)

// DefaultTransferSize is used until a successful FSINFO call (or a failed
// one, per the documented masking behavior) establishes a real value.
const DefaultTransferSize = nfs3.DefaultTransferSize

// MountFlags carries the `mount [-upTU] [-P port] <path>` and
// `handle [-TU] [-P port] <hex>` verbs' flags through to Mount/OpenNFS.
type MountFlags struct {
	// UnmountAfter issues UMNT right after a successful MNT, keeping the
	// returned handle but dropping the server's mount-table entry (`-u`).
	UnmountAfter bool
	// ThruPortmap routes MNT/UMNT through the portmapper's CALLIT relay
	// instead of dialing the mount daemon's own resolved port (`-p`).
	ThruPortmap bool
	// ForceTCP/ForceUDP pin the NFS transport instead of trying TCP first
	// and falling back to UDP (`-T`/`-U`).
	ForceTCP bool
	ForceUDP bool
	// Port, when non-zero, skips portmap resolution for the NFS channel
	// and dials this port directly (`-P port`).
	Port uint16
}

// State is the session's mutable record. Exported fields mirror spec.md's
// data model directly; callers outside this package may read them freely
// but should only mutate them through the methods below, which keep the
// invariants above intact.
type State struct {
	RemoteHost string
	ServerAddr string
	MntAddr    string
	NFSAddr    string

	MountClient *mountproto.Client
	NFSClient   *nfs3.Client

	MountPath  string
	RootHandle *nfs3.Handle
	CwdHandle  *nfs3.Handle

	TransferSize uint32

	AuthFlavor uint32
	UID        uint32
	GID        uint32
	SecretKey  string

	Verbose     bool
	Interactive bool
}

// New returns a fresh session with the documented AUTH_UNIX default and
// the fallback transfer size, matching an unmounted, unconnected client.
func New() *State {
	return &State{
		AuthFlavor:   rpc.AuthUnix,
		TransferSize: DefaultTransferSize,
	}
}

func (s *State) authenticator() (*rpc.Authenticator, error) {
	switch s.AuthFlavor {
	case rpc.AuthUnix:
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve local hostname: %w", err)
		}
		return rpc.NewUnixAuthenticator(hostname, s.UID, s.GID)
	case rpc.AuthDES:
		return rpc.NewDESAuthenticator(s.SecretKey)
	default:
		return nil, fmt.Errorf("unsupported auth flavor %d", s.AuthFlavor)
	}
}

// swapMountPortBytes reproduces the legacy `ntohs` round-trip this tool's
// `-P port` inherits from its forebear: the two bytes of the port given on
// the command line are swapped before it is dialed, whatever the host's
// byte order, so `-P 2049` (0x0801) actually dials port 264 (0x0108).
// Kept deliberately, per
// spec.md's "do not silently fix" note on this exact quirk — an operator
// who wants the literal port must still account for it, the same as they
// always have.
func swapMountPortBytes(port uint16) uint16 {
	return (port << 8) | (port >> 8)
}

// dialPreferred tries network "tcp" first and "udp" second, unless forced
// to skip one, returning whichever connects along with the network name
// it actually used.
func dialPreferred(forceTCP, forceUDP bool, addr string, timeout time.Duration) (net.Conn, string, error) {
	var firstErr error
	if !forceUDP {
		conn, err := transport.DialPrivileged("tcp", addr, timeout)
		if err == nil {
			return conn, "tcp", nil
		}
		firstErr = err
		if forceTCP {
			return nil, "", firstErr
		}
	}
	if !forceTCP {
		conn, err := transport.DialPrivileged("udp", addr, timeout)
		if err == nil {
			return conn, "udp", nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", firstErr
}

// Host establishes a connection to the mount daemon on host, tearing down
// any prior host connection and any mount it was carrying first (per I1/I3:
// a new host means no old root/cwd handle survives). If route is non-nil,
// the connection is opened as an LSRR source-routed stream instead of a
// plain privileged dial.
func (s *State) Host(host string, mntPort uint16, route *transport.SourceRoute) error {
	if err := s.UmountLocal(); err != nil {
		logger.Warn("session: dropping previous mount state: %v", err)
	}
	if s.MountClient != nil {
		_ = s.MountClient.Close()
		s.MountClient = nil
	}

	auth, err := s.authenticator()
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	var conn net.Conn
	network := "tcp"
	if route != nil {
		conn, err = transport.OpenSourceRouted(*route, mntPort, rpc.DefaultTimeout)
	} else {
		addr := net.JoinHostPort(host, strconv.Itoa(int(mntPort)))
		conn, network, err = dialPreferred(false, false, addr, rpc.DefaultTimeout)
	}
	if err != nil {
		_ = auth.Close()
		return fmt.Errorf("dial mount daemon at %s: %w", host, err)
	}

	s.RemoteHost = host
	s.ServerAddr = host
	s.MntAddr = net.JoinHostPort(host, strconv.Itoa(int(mntPort)))
	s.MountClient = mountproto.NewClient(conn, network, auth)
	logger.Debug("session: host %s connected to mount daemon over %s", host, network)
	return nil
}

// dialNFSOverPortmap resolves the NFS port for the given protocol via a
// fresh portmap dial and connects to it, privileged-bound.
func (s *State) dialNFSOverPortmap(network string) (net.Conn, error) {
	proto := uint32(portmap.ProtoTCP)
	if network == "udp" {
		proto = portmap.ProtoUDP
	}

	pm, err := portmap.Dial(s.RemoteHost, rpc.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial portmap: %w", err)
	}
	defer pm.Close()

	port, err := pm.GetPort(nfs3.Program, nfs3.Version, proto)
	if err != nil {
		return nil, fmt.Errorf("resolve nfs port: %w", err)
	}

	addr := net.JoinHostPort(s.RemoteHost, strconv.Itoa(int(port)))
	return transport.DialPrivileged(network, addr, rpc.DefaultTimeout)
}

// dialNFS resolves and connects the NFS channel per flags: a direct dial
// to flags.Port (skipping portmap, applying the documented byte-swap)
// when given, otherwise TCP-preferred/UDP-fallback portmap resolution,
// pinned to one transport when -T/-U force it.
func (s *State) dialNFS(flags MountFlags) (net.Conn, string, error) {
	if flags.Port != 0 {
		network := "tcp"
		if flags.ForceUDP {
			network = "udp"
		}
		port := swapMountPortBytes(flags.Port)
		addr := net.JoinHostPort(s.RemoteHost, strconv.Itoa(int(port)))
		conn, err := transport.DialPrivileged(network, addr, rpc.DefaultTimeout)
		return conn, network, err
	}

	var firstErr error
	if !flags.ForceUDP {
		conn, err := s.dialNFSOverPortmap("tcp")
		if err == nil {
			return conn, "tcp", nil
		}
		firstErr = err
		if flags.ForceTCP {
			return nil, "", firstErr
		}
	}
	if !flags.ForceTCP {
		conn, err := s.dialNFSOverPortmap("udp")
		if err == nil {
			return conn, "udp", nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", firstErr
}

// Mount issues MNT for path against the current host and, on success,
// installs RootHandle/CwdHandle (I3) and connects the NFS client.
func (s *State) Mount(path string, flags MountFlags) error {
	if s.MountClient == nil {
		return fmt.Errorf("no host set; use 'host' before 'mount'")
	}

	var pm *portmap.Client
	var result *mountproto.MntResult
	var err error
	if flags.ThruPortmap {
		pm, err = portmap.Dial(s.RemoteHost, rpc.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("dial portmap for indirect mnt: %w", err)
		}
		result, err = mountproto.MntViaPortmap(pm, path)
	} else {
		result, err = s.MountClient.Mnt(path)
	}
	if err != nil {
		if pm != nil {
			pm.Close()
		}
		return fmt.Errorf("mnt %s: %w", path, err)
	}
	if result.Status != mountproto.OK {
		if pm != nil {
			pm.Close()
		}
		return fmt.Errorf("mnt %s: %s", path, mountproto.StatusString(result.Status))
	}

	rootHandle, err := result.Handle.ToNFSHandle()
	if err != nil {
		if pm != nil {
			pm.Close()
		}
		return fmt.Errorf("convert mount handle: %w", err)
	}

	if flags.UnmountAfter {
		if flags.ThruPortmap {
			if err := mountproto.UmntViaPortmap(pm, path); err != nil {
				logger.Warn("session: umount-after-mount via portmap failed: %v", err)
			}
		} else if err := s.MountClient.Umnt(path); err != nil {
			logger.Warn("session: umount-after-mount failed: %v", err)
		}
	}
	if pm != nil {
		pm.Close()
	}

	auth, err := s.authenticator()
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	conn, network, err := s.dialNFS(flags)
	if err != nil {
		_ = auth.Close()
		return fmt.Errorf("dial nfs daemon: %w", err)
	}

	if s.NFSClient != nil {
		_ = s.NFSClient.Close()
	}

	s.NFSAddr = conn.RemoteAddr().String()
	s.MountPath = path
	s.RootHandle = rootHandle
	s.CwdHandle = rootHandle
	s.NFSClient = nfs3.NewClient(conn, network, auth)

	if info, err := s.NFSClient.FsInfo(rootHandle); err == nil && info.Status == nfs3.OK {
		s.TransferSize = info.Info.WtMax
	} else {
		// Masking: a failed FSINFO after a successful mount does not fail
		// the mount itself, it only leaves the transfer size at its
		// fallback. Left exactly this way, per spec.md's documented
		// "do not silently fix" note on this behavior.
		s.TransferSize = DefaultTransferSize
	}

	return nil
}

// Umount issues UMNT for the current mount path and clears mount-local
// state (I3), but keeps the host-level MountClient connected.
func (s *State) Umount() error {
	if s.MountClient == nil || s.MountPath == "" {
		return fmt.Errorf("not mounted")
	}
	if err := s.MountClient.Umnt(s.MountPath); err != nil {
		return fmt.Errorf("umnt %s: %w", s.MountPath, err)
	}
	return s.UmountLocal()
}

// UmountAll issues UMNTALL, then clears local mount state regardless of
// whether this client itself currently holds a mount.
func (s *State) UmountAll() error {
	if s.MountClient == nil {
		return fmt.Errorf("no host set; use 'host' before 'umountall'")
	}
	if err := s.MountClient.UmntAll(); err != nil {
		return fmt.Errorf("umntall: %w", err)
	}
	return s.UmountLocal()
}

// UmountLocal drops this session's NFS client and mount-local fields
// without issuing any RPC, used both by Umount/UmountAll after a
// successful server-side call and by Host/Close when discarding stale
// state.
func (s *State) UmountLocal() error {
	if s.NFSClient != nil {
		if err := s.NFSClient.Close(); err != nil {
			s.NFSClient = nil
			return err
		}
		s.NFSClient = nil
	}
	s.MountPath = ""
	s.RootHandle = nil
	s.CwdHandle = nil
	return nil
}

// SetHandle overwrites CwdHandle directly — the `handle` verb's escape
// hatch for pointing the session at an arbitrary, possibly foreign,
// handle. Per I2 the caller is responsible for having verified (or
// knowingly bypassed verifying) that it names a directory; this method
// does not itself issue a GETATTR to check.
func (s *State) SetHandle(h *nfs3.Handle) {
	s.CwdHandle = h
}

// OpenNFS connects the NFS client directly against RemoteHost, bypassing
// MNT entirely — the other half of the `handle` verb's bypass path, used
// once CwdHandle has already been installed via SetHandle. On success it
// sets MountPath to the literal string "<handle>" and leaves RootHandle
// nil, since no MNT ever ran to establish one.
func (s *State) OpenNFS(flags MountFlags) error {
	if s.RemoteHost == "" {
		return fmt.Errorf("no host specified")
	}
	if s.CwdHandle == nil {
		return fmt.Errorf("no handle installed")
	}

	auth, err := s.authenticator()
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	conn, network, err := s.dialNFS(flags)
	if err != nil {
		_ = auth.Close()
		return fmt.Errorf("dial nfs daemon: %w", err)
	}

	if s.NFSClient != nil {
		_ = s.NFSClient.Close()
	}

	s.NFSAddr = conn.RemoteAddr().String()
	s.MountPath = "<handle>"
	s.RootHandle = nil
	s.NFSClient = nfs3.NewClient(conn, network, auth)

	if info, err := s.NFSClient.FsInfo(s.CwdHandle); err == nil && info.Status == nfs3.OK {
		s.TransferSize = info.Info.WtMax
	} else {
		s.TransferSize = DefaultTransferSize
	}
	return nil
}

// SetAuth replaces the session's credential parameters and rebuilds the
// authenticator on every currently-open client (I4: destroy-then-replace).
func (s *State) SetAuth(flavor, uid, gid uint32, secretKey string) error {
	s.AuthFlavor = flavor
	s.UID = uid
	s.GID = gid
	s.SecretKey = secretKey

	if s.MountClient == nil && s.NFSClient == nil {
		return nil
	}

	if s.MountClient != nil {
		auth, err := s.authenticator()
		if err != nil {
			return fmt.Errorf("rebuild mount authenticator: %w", err)
		}
		s.MountClient.SetAuthenticator(auth)
	}
	if s.NFSClient != nil {
		auth, err := s.authenticator()
		if err != nil {
			return fmt.Errorf("rebuild nfs authenticator: %w", err)
		}
		s.NFSClient.SetAuthenticator(auth)
	}
	return nil
}

// Close tears down every open client. Safe to call on an already-closed
// or never-connected session.
func (s *State) Close() error {
	_ = s.UmountLocal()
	if s.MountClient != nil {
		err := s.MountClient.Close()
		s.MountClient = nil
		return err
	}
	return nil
}
