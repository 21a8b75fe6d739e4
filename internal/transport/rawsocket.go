package transport

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cubbit/nfsraw/internal/logger"
	"golang.org/x/sys/unix"
)

// dialRawTCPWithOptions creates a raw AF_INET/SOCK_STREAM socket, binds it
// to a privileged source port (falling back to an OS-chosen non-privileged
// port only once the privileged walk is exhausted, per the spec's explicit
// source-routed-mode carve-out), installs opts via IP_OPTIONS, and connects
// to dest:port. The connect itself is left blocking, matching the "no
// non-blocking I/O" resource model this client follows throughout.
func dialRawTCPWithOptions(localIP, dest net.IP, port uint16, opts []byte, timeout time.Duration) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	bound := false
	var boundPort int
	for p := HighPrivilegedPort; p > LowPrivilegedPort; p-- {
		sa := &unix.SockaddrInet4{Port: p}
		copyIP(sa.Addr[:], localIP)

		if err := unix.Bind(fd, sa); err == nil {
			bound = true
			boundPort = p
			break
		} else if err != unix.EADDRINUSE && err != unix.EADDRNOTAVAIL {
			unix.Close(fd)
			return -1, fmt.Errorf("bind privileged port %d: %w", p, err)
		}
	}

	if !bound {
		sa := &unix.SockaddrInet4{Port: 0}
		copyIP(sa.Addr[:], localIP)
		if err := unix.Bind(fd, sa); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("fallback non-privileged bind: %w", err)
		}
		logger.Debug("transport: privileged bind walk exhausted, fell back to non-privileged port")
	} else {
		logger.Debug("transport: source-routed socket bound to privileged port %d", boundPort)
	}

	if len(opts) > 0 {
		if err := unix.SetsockoptString(fd, unix.IPPROTO_IP, unix.IP_OPTIONS, string(opts)); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("set IP_OPTIONS: %w", err)
		}
	}

	destSA := &unix.SockaddrInet4{Port: int(port)}
	copyIP(destSA.Addr[:], dest)

	if err := unix.Connect(fd, destSA); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("connect: %w", err)
	}

	return fd, nil
}

func copyIP(dst []byte, ip net.IP) {
	if ip == nil {
		return
	}
	v4 := ip.To4()
	copy(dst, v4)
}

func fdToFile(fd int, name string) *os.File {
	return os.NewFile(uintptr(fd), name)
}
