// Package transport implements the socket-acquisition primitives this
// client needs that a plain net.Dial does not give you: binding a
// privileged (< 1024) source port before connecting, and constructing a
// TCP connection carrying an IPv4 Loose Source and Record Route option.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cubbit/nfsraw/internal/logger"
	"golang.org/x/sys/unix"
)

// HighPrivilegedPort is the starting point of the privileged-port walk.
const HighPrivilegedPort = 1023

// LowPrivilegedPort is IPPORT_RESERVED/2: the walk fails once it reaches
// this port without finding a free one.
const LowPrivilegedPort = 512

// DialPrivileged binds a privileged source port (walking 1023 down to 512)
// and connects to addr over network ("tcp" or "udp"). This is the
// C2 open_datagram / open_stream primitive; portmap resolution of addr's
// port is the caller's responsibility.
func DialPrivileged(network, addr string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)

	for port := HighPrivilegedPort; port > LowPrivilegedPort; port-- {
		laddr, err := localAddr(network, port)
		if err != nil {
			return nil, err
		}

		d := net.Dialer{
			Timeout:   time.Until(deadline),
			LocalAddr: laddr,
		}

		conn, err := d.Dial(network, addr)
		if err == nil {
			logger.Debug("transport: bound privileged port %d, connected to %s/%s", port, network, addr)
			return conn, nil
		}

		if isAddrInUse(err) || isAddrNotAvailable(err) {
			continue
		}
		return nil, fmt.Errorf("bind privileged port %d: %w", port, err)
	}

	return nil, fmt.Errorf("no privileged port available in [%d, %d]", LowPrivilegedPort+1, HighPrivilegedPort)
}

func localAddr(network string, port int) (net.Addr, error) {
	switch network {
	case "tcp":
		return &net.TCPAddr{Port: port}, nil
	case "udp":
		return &net.UDPAddr{Port: port}, nil
	default:
		return nil, fmt.Errorf("transport: unsupported network %q", network)
	}
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

func isAddrNotAvailable(err error) bool {
	return errors.Is(err, syscall.EADDRNOTAVAIL)
}

// SourceRoute is a parsed `[<localaddr>] '@' [<hop1>':'<hop2>':'…]<dest_host>`
// specification as accepted by `host`.
type SourceRoute struct {
	LocalAddr string   // optional; empty means let the OS pick within the bind walk
	Hops      []string // intermediate hop hostnames/addresses, in visiting order
	DestHost  string
}

// OpenSourceRouted opens a privileged TCP connection to destPort on the
// route's final destination, with an IPv4 LSRR option installed before
// connect so the packet traverses route.Hops.
//
// Per spec: if every privileged port in the walk fails with something
// other than EADDRINUSE/EADDRNOTAVAIL, this fails outright; if the walk is
// exhausted, callers operating in source-routed mode may choose to retry
// with a non-privileged bind (the explicit fallback the spec carves out),
// which this function performs automatically after the privileged walk is
// exhausted.
func OpenSourceRouted(route SourceRoute, destPort uint16, timeout time.Duration) (net.Conn, error) {
	hops := make([]net.IP, 0, len(route.Hops))
	for _, hop := range route.Hops {
		ip, err := resolveIPv4(hop)
		if err != nil {
			return nil, fmt.Errorf("resolve hop %q: %w", hop, err)
		}
		hops = append(hops, ip)
	}

	destIP, err := resolveIPv4(route.DestHost)
	if err != nil {
		return nil, fmt.Errorf("resolve destination %q: %w", route.DestHost, err)
	}

	var localIP net.IP
	if route.LocalAddr != "" {
		localIP, err = resolveIPv4(route.LocalAddr)
		if err != nil {
			return nil, fmt.Errorf("resolve local address %q: %w", route.LocalAddr, err)
		}
	}

	opts, err := buildLSRROption(hops)
	if err != nil {
		return nil, err
	}

	fd, err := dialRawTCPWithOptions(localIP, destIP, destPort, opts, timeout)
	if err != nil {
		return nil, err
	}

	file := fdToFile(fd, "nfsraw-source-routed")
	conn, err := net.FileConn(file)
	_ = file.Close()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wrap source-routed socket: %w", err)
	}

	return conn, nil
}

// buildLSRROption builds the IPv4 option bytes for Loose Source and Record
// Route (IPOPT_LSRR, type 0x83): 1 byte type, 1 byte length, 1 byte
// pointer (IPOPT_MINOFF = 4), followed by the 4-byte hop addresses, padded
// with zero bytes to a multiple of 4.
func buildLSRROption(hops []net.IP) ([]byte, error) {
	if len(hops) == 0 {
		return nil, nil
	}

	const ipoptLSRR = 0x83
	const ipoptMinOff = 4

	length := 3 + 4*len(hops)
	opt := make([]byte, 0, length+3)
	opt = append(opt, ipoptLSRR, byte(length), ipoptMinOff)
	for _, hop := range hops {
		v4 := hop.To4()
		if v4 == nil {
			return nil, fmt.Errorf("source route hop is not an IPv4 address: %s", hop)
		}
		opt = append(opt, v4...)
	}

	for len(opt)%4 != 0 {
		opt = append(opt, 0)
	}

	return opt, nil
}

// ParseHostSpec splits a top-level `host` argument into its destination
// and, if present, an LSRR source route: `[<localaddr>]@[<hop>:...]<dest>`.
// The destination substring is taken from whichever of the last ':' or
// first '@' appears in spec (':' wins when both are present); the route
// itself is then always parsed off the first '@' in the whole argument,
// with every colon-separated token that follows it — including the final
// one, which is also the destination — becoming an LSRR hop, exactly as
// the addresses end up duplicated in the original's ipopts buffer.
//
// A `<route>:<host>` form with no '@' anywhere carries no hops to build;
// the original dereferences a NULL strchr result in that case, this
// instead treats it as a bare destination with no source route.
func ParseHostSpec(spec string) (dest string, route *SourceRoute) {
	sep := strings.LastIndex(spec, ":")
	if sep < 0 {
		sep = strings.Index(spec, "@")
	}
	if sep < 0 {
		return spec, nil
	}
	dest = spec[sep+1:]

	at := strings.Index(spec, "@")
	if at < 0 {
		return dest, nil
	}

	return dest, &SourceRoute{
		LocalAddr: spec[:at],
		Hops:      strings.Split(spec[at+1:], ":"),
		DestHost:  dest,
	}
}

func resolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if v4 := addr.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address found for %s", host)
}
