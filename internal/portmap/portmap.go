// Package portmap implements the client side of the port mapper protocol
// (RFC 1833, program 100000 version 2), used to resolve which port an
// RPC program/version is listening on and, for "mount -p", to relay a
// MOUNT call through the portmapper's indirect CALLIT procedure.
package portmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/cubbit/nfsraw/internal/logger"
	"github.com/cubbit/nfsraw/internal/rpc"
)

// Port is the well-known port the portmapper listens on.
const Port = 111

// Portmap procedure numbers (RFC 1833 Section 3).
const (
	ProcNull    = 0
	ProcSet     = 1
	ProcUnset   = 2
	ProcGetPort = 3
	ProcDump    = 4
	ProcCallIt  = 5
)

// Version is the portmap program version this client speaks.
const Version = 2

// IPPROTO values accepted by GetPort/CallIt's protocol argument.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// Client resolves service ports from a portmapper reachable over conn.
type Client struct {
	rpcClient *rpc.Client
}

// Dial connects to the portmapper at host (UDP, as classic clients do for
// the small, latency-sensitive GETPORT/CALLIT exchanges) and returns a
// ready Client.
func Dial(host string, timeout time.Duration) (*Client, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", Port))
	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial portmapper at %s: %w", addr, err)
	}

	c := rpc.NewClient(conn, "udp", rpc.ProgramPortmap, Version, nil)
	c.SetTimeout(timeout)
	return &Client{rpcClient: c}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rpcClient.Close()
}

// GetPort resolves (program, version, protocol) to a port number via
// PMAPPROC_GETPORT. protocol is IPPROTO_TCP (6) or IPPROTO_UDP (17).
func (c *Client) GetPort(program, version, protocol uint32) (uint16, error) {
	var buf bytes.Buffer
	mapping := [4]uint32{program, version, protocol, 0}
	for _, v := range mapping {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return 0, fmt.Errorf("encode mapping: %w", err)
		}
	}

	result, err := c.rpcClient.Call(ProcGetPort, buf.Bytes())
	if err != nil {
		return 0, fmt.Errorf("GETPORT: %w", err)
	}
	if len(result) < 4 {
		return 0, fmt.Errorf("GETPORT: short reply (%d bytes)", len(result))
	}

	port := binary.BigEndian.Uint32(result[:4])
	if port == 0 {
		return 0, fmt.Errorf("GETPORT: program %d version %d not registered", program, version)
	}

	logger.Debug("portmap: program=%d version=%d protocol=%d -> port %d", program, version, protocol, port)
	return uint16(port), nil
}

// CallItResult is the decoded reply of PMAPPROC_CALLIT: the port the
// target procedure actually ran on, and its raw, still-XDR-encoded result
// bytes for the caller to unmarshal according to the called procedure.
type CallItResult struct {
	Port uint32
	Data []byte
}

// CallIt issues an indirect RPC through the portmapper's CALLIT procedure:
// the portmapper itself finds the target program/version's port, forwards
// the call, and relays the result back. This is how `mount -p` avoids a
// separate GETPORT round-trip against the MOUNT program.
func (c *Client) CallIt(program, version, procedure uint32, args []byte) (*CallItResult, error) {
	var buf bytes.Buffer
	for _, v := range []uint32{program, version, procedure, uint32(len(args))} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, fmt.Errorf("encode callit args: %w", err)
		}
	}
	buf.Write(args)
	buf.Write(make([]byte, rpc.XdrPadding(uint32(len(args)))))

	result, err := c.rpcClient.Call(ProcCallIt, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("CALLIT: %w", err)
	}
	if len(result) < 8 {
		return nil, fmt.Errorf("CALLIT: short reply (%d bytes)", len(result))
	}

	port := binary.BigEndian.Uint32(result[:4])
	dataLen := binary.BigEndian.Uint32(result[4:8])
	if 8+int(dataLen) > len(result) {
		return nil, fmt.Errorf("CALLIT: reply data length %d exceeds message", dataLen)
	}

	return &CallItResult{
		Port: port,
		Data: result[8 : 8+int(dataLen)],
	}, nil
}
