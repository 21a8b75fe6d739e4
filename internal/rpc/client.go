package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/cubbit/nfsraw/internal/logger"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// DefaultTimeout is the uniform per-call timeout applied to every RPC this
// client issues, matching the classic nfsshell default of 60 seconds.
const DefaultTimeout = 60 * time.Second

// Client is a synchronous ONC RPC v2 client bound to one (program, version)
// pair over one already-connected transport. It performs exactly one
// in-flight call at a time; there is no call pipelining and no retry.
type Client struct {
	conn    net.Conn
	network string // "tcp" or "udp"
	program uint32
	version uint32
	auth    *Authenticator
	timeout time.Duration
}

// NewClient wraps an already-dialled connection. network must be "tcp" or
// "udp"; it determines whether calls are record-marked.
func NewClient(conn net.Conn, network string, program, version uint32, auth *Authenticator) *Client {
	return &Client{
		conn:    conn,
		network: network,
		program: program,
		version: version,
		auth:    auth,
		timeout: DefaultTimeout,
	}
}

// SetAuthenticator replaces the client's credential, destroying the
// previous one first per invariant I4.
func (c *Client) SetAuthenticator(auth *Authenticator) {
	if c.auth != nil {
		_ = c.auth.Close()
	}
	c.auth = auth
}

// SetTimeout overrides the default per-call timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close destroys the authenticator (I4) and closes the underlying socket.
func (c *Client) Close() error {
	if c.auth != nil {
		_ = c.auth.Close()
	}
	return c.conn.Close()
}

// Call issues one synchronous RPC: procedure procedure of (program,
// version), with args already XDR-encoded by the caller, and decodes the
// reply header. On RPCSuccess it returns the raw result bytes (still
// XDR-encoded, procedure-specific) for the caller to unmarshal. On any
// other outcome it returns a descriptive error; the caller decides whether
// the client handle is still usable (RPC transport errors are not, decoded
// protocol errors are).
func (c *Client) Call(procedure uint32, args []byte) ([]byte, error) {
	xid := newXID()

	cred := OpaqueAuth{Flavor: AuthNull}
	if c.auth != nil {
		cred = c.auth.Credential()
	}

	call := RPCCallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    c.program,
		Version:    c.version,
		Procedure:  procedure,
		Cred:       cred,
		Verf:       OpaqueAuth{Flavor: AuthNull},
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &call); err != nil {
		return nil, fmt.Errorf("marshal rpc call: %w", err)
	}
	buf.Write(args)

	logger.Debug("rpc: xid=%d program=%d version=%d procedure=%d bytes=%d", xid, c.program, c.version, procedure, buf.Len())

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := c.send(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("send rpc call: %w", err)
	}

	reply, err := c.receive()
	if err != nil {
		return nil, fmt.Errorf("receive rpc reply: %w", err)
	}

	return c.parseReply(xid, reply)
}

func (c *Client) send(message []byte) error {
	if c.network == "tcp" {
		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, 0x80000000|uint32(len(message)))
		if _, err := c.conn.Write(header); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(message)
	return err
}

func (c *Client) receive() ([]byte, error) {
	if c.network == "tcp" {
		return c.receiveTCP()
	}
	return c.receiveUDP()
}

// receiveTCP reassembles one or more RPC record-marking fragments into a
// single logical message (RFC 5531 Section 11).
func (c *Client) receiveTCP() ([]byte, error) {
	var message []byte
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(c.conn, header); err != nil {
			return nil, fmt.Errorf("read fragment header: %w", err)
		}
		value := binary.BigEndian.Uint32(header)
		last := value&0x80000000 != 0
		length := value &^ 0x80000000

		fragment := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(c.conn, fragment); err != nil {
				return nil, fmt.Errorf("read fragment body: %w", err)
			}
		}
		message = append(message, fragment...)

		if last {
			break
		}
	}
	return message, nil
}

func (c *Client) receiveUDP() ([]byte, error) {
	buf := make([]byte, 65536)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *Client) parseReply(xid uint32, message []byte) ([]byte, error) {
	reply := RPCReplyMessage{}
	consumed, err := xdr.Unmarshal(bytes.NewReader(message), &reply)
	if err != nil {
		return nil, fmt.Errorf("unmarshal rpc reply: %w", err)
	}

	if reply.MsgType != RPCReply {
		return nil, fmt.Errorf("expected REPLY (1), got %d", reply.MsgType)
	}
	if reply.XID != xid {
		return nil, fmt.Errorf("xid mismatch: sent %d, got %d", xid, reply.XID)
	}
	if reply.ReplyState == RPCMsgDenied {
		return nil, fmt.Errorf("rpc call denied (auth failure or rpc version mismatch)")
	}
	if reply.AcceptStat != RPCSuccess {
		return nil, fmt.Errorf("rpc accept status %d (%s)", reply.AcceptStat, acceptStatString(reply.AcceptStat))
	}

	if consumed >= len(message) {
		return []byte{}, nil
	}
	return message[consumed:], nil
}

func acceptStatString(stat uint32) string {
	switch stat {
	case RPCProgUnavail:
		return "PROG_UNAVAIL"
	case RPCProgMismatch:
		return "PROG_MISMATCH"
	case RPCProcUnavail:
		return "PROC_UNAVAIL"
	case RPCGarbageArgs:
		return "GARBAGE_ARGS"
	case RPCSystemErr:
		return "SYSTEM_ERR"
	default:
		return "UNKNOWN"
	}
}

func newXID() uint32 {
	return rand.Uint32()
}
