package rpc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// UnixAuth is the decoded form of an AUTH_UNIX credential body (RFC 5531
// Section 8.2, "auth_unix" / historically "AUTH_SYS").
//
// Wire format: stamp(uint32), machinename(string), uid(uint32), gid(uint32),
// gids(array of uint32, max 16 elements).
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// String renders the credential for verbose/debug banners.
func (a *UnixAuth) String() string {
	return fmt.Sprintf("AUTH_UNIX{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

// Encode marshals the credential to its AUTH_UNIX wire body.
func (a *UnixAuth) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, a.Stamp); err != nil {
		return nil, fmt.Errorf("write stamp: %w", err)
	}

	nameLen := uint32(len(a.MachineName))
	if err := binary.Write(&buf, binary.BigEndian, nameLen); err != nil {
		return nil, fmt.Errorf("write machine name length: %w", err)
	}
	buf.WriteString(a.MachineName)
	buf.Write(make([]byte, XdrPadding(nameLen)))

	if err := binary.Write(&buf, binary.BigEndian, a.UID); err != nil {
		return nil, fmt.Errorf("write uid: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, a.GID); err != nil {
		return nil, fmt.Errorf("write gid: %w", err)
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(a.GIDs))); err != nil {
		return nil, fmt.Errorf("write gids count: %w", err)
	}
	for _, gid := range a.GIDs {
		if err := binary.Write(&buf, binary.BigEndian, gid); err != nil {
			return nil, fmt.Errorf("write gid: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// ParseUnixAuth decodes an AUTH_UNIX credential body. It is used by the
// client's own round-trip tests and is the mirror of Encode.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("auth_unix: empty credential body")
	}

	r := bytes.NewReader(body)
	auth := &UnixAuth{}

	if err := binary.Read(r, binary.BigEndian, &auth.Stamp); err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}

	var nameLen uint32
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("read machine name length: %w", err)
	}
	if nameLen > maxMachineName {
		return nil, fmt.Errorf("auth_unix: machine name too long (%d)", nameLen)
	}

	nameBytes := make([]byte, nameLen)
	if nameLen > 0 {
		if _, err := r.Read(nameBytes); err != nil {
			return nil, fmt.Errorf("read machine name: %w", err)
		}
	}
	auth.MachineName = string(nameBytes)
	if _, err := r.Seek(int64(XdrPadding(nameLen)), 1); err != nil {
		return nil, fmt.Errorf("skip machine name padding: %w", err)
	}

	if err := binary.Read(r, binary.BigEndian, &auth.UID); err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &auth.GID); err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}

	var gidCount uint32
	if err := binary.Read(r, binary.BigEndian, &gidCount); err != nil {
		return nil, fmt.Errorf("read gids count: %w", err)
	}
	if gidCount > maxGIDs {
		return nil, fmt.Errorf("auth_unix: too many gids (%d)", gidCount)
	}

	auth.GIDs = make([]uint32, gidCount)
	for i := range auth.GIDs {
		if err := binary.Read(r, binary.BigEndian, &auth.GIDs[i]); err != nil {
			return nil, fmt.Errorf("read gid[%d]: %w", i, err)
		}
	}

	return auth, nil
}

// XdrPadding reports how many zero bytes are needed to align length onto a
// 4-byte boundary, per RFC 4506 Section 3.9.
func XdrPadding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

// Authenticator owns the credential attached to an RPC client handle.
//
// Per the session invariant that an authenticator must be destroyed before
// a replacement is installed (I4), callers must call Close on the previous
// Authenticator before discarding it; Close is idempotent and side-effect
// free here since there is no underlying OS resource, but it exists so the
// invariant has a concrete enforcement point future auth flavors can hook.
type Authenticator struct {
	flavor uint32
	cred   OpaqueAuth
	closed bool
}

// NewUnixAuthenticator builds an AUTH_UNIX authenticator from the session's
// hostname, uid and a single gid. Per spec this client never sends more
// than one supplementary group, even though AUTH_UNIX allows up to 16.
func NewUnixAuthenticator(hostname string, uid, gid uint32) (*Authenticator, error) {
	if len(hostname) > maxMachineName {
		hostname = hostname[:maxMachineName]
	}

	auth := &UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: hostname,
		UID:         uid,
		GID:         gid,
		GIDs:        []uint32{gid},
	}

	body, err := auth.Encode()
	if err != nil {
		return nil, fmt.Errorf("build auth_unix credential: %w", err)
	}

	return &Authenticator{
		flavor: AuthUnix,
		cred:   OpaqueAuth{Flavor: AuthUnix, Body: body},
	}, nil
}

// NewDESAuthenticator always fails: AUTH_DES (AUTH_DH) requires a running
// keyserver and Diffie-Hellman key exchange this client does not implement.
// It is accepted as a command-line value only so the error can be reported
// at the point the operator actually asks for it.
func NewDESAuthenticator(secretKey string) (*Authenticator, error) {
	return nil, fmt.Errorf("auth: AUTH_DES is not supported by this client")
}

// Credential returns the OpaqueAuth to attach to outgoing RPC calls.
func (a *Authenticator) Credential() OpaqueAuth {
	return a.cred
}

// Flavor reports the authentication flavor this authenticator implements.
func (a *Authenticator) Flavor() uint32 {
	return a.flavor
}

// Close destroys the authenticator. Safe to call multiple times.
func (a *Authenticator) Close() error {
	a.closed = true
	return nil
}
