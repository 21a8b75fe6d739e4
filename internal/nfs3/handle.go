package nfs3

import (
	"encoding/hex"
	"fmt"
)

// Handle is an nfs_fh3 (RFC 1813 Section 2.5.3): an opaque, length-prefixed
// byte string naming a filesystem object, capped at MaxHandleLength bytes.
//
// Kept as its own type rather than a bare []byte so it can never be
// silently aliased with the MOUNT protocol's fhandle3, which has the same
// wire shape but a distinct provenance (see mountproto.Handle and
// mountproto.Handle.ToNFSHandle).
type Handle struct {
	data []byte
}

// NewHandle copies body into a new Handle, rejecting anything over the
// wire cap. Copying (rather than wrapping) keeps handle bodies from being
// aliased across calls, per the no-aliasing rule this client follows.
func NewHandle(body []byte) (*Handle, error) {
	if len(body) > MaxHandleLength {
		return nil, fmt.Errorf("nfs handle exceeds %d bytes (%d)", MaxHandleLength, len(body))
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	return &Handle{data: cp}, nil
}

// Bytes returns a defensive copy of the handle body.
func (h *Handle) Bytes() []byte {
	cp := make([]byte, len(h.data))
	copy(cp, h.data)
	return cp
}

// Len reports the handle body length.
func (h *Handle) Len() int {
	return len(h.data)
}

// Hex renders the handle as lowercase hex pairs, used by the `handle`
// shell verb's output per the spec's round-trip property (P3).
func (h *Handle) Hex() string {
	return hex.EncodeToString(h.data)
}

// ParseHex parses a hex string produced by Hex back into a Handle.
func ParseHex(s string) (*Handle, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse handle hex: %w", err)
	}
	return NewHandle(raw)
}
