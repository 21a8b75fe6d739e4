package mountproto

import (
	"fmt"

	"github.com/cubbit/nfsraw/internal/nfs3"
)

// Handle is a fhandle3 (RFC 1813 Appendix I): the opaque handle returned by
// MNT, naming the root of an exported filesystem.
//
// This has the same wire shape as nfs3.Handle but a distinct provenance —
// one comes back from MNT, the other from NFSv3 LOOKUP/CREATE/etc — so the
// two are kept as separate Go types. ToNFSHandle is the only sanctioned
// conversion between them.
type Handle struct {
	data []byte
}

// NewHandle copies body into a new Handle, rejecting anything over the
// wire cap.
func NewHandle(body []byte) (*Handle, error) {
	if len(body) > MaxHandleLength {
		return nil, fmt.Errorf("mount handle exceeds %d bytes (%d)", MaxHandleLength, len(body))
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

// ToNFSHandle converts a MOUNT-side fhandle3 into the NFSv3-side nfs_fh3
// used for all subsequent calls against the mounted filesystem. The wire
// bytes are identical; only the type changes, explicitly, at the one
// point the session driver hands a fresh mount's root handle off to the
// NFS client.
func (h *Handle) ToNFSHandle() (*nfs3.Handle, error) {
	return nfs3.NewHandle(h.data)
}
