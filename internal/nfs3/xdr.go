package nfs3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maxOpaqueLength bounds how much opaque data this client will accept from
// a reply, as a sanity check against a malformed or hostile server
// reporting an enormous length prefix.
const maxOpaqueLength = 1024 * 1024

// ----------------------------------------------------------------------
// Decoding helpers (server reply -> Go values)
// ----------------------------------------------------------------------

func decodeOpaque(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read opaque length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds sanity cap", length)
	}

	data := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("read opaque data: %w", err)
		}
	}

	if padding := xdrPadding(length); padding > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip opaque padding: %w", err)
		}
	}

	return data, nil
}

func decodeString(r io.Reader) (string, error) {
	data, err := decodeOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeHandle(r io.Reader) (*Handle, error) {
	data, err := decodeOpaque(r)
	if err != nil {
		return nil, err
	}
	return NewHandle(data)
}

func decodeBool(r io.Reader) (bool, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return false, err
	}
	return v != 0, nil
}

func decodeTimeVal(r io.Reader) (TimeVal, error) {
	var tv TimeVal
	if err := binary.Read(r, binary.BigEndian, &tv.Seconds); err != nil {
		return tv, err
	}
	if err := binary.Read(r, binary.BigEndian, &tv.Nseconds); err != nil {
		return tv, err
	}
	return tv, nil
}

func decodeFileAttr(r io.Reader) (*FileAttr, error) {
	attr := &FileAttr{}
	fields := []any{
		&attr.Type, &attr.Mode, &attr.Nlink, &attr.UID, &attr.GID,
		&attr.Size, &attr.Used,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return nil, fmt.Errorf("read fattr3 field: %w", err)
		}
	}
	if err := binary.Read(r, binary.BigEndian, &attr.Rdev); err != nil {
		return nil, fmt.Errorf("read rdev: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &attr.Fsid); err != nil {
		return nil, fmt.Errorf("read fsid: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &attr.Fileid); err != nil {
		return nil, fmt.Errorf("read fileid: %w", err)
	}

	var err error
	if attr.Atime, err = decodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read atime: %w", err)
	}
	if attr.Mtime, err = decodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read mtime: %w", err)
	}
	if attr.Ctime, err = decodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read ctime: %w", err)
	}

	return attr, nil
}

// decodePostOpAttr decodes post_op_attr: a present flag followed by an
// optional fattr3. Per the wire codec's contract, callers must tolerate a
// nil result on a successful call; this is surfaced as a protocol anomaly
// by the driver layer, not silently defaulted.
func decodePostOpAttr(r io.Reader) (*FileAttr, error) {
	present, err := decodeBool(r)
	if err != nil {
		return nil, fmt.Errorf("read post_op_attr present flag: %w", err)
	}
	if !present {
		return nil, nil
	}
	return decodeFileAttr(r)
}

func decodeWccAttr(r io.Reader) (*WccAttr, error) {
	attr := &WccAttr{}
	if err := binary.Read(r, binary.BigEndian, &attr.Size); err != nil {
		return nil, err
	}
	var err error
	if attr.Mtime, err = decodeTimeVal(r); err != nil {
		return nil, err
	}
	if attr.Ctime, err = decodeTimeVal(r); err != nil {
		return nil, err
	}
	return attr, nil
}

func decodeWccData(r io.Reader) (*WccData, error) {
	wcc := &WccData{}

	beforePresent, err := decodeBool(r)
	if err != nil {
		return nil, fmt.Errorf("read wcc before present: %w", err)
	}
	if beforePresent {
		if wcc.Before, err = decodeWccAttr(r); err != nil {
			return nil, fmt.Errorf("read wcc before: %w", err)
		}
	}

	if wcc.After, err = decodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("read wcc after: %w", err)
	}

	return wcc, nil
}

func decodeStatus(r io.Reader) (uint32, error) {
	var status uint32
	err := binary.Read(r, binary.BigEndian, &status)
	return status, err
}

// ----------------------------------------------------------------------
// Encoding helpers (Go values -> request wire format)
// ----------------------------------------------------------------------

func encodeOpaque(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write opaque length: %w", err)
	}
	buf.Write(data)
	buf.Write(make([]byte, xdrPadding(uint32(len(data)))))
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	return encodeOpaque(buf, []byte(s))
}

func encodeHandle(buf *bytes.Buffer, h *Handle) error {
	return encodeOpaque(buf, h.Bytes())
}

func encodeBool(buf *bytes.Buffer, b bool) error {
	v := uint32(0)
	if b {
		v = 1
	}
	return binary.Write(buf, binary.BigEndian, v)
}

func encodeTimeVal(buf *bytes.Buffer, tv TimeVal) error {
	if err := binary.Write(buf, binary.BigEndian, tv.Seconds); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, tv.Nseconds)
}

// encodeSetAttr writes an sattr3 discriminated union: each field is
// preceded by a set_it flag.
func encodeSetAttr(buf *bytes.Buffer, sa *SetAttr) error {
	if err := encodeOptionalUint32(buf, sa.Mode); err != nil {
		return fmt.Errorf("encode mode: %w", err)
	}
	if err := encodeOptionalUint32(buf, sa.UID); err != nil {
		return fmt.Errorf("encode uid: %w", err)
	}
	if err := encodeOptionalUint32(buf, sa.GID); err != nil {
		return fmt.Errorf("encode gid: %w", err)
	}
	if err := encodeOptionalUint64(buf, sa.Size); err != nil {
		return fmt.Errorf("encode size: %w", err)
	}
	if err := encodeSetTime(buf, sa.Atime); err != nil {
		return fmt.Errorf("encode atime: %w", err)
	}
	if err := encodeSetTime(buf, sa.Mtime); err != nil {
		return fmt.Errorf("encode mtime: %w", err)
	}
	return nil
}

func encodeOptionalUint32(buf *bytes.Buffer, v *uint32) error {
	if v == nil {
		return encodeBool(buf, false)
	}
	if err := encodeBool(buf, true); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, *v)
}

func encodeOptionalUint64(buf *bytes.Buffer, v *uint64) error {
	if v == nil {
		return encodeBool(buf, false)
	}
	if err := encodeBool(buf, true); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, *v)
}

// encodeSetTime writes a set_mtime/set_atime union. This client only ever
// uses the "don't change" (0) and "set to client time" (2, SET_TO_CLIENT_TIME)
// arms; it never asks the server to set its own time for the field
// (SET_TO_SERVER_TIME, arm 1).
func encodeSetTime(buf *bytes.Buffer, t *TimeVal) error {
	if t == nil {
		return binary.Write(buf, binary.BigEndian, uint32(0))
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(2)); err != nil {
		return err
	}
	return encodeTimeVal(buf, *t)
}

func encodeTimeGuard(buf *bytes.Buffer, g TimeGuard) error {
	if err := encodeBool(buf, g.Check); err != nil {
		return err
	}
	if !g.Check {
		return nil
	}
	return encodeTimeVal(buf, g.Time)
}

func xdrPadding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

// ----------------------------------------------------------------------
// Scalar helpers shared by the procedure-specific encode/decode functions.
// ----------------------------------------------------------------------

func readUint32(r io.Reader, v *uint32) error {
	return binary.Read(r, binary.BigEndian, v)
}

func readUint64(r io.Reader, v *uint64) error {
	return binary.Read(r, binary.BigEndian, v)
}

func writeUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func writeUint64(buf *bytes.Buffer, v uint64) error {
	return binary.Write(buf, binary.BigEndian, v)
}
