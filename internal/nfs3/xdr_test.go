package nfs3

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFileAttr() *FileAttr {
	return &FileAttr{
		Type: FileTypeRegular, Mode: 0644, Nlink: 1, UID: 1000, GID: 1000,
		Size: 4096, Used: 4096,
		Rdev:   SpecData{Major: 0, Minor: 0},
		Fsid:   1, Fileid: 42,
		Atime: TimeVal{Seconds: 1000, Nseconds: 0},
		Mtime: TimeVal{Seconds: 1001, Nseconds: 0},
		Ctime: TimeVal{Seconds: 1002, Nseconds: 0},
	}
}

func encodeFileAttrForTest(t *testing.T, attr *FileAttr) []byte {
	t.Helper()
	var buf bytes.Buffer
	fields := []any{attr.Type, attr.Mode, attr.Nlink, attr.UID, attr.GID, attr.Size, attr.Used}
	for _, f := range fields {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, f))
	}
	require.NoError(t, binary.Write(&buf, binary.BigEndian, attr.Rdev))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, attr.Fsid))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, attr.Fileid))
	require.NoError(t, encodeTimeVal(&buf, attr.Atime))
	require.NoError(t, encodeTimeVal(&buf, attr.Mtime))
	require.NoError(t, encodeTimeVal(&buf, attr.Ctime))
	return buf.Bytes()
}

func TestDecodeFileAttrRoundTrip(t *testing.T) {
	attr := validFileAttr()
	data := encodeFileAttrForTest(t, attr)

	decoded, err := decodeFileAttr(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, attr, decoded)
}

func TestDecodePostOpAttrAbsentReturnsNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeBool(&buf, false))

	attr, err := decodePostOpAttr(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Nil(t, attr)
}

func TestDecodePostOpAttrPresent(t *testing.T) {
	attr := validFileAttr()
	var buf bytes.Buffer
	require.NoError(t, encodeBool(&buf, true))
	buf.Write(encodeFileAttrForTest(t, attr))

	decoded, err := decodePostOpAttr(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, attr, decoded)
}

func TestEncodeSetAttrOnlyWritesSelectedFields(t *testing.T) {
	mode := uint32(0755)
	sa := &SetAttr{Mode: &mode}

	var buf bytes.Buffer
	require.NoError(t, encodeSetAttr(&buf, sa))

	r := bytes.NewReader(buf.Bytes())
	set, err := decodeBool(r)
	require.NoError(t, err)
	assert.True(t, set)

	var decodedMode uint32
	require.NoError(t, readUint32(r, &decodedMode))
	assert.Equal(t, mode, decodedMode)

	// uid not set
	set, err = decodeBool(r)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestHandleHexRoundTrip(t *testing.T) {
	h, err := NewHandle([]byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)

	parsed, err := ParseHex(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h.Bytes(), parsed.Bytes())
}

func TestNewHandleRejectsOversizedBody(t *testing.T) {
	_, err := NewHandle(make([]byte, MaxHandleLength+1))
	assert.Error(t, err)
}

func TestStatusStringUnknownFallsBackToCatchAll(t *testing.T) {
	assert.Equal(t, "UNKNOWN NFS ERROR", StatusString(999999))
	assert.Equal(t, "NFS3_OK", StatusString(OK))
}

func TestXdrPadding(t *testing.T) {
	assert.Equal(t, uint32(0), xdrPadding(4))
	assert.Equal(t, uint32(3), xdrPadding(1))
	assert.Equal(t, uint32(2), xdrPadding(2))
	assert.Equal(t, uint32(1), xdrPadding(3))
}
