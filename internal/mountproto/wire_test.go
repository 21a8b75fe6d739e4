package mountproto

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMntResultSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(OK)))
	require.NoError(t, encodeOpaque(&buf, []byte{1, 2, 3, 4}))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(1)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int32(1))) // AUTH_UNIX

	result, err := decodeMntResult(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(OK), result.Status)
	assert.Equal(t, []byte{1, 2, 3, 4}, result.Handle.Bytes())
	assert.Equal(t, []int32{1}, result.AuthFlavors)
}

func TestDecodeMntResultFailureHasNoHandle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(ErrAcces)))

	result, err := decodeMntResult(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(ErrAcces), result.Status)
	assert.Nil(t, result.Handle)
}

func TestDecodeDumpResultMultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	for _, e := range []DumpEntry{{Hostname: "client-a", Directory: "/export/a"}, {Hostname: "client-b", Directory: "/export/b"}} {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(1)))
		require.NoError(t, encodeString(&buf, e.Hostname))
		require.NoError(t, encodeString(&buf, e.Directory))
	}
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(0)))

	entries, err := decodeDumpResult(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "client-a", entries[0].Hostname)
	assert.Equal(t, "/export/b", entries[1].Directory)
}

func TestDecodeExportResultWithGroups(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(1)))
	require.NoError(t, encodeString(&buf, "/export/a"))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(1)))
	require.NoError(t, encodeString(&buf, "192.168.1.0/24"))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(0))) // end groups
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(0))) // end entries

	entries, err := decodeExportResult(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/export/a", entries[0].Directory)
	assert.Equal(t, []string{"192.168.1.0/24"}, entries[0].Groups)
}

func TestHandleLenAndBytesAreDefensiveCopies(t *testing.T) {
	h, err := NewHandle([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, h.Len())

	b := h.Bytes()
	b[0] = 0xff
	assert.Equal(t, byte(1), h.Bytes()[0])
}

func TestNewHandleRejectsOversizedBody(t *testing.T) {
	_, err := NewHandle(make([]byte, MaxHandleLength+1))
	assert.Error(t, err)
}

func TestStatusStringUnknownFallsBackToCatchAll(t *testing.T) {
	assert.Equal(t, "UNKNOWN MOUNT ERROR", StatusString(999999))
	assert.Equal(t, "MNT3_OK", StatusString(OK))
}
