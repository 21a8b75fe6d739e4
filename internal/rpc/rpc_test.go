package rpc

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validUnixAuth() *UnixAuth {
	return &UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: "testhost",
		UID:         1000,
		GID:         1000,
		GIDs:        []uint32{1000},
	}
}

func TestUnixAuthEncodeParseRoundTrip(t *testing.T) {
	t.Run("ParsesValidCredentials", func(t *testing.T) {
		original := validUnixAuth()
		body, err := original.Encode()
		require.NoError(t, err)

		parsed, err := ParseUnixAuth(body)
		require.NoError(t, err)
		assert.Equal(t, original.Stamp, parsed.Stamp)
		assert.Equal(t, original.MachineName, parsed.MachineName)
		assert.Equal(t, original.UID, parsed.UID)
		assert.Equal(t, original.GID, parsed.GID)
		assert.Equal(t, original.GIDs, parsed.GIDs)
	})

	t.Run("ParsesRootCredentials", func(t *testing.T) {
		auth := &UnixAuth{Stamp: 1, MachineName: "h", UID: 0, GID: 0, GIDs: []uint32{0}}
		body, err := auth.Encode()
		require.NoError(t, err)

		parsed, err := ParseUnixAuth(body)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), parsed.UID)
		assert.Equal(t, uint32(0), parsed.GID)
	})

	t.Run("RejectsEmptyBody", func(t *testing.T) {
		_, err := ParseUnixAuth([]byte{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("RejectsExcessiveGroups", func(t *testing.T) {
		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.BigEndian, uint32(1))
		_ = binary.Write(buf, binary.BigEndian, uint32(0))
		_ = binary.Write(buf, binary.BigEndian, uint32(1000))
		_ = binary.Write(buf, binary.BigEndian, uint32(1000))
		_ = binary.Write(buf, binary.BigEndian, uint32(17))

		_, err := ParseUnixAuth(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many gids")
	})

	t.Run("RejectsLongMachineName", func(t *testing.T) {
		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.BigEndian, uint32(1))
		_ = binary.Write(buf, binary.BigEndian, uint32(4096))

		_, err := ParseUnixAuth(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "machine name too long")
	})
}

func TestNewUnixAuthenticator(t *testing.T) {
	auth, err := NewUnixAuthenticator("probehost", 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, AuthUnix, auth.Flavor())

	cred := auth.Credential()
	assert.Equal(t, AuthUnix, cred.Flavor)

	parsed, err := ParseUnixAuth(cred.Body)
	require.NoError(t, err)
	assert.Equal(t, "probehost", parsed.MachineName)
	assert.Equal(t, uint32(1000), parsed.UID)
	// Single-element group list regardless of the operator's real secondary
	// groups, per the documented limitation this client carries forward.
	assert.Equal(t, []uint32{1000}, parsed.GIDs)
}

func TestNewUnixAuthenticatorTruncatesLongHostname(t *testing.T) {
	long := bytes.Repeat([]byte("a"), 1000)
	auth, err := NewUnixAuthenticator(string(long), 0, 0)
	require.NoError(t, err)

	parsed, err := ParseUnixAuth(auth.Credential().Body)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(parsed.MachineName), maxMachineName)
}

func TestNewDESAuthenticatorIsRejected(t *testing.T) {
	_, err := NewDESAuthenticator("secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_DES")
}

func TestXdrPadding(t *testing.T) {
	assert.Equal(t, uint32(0), XdrPadding(0))
	assert.Equal(t, uint32(3), XdrPadding(1))
	assert.Equal(t, uint32(2), XdrPadding(2))
	assert.Equal(t, uint32(1), XdrPadding(3))
	assert.Equal(t, uint32(0), XdrPadding(4))
}

func TestClientSetAuthenticatorDestroysPrevious(t *testing.T) {
	a1, err := NewUnixAuthenticator("h", 0, 0)
	require.NoError(t, err)
	a2, err := NewUnixAuthenticator("h2", 1, 1)
	require.NoError(t, err)

	c := &Client{auth: a1}
	c.SetAuthenticator(a2)

	assert.True(t, a1.closed)
	assert.False(t, a2.closed)
}
