package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLSRROptionEmpty(t *testing.T) {
	opt, err := buildLSRROption(nil)
	require.NoError(t, err)
	assert.Nil(t, opt)
}

func TestBuildLSRROptionSingleHop(t *testing.T) {
	hop := net.ParseIP("10.0.0.1")
	opt, err := buildLSRROption([]net.IP{hop})
	require.NoError(t, err)

	// type, length, pointer, then 4 hop bytes = 7, padded to 8.
	require.Len(t, opt, 8)
	assert.Equal(t, byte(0x83), opt[0])
	assert.Equal(t, byte(7), opt[1])
	assert.Equal(t, byte(4), opt[2])
	assert.Equal(t, []byte{10, 0, 0, 1}, opt[3:7])
	assert.Equal(t, byte(0), opt[7])
}

func TestBuildLSRROptionMultipleHopsPadding(t *testing.T) {
	hops := []net.IP{net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2")}
	opt, err := buildLSRROption(hops)
	require.NoError(t, err)

	// 3 + 8 = 11, padded to 12.
	assert.Len(t, opt, 12)
	assert.Equal(t, 0, len(opt)%4)
}

func TestBuildLSRROptionRejectsIPv6(t *testing.T) {
	hop := net.ParseIP("::1")
	_, err := buildLSRROption([]net.IP{hop})
	require.Error(t, err)
}

func TestLocalAddrNetworks(t *testing.T) {
	tcpAddr, err := localAddr("tcp", 1000)
	require.NoError(t, err)
	assert.Equal(t, ":1000", tcpAddr.(*net.TCPAddr).String())

	udpAddr, err := localAddr("udp", 1000)
	require.NoError(t, err)
	assert.Equal(t, ":1000", udpAddr.(*net.UDPAddr).String())

	_, err = localAddr("sctp", 1000)
	require.Error(t, err)
}
