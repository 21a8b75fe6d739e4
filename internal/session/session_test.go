package session

import (
	"testing"

	"github.com/cubbit/nfsraw/internal/nfs3"
	"github.com/cubbit/nfsraw/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToAuthUnixAndFallbackTransferSize(t *testing.T) {
	s := New()
	assert.Equal(t, rpc.AuthUnix, s.AuthFlavor)
	assert.Equal(t, uint32(DefaultTransferSize), s.TransferSize)
	assert.Nil(t, s.MountClient)
	assert.Nil(t, s.NFSClient)
}

func TestSetHandleOverwritesCwd(t *testing.T) {
	s := New()
	h, err := nfs3.NewHandle([]byte{1, 2, 3})
	require.NoError(t, err)

	s.SetHandle(h)
	assert.Equal(t, h, s.CwdHandle)
}

func TestUmountWithoutMountFails(t *testing.T) {
	s := New()
	err := s.Umount()
	assert.Error(t, err)
}

func TestUmountAllWithoutHostFails(t *testing.T) {
	s := New()
	err := s.UmountAll()
	assert.Error(t, err)
}

func TestOpenNFSRequiresHost(t *testing.T) {
	s := New()
	h, err := nfs3.NewHandle([]byte{1, 2, 3})
	require.NoError(t, err)
	s.SetHandle(h)

	err = s.OpenNFS(MountFlags{})
	assert.Error(t, err)
}

func TestOpenNFSRequiresHandle(t *testing.T) {
	s := New()
	s.RemoteHost = "example.invalid"

	err := s.OpenNFS(MountFlags{})
	assert.Error(t, err)
}

func TestSwapMountPortBytesRoundTrips(t *testing.T) {
	assert.Equal(t, uint16(0x0108), swapMountPortBytes(2049))
	assert.Equal(t, uint16(2049), swapMountPortBytes(swapMountPortBytes(2049)))
}

func TestUmountLocalClearsMountState(t *testing.T) {
	s := New()
	h, err := nfs3.NewHandle([]byte{1})
	require.NoError(t, err)
	s.RootHandle = h
	s.CwdHandle = h
	s.MountPath = "/export"

	require.NoError(t, s.UmountLocal())
	assert.Nil(t, s.RootHandle)
	assert.Nil(t, s.CwdHandle)
	assert.Equal(t, "", s.MountPath)
}
