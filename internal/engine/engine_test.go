package engine

import (
	"bytes"
	"testing"

	"github.com/cubbit/nfsraw/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestOperationsRequireMount(t *testing.T) {
	eng := New(session.New())

	_, err := eng.Ls("")
	assert.Error(t, err)

	_, err = eng.Get("file", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = eng.Put("file", bytes.NewReader(nil))
	assert.Error(t, err)

	assert.Error(t, eng.Rm("file"))
	assert.Error(t, eng.Mkdir("dir", 0755))
	assert.Error(t, eng.Rmdir("dir"))
	assert.Error(t, eng.Chmod("file", 0644))
	assert.Error(t, eng.Chown("file", 0, 0))
	assert.Error(t, eng.Mv("a", "b"))
	assert.Error(t, eng.Ln("a", "b"))
	assert.Error(t, eng.Mknod("node", 3, 0644, 1, 1))
	assert.Error(t, eng.Cd("dir"))

	_, err = eng.Df()
	assert.Error(t, err)
}

func TestHandleRequiresMount(t *testing.T) {
	eng := New(session.New())
	_, err := eng.Handle()
	assert.Error(t, err)
}

func TestSetHandleHexInstallsCwdEvenWhenNFSOpenFails(t *testing.T) {
	eng := New(session.New())
	require := assert.New(t)

	// No host has been set, so the NFS-open half of SetHandleHex fails —
	// but the handle itself must still be installed, per the `handle`
	// verb's original unconditional-install-then-try-to-open behavior.
	err := eng.SetHandleHex("0102ff", session.MountFlags{})
	require.Error(err)

	h, herr := eng.Handle()
	require.NoError(herr)
	require.Equal("0102ff", h)
}

func TestSetHandleHexRejectsInvalidHex(t *testing.T) {
	eng := New(session.New())
	err := eng.SetHandleHex("not-hex", session.MountFlags{})
	assert.Error(t, err)
}
