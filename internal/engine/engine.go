// Package engine implements the operations the shell dispatches to: path
// resolution, directory listing, file transfer, attribute mutation and
// filesystem metadata queries, all driven off a session.State's NFS and
// MOUNT clients.
package engine

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/cubbit/nfsraw/internal/glob"
	"github.com/cubbit/nfsraw/internal/logger"
	"github.com/cubbit/nfsraw/internal/nfs3"
	"github.com/cubbit/nfsraw/internal/session"
)

// LongEntry is one directory entry enriched with the attributes `ls -l`
// prints, fetched via one LOOKUP per matched name since this client never
// issues READDIRPLUS.
type LongEntry struct {
	Entry
	Attr        *nfs3.FileAttr
	SymlinkDest string
}

// RegularEntry is a directory entry already confirmed, via LOOKUP, to
// name a regular file — the only kind `get` ever transfers.
type RegularEntry struct {
	Name   string
	Handle *nfs3.Handle
	Size   uint64
}

// Engine binds a session to the driver operations the shell's verbs call
// into. It holds no state of its own beyond the session reference.
type Engine struct {
	sess *session.State
}

// New returns an engine driving sess.
func New(sess *session.State) *Engine {
	return &Engine{sess: sess}
}

func (e *Engine) requireMounted() error {
	if e.sess.NFSClient == nil || e.sess.CwdHandle == nil {
		return fmt.Errorf("not mounted")
	}
	return nil
}

// Cd walks path, which may be absolute (leading '/', resolved from
// RootHandle) or relative (resolved from CwdHandle), one LOOKUP per
// segment. It only commits CwdHandle if every segment resolves to a
// directory (I2); a LOOKUP reply without attributes counts as a failure.
// A failure anywhere leaves the previous CwdHandle untouched.
func (e *Engine) Cd(path string) error {
	if err := e.requireMounted(); err != nil {
		return err
	}

	cur := e.sess.CwdHandle
	if strings.HasPrefix(path, "/") {
		cur = e.sess.RootHandle
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." {
			continue
		}
		result, err := e.sess.NFSClient.Lookup(cur, segment)
		if err != nil {
			return fmt.Errorf("cd %s: %w", path, err)
		}
		if result.Status != nfs3.OK {
			return fmt.Errorf("cd %s: %s", path, nfs3.StatusString(result.Status))
		}
		if result.Attr == nil {
			return fmt.Errorf("cd %s: %s: server returned no attributes", path, segment)
		}
		if result.Attr.Type != nfs3.FileTypeDirectory {
			return fmt.Errorf("cd %s: %s: not a directory", path, segment)
		}
		cur = result.Handle
	}

	e.sess.CwdHandle = cur
	return nil
}

// Entry is one directory entry as surfaced to the shell, after glob
// filtering.
type Entry struct {
	Name   string
	Fileid uint64
}

// Ls lists CwdHandle's entries matching pattern (empty pattern matches
// everything), paging through READDIR until the server reports eof. The
// cookie used for each successive call is the cookie of the last entry
// returned by the previous call, not the call's cookie verifier — per the
// documented cookie contract.
func (e *Engine) Ls(pattern string) ([]Entry, error) {
	if err := e.requireMounted(); err != nil {
		return nil, err
	}

	var entries []Entry
	var cookie, cookieVerf uint64
	for {
		result, err := e.sess.NFSClient.ReadDir(e.sess.CwdHandle, cookie, cookieVerf, e.sess.TransferSize)
		if err != nil {
			return nil, fmt.Errorf("readdir: %w", err)
		}
		if result.Status != nfs3.OK {
			return nil, fmt.Errorf("readdir: %s", nfs3.StatusString(result.Status))
		}

		for _, d := range result.Entries {
			if pattern == "" || glob.Match(pattern, d.Name) {
				entries = append(entries, Entry{Name: d.Name, Fileid: d.Fileid})
			}
			cookie = d.Cookie
		}
		cookieVerf = result.Cookie

		if result.EOF || len(result.Entries) == 0 {
			break
		}
	}
	return entries, nil
}

// LsLong behaves like Ls but issues one additional LOOKUP per matched
// name to populate attributes, and a READLINK for symlinks, since this
// client's READDIR carries no attributes of its own.
func (e *Engine) LsLong(pattern string) ([]LongEntry, error) {
	entries, err := e.Ls(pattern)
	if err != nil {
		return nil, err
	}

	result := make([]LongEntry, 0, len(entries))
	for _, ent := range entries {
		lookup, err := e.sess.NFSClient.Lookup(e.sess.CwdHandle, ent.Name)
		if err != nil {
			return nil, fmt.Errorf("ls -l %s: %w", ent.Name, err)
		}
		if lookup.Status != nfs3.OK {
			return nil, fmt.Errorf("ls -l %s: %s", ent.Name, nfs3.StatusString(lookup.Status))
		}

		long := LongEntry{Entry: ent, Attr: lookup.Attr}
		if lookup.Attr != nil && lookup.Attr.Type == nfs3.FileTypeSymlink && lookup.Handle != nil {
			if rl, err := e.sess.NFSClient.ReadLink(lookup.Handle); err == nil && rl.Status == nfs3.OK {
				long.SymlinkDest = rl.Target
			}
		}
		result = append(result, long)
	}
	return result, nil
}

// Get reads remoteName in full, writing each chunk to w as it arrives
// rather than buffering the whole file.
func (e *Engine) Get(remoteName string, w io.Writer) (int64, error) {
	if err := e.requireMounted(); err != nil {
		return 0, err
	}

	lookup, err := e.sess.NFSClient.Lookup(e.sess.CwdHandle, remoteName)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", remoteName, err)
	}
	if lookup.Status != nfs3.OK {
		return 0, fmt.Errorf("get %s: %s", remoteName, nfs3.StatusString(lookup.Status))
	}

	total, err := e.GetHandle(lookup.Handle, w)
	if err != nil {
		return total, fmt.Errorf("get %s: %w", remoteName, err)
	}
	return total, nil
}

// GetHandle reads h in full, writing each chunk to w as it arrives. It is
// the primitive both Get and the `get [-i] <filespec>` glob loop drive,
// once each has its own resolved handle.
func (e *Engine) GetHandle(h *nfs3.Handle, w io.Writer) (int64, error) {
	if err := e.requireMounted(); err != nil {
		return 0, err
	}

	var total int64
	var offset uint64
	for {
		read, err := e.sess.NFSClient.Read(h, offset, e.sess.TransferSize)
		if err != nil {
			return total, err
		}
		if read.Status != nfs3.OK {
			return total, fmt.Errorf("%s", nfs3.StatusString(read.Status))
		}
		if len(read.Data) > 0 {
			n, err := w.Write(read.Data)
			total += int64(n)
			if err != nil {
				return total, fmt.Errorf("write local data: %w", err)
			}
		}
		offset += uint64(len(read.Data))
		if read.EOF || len(read.Data) == 0 {
			break
		}
	}
	return total, nil
}

// MatchRegularFiles lists CwdHandle's entries matching pattern and issues
// one LOOKUP per match, over the wire, to filter out anything that is not
// a regular file — the same glob-then-filter order `get`'s shell verb
// needs before it ever prompts for confirmation.
func (e *Engine) MatchRegularFiles(pattern string) ([]RegularEntry, error) {
	entries, err := e.Ls(pattern)
	if err != nil {
		return nil, err
	}

	var matches []RegularEntry
	for _, ent := range entries {
		lookup, err := e.sess.NFSClient.Lookup(e.sess.CwdHandle, ent.Name)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", ent.Name, err)
		}
		if lookup.Status != nfs3.OK {
			return nil, fmt.Errorf("get %s: %s", ent.Name, nfs3.StatusString(lookup.Status))
		}
		if lookup.Attr == nil || lookup.Attr.Type != nfs3.FileTypeRegular {
			continue
		}
		matches = append(matches, RegularEntry{Name: ent.Name, Handle: lookup.Handle, Size: lookup.Attr.Size})
	}
	return matches, nil
}

// Put creates remoteName (CreateUnchecked — this client never issues a
// COMMIT after the final write, per the documented limitation) and writes
// r's contents to it in TransferSize chunks, FILE_SYNC stability.
func (e *Engine) Put(remoteName string, r io.Reader) (int64, error) {
	if err := e.requireMounted(); err != nil {
		return 0, err
	}

	create, err := e.sess.NFSClient.Create(e.sess.CwdHandle, remoteName, &nfs3.SetAttr{}, nfs3.CreateUnchecked, 0)
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", remoteName, err)
	}
	if create.Status != nfs3.OK {
		return 0, fmt.Errorf("put %s: %s", remoteName, nfs3.StatusString(create.Status))
	}
	if create.Handle == nil {
		return 0, fmt.Errorf("put %s: server did not return a handle for the new file", remoteName)
	}

	var total int64
	var offset uint64
	buf := make([]byte, e.sess.TransferSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			write, err := e.sess.NFSClient.Write(create.Handle, offset, buf[:n], nfs3.WriteFileSync)
			if err != nil {
				return total, fmt.Errorf("put %s: %w", remoteName, err)
			}
			if write.Status != nfs3.OK {
				return total, fmt.Errorf("put %s: %s", remoteName, nfs3.StatusString(write.Status))
			}
			total += int64(write.Count)
			offset += uint64(write.Count)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return total, fmt.Errorf("read local data: %w", readErr)
		}
	}
	return total, nil
}

// Rm removes a regular file in CwdHandle.
func (e *Engine) Rm(name string) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	result, err := e.sess.NFSClient.Remove(e.sess.CwdHandle, name)
	if err != nil {
		return fmt.Errorf("rm %s: %w", name, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("rm %s: %s", name, nfs3.StatusString(result.Status))
	}
	return nil
}

// Mkdir creates a directory in CwdHandle with the given permission bits.
func (e *Engine) Mkdir(name string, mode uint32) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	result, err := e.sess.NFSClient.Mkdir(e.sess.CwdHandle, name, &nfs3.SetAttr{Mode: &mode})
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", name, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("mkdir %s: %s", name, nfs3.StatusString(result.Status))
	}
	return nil
}

// Rmdir removes an empty directory in CwdHandle.
func (e *Engine) Rmdir(name string) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	result, err := e.sess.NFSClient.Rmdir(e.sess.CwdHandle, name)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", name, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("rmdir %s: %s", name, nfs3.StatusString(result.Status))
	}
	return nil
}

// Chmod changes a file's permission bits.
func (e *Engine) Chmod(name string, mode uint32) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	lookup, err := e.sess.NFSClient.Lookup(e.sess.CwdHandle, name)
	if err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if lookup.Status != nfs3.OK {
		return fmt.Errorf("chmod %s: %s", name, nfs3.StatusString(lookup.Status))
	}
	result, err := e.sess.NFSClient.SetAttr(lookup.Handle, &nfs3.SetAttr{Mode: &mode}, nfs3.TimeGuard{})
	if err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("chmod %s: %s", name, nfs3.StatusString(result.Status))
	}
	return nil
}

// Chown changes a file's owning uid/gid.
func (e *Engine) Chown(name string, uid, gid uint32) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	lookup, err := e.sess.NFSClient.Lookup(e.sess.CwdHandle, name)
	if err != nil {
		return fmt.Errorf("chown %s: %w", name, err)
	}
	if lookup.Status != nfs3.OK {
		return fmt.Errorf("chown %s: %s", name, nfs3.StatusString(lookup.Status))
	}
	result, err := e.sess.NFSClient.SetAttr(lookup.Handle, &nfs3.SetAttr{UID: &uid, GID: &gid}, nfs3.TimeGuard{})
	if err != nil {
		return fmt.Errorf("chown %s: %w", name, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("chown %s: %s", name, nfs3.StatusString(result.Status))
	}
	return nil
}

// Mv renames from to to within CwdHandle.
func (e *Engine) Mv(from, to string) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	result, err := e.sess.NFSClient.Rename(e.sess.CwdHandle, from, e.sess.CwdHandle, to)
	if err != nil {
		return fmt.Errorf("mv %s %s: %w", from, to, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("mv %s %s: %s", from, to, nfs3.StatusString(result.Status))
	}
	return nil
}

// Ln creates linkName in CwdHandle as a hard link to target.
func (e *Engine) Ln(target, linkName string) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	lookup, err := e.sess.NFSClient.Lookup(e.sess.CwdHandle, target)
	if err != nil {
		return fmt.Errorf("ln %s %s: %w", target, linkName, err)
	}
	if lookup.Status != nfs3.OK {
		return fmt.Errorf("ln %s %s: %s", target, linkName, nfs3.StatusString(lookup.Status))
	}
	result, err := e.sess.NFSClient.Link(lookup.Handle, e.sess.CwdHandle, linkName)
	if err != nil {
		return fmt.Errorf("ln %s %s: %w", target, linkName, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("ln %s %s: %s", target, linkName, nfs3.StatusString(result.Status))
	}
	return nil
}

// Mknod creates a device, socket or FIFO node named name in CwdHandle.
func (e *Engine) Mknod(name string, fileType uint32, mode, major, minor uint32) error {
	if err := e.requireMounted(); err != nil {
		return err
	}
	result, err := e.sess.NFSClient.Mknod(e.sess.CwdHandle, name, fileType, &nfs3.SetAttr{Mode: &mode},
		nfs3.SpecData{Major: major, Minor: minor})
	if err != nil {
		return fmt.Errorf("mknod %s: %w", name, err)
	}
	if result.Status != nfs3.OK {
		return fmt.Errorf("mknod %s: %s", name, nfs3.StatusString(result.Status))
	}
	return nil
}

// Cat reads a file in full and returns its bytes, for the `cat` verb.
func (e *Engine) Cat(name string) ([]byte, error) {
	var buf strings.Builder
	if _, err := e.Get(name, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Df reports filesystem space/inode usage for the current mount.
func (e *Engine) Df() (*nfs3.FSStat, error) {
	if err := e.requireMounted(); err != nil {
		return nil, err
	}
	result, err := e.sess.NFSClient.FsStat(e.sess.CwdHandle)
	if err != nil {
		return nil, fmt.Errorf("df: %w", err)
	}
	if result.Status != nfs3.OK {
		return nil, fmt.Errorf("df: %s", nfs3.StatusString(result.Status))
	}
	return result.Stat, nil
}

// CreateVerifier produces a verifier value for CreateExclusive, since
// this client has no persistent clock/pid source it would rather rely on
// for uniqueness across runs.
func CreateVerifier() uint64 {
	return rand.Uint64()
}

// Handle returns the current directory handle's hex encoding, for the
// `handle` verb with no argument.
func (e *Engine) Handle() (string, error) {
	if e.sess.CwdHandle == nil {
		return "", fmt.Errorf("not mounted")
	}
	return e.sess.CwdHandle.Hex(), nil
}

// SetHandleHex parses hex and installs it as CwdHandle directly, for the
// `handle` verb with an argument. This bypasses the usual LOOKUP-verifies-
// a-directory path entirely: I2's enforcement becomes the caller's
// responsibility. It then opens an NFS client against the current host
// using flags, mirroring MOUNT's connection setup without ever issuing
// MNT. The handle is installed even if that connection attempt fails, so
// a later `host`/`handle` retry or `status` inspection still sees it.
func (e *Engine) SetHandleHex(hex string, flags session.MountFlags) error {
	h, err := nfs3.ParseHex(hex)
	if err != nil {
		return fmt.Errorf("handle %s: %w", hex, err)
	}
	e.sess.SetHandle(h)
	logger.Debug("engine: cwd handle set directly to %s", hex)

	if err := e.sess.OpenNFS(flags); err != nil {
		return fmt.Errorf("handle %s: installed handle but failed to open nfs client: %w", hex, err)
	}
	return nil
}
