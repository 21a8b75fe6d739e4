// Package shell implements the line-oriented command dispatcher: a
// tokenizer with no quoting (whitespace-separated words only, matching
// the classic tool this emulates), a verb dispatch table, a `!`
// shell-escape, and SIGINT handling that unwinds the current command back
// to the prompt instead of killing the process.
package shell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cubbit/nfsraw/internal/engine"
	"github.com/cubbit/nfsraw/internal/localfs"
	"github.com/cubbit/nfsraw/internal/mountproto"
	"github.com/cubbit/nfsraw/internal/nfs3"
	"github.com/cubbit/nfsraw/internal/portmap"
	"github.com/cubbit/nfsraw/internal/rpc"
	"github.com/cubbit/nfsraw/internal/session"
	"github.com/cubbit/nfsraw/internal/transport"
)

// Shell owns the session, engine, local filesystem view and line source,
// and runs the read-dispatch-print loop.
type Shell struct {
	sess    *session.State
	eng     *engine.Engine
	local   *localfs.State
	in      LineSource
	out     io.Writer
	cancel  int32 // atomic: set by the SIGINT handler, checked between chunks
	quit    bool
}

// New builds a shell around sess, writing output to out and reading
// commands from in.
func New(sess *session.State, in LineSource, out io.Writer) (*Shell, error) {
	local, err := localfs.New()
	if err != nil {
		return nil, fmt.Errorf("init local filesystem state: %w", err)
	}
	return &Shell{
		sess:  sess,
		eng:   engine.New(sess),
		local: local,
		in:    in,
		out:   out,
	}, nil
}

// Run drives the prompt loop until `quit`/`bye`, EOF, or an unrecoverable
// input error.
func (s *Shell) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			atomic.StoreInt32(&s.cancel, 1)
		}
	}()

	for !s.quit {
		line, err := s.in.Readline()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}

		atomic.StoreInt32(&s.cancel, 0)
		s.dispatch(line)
	}
	return nil
}

// cancelled reports whether SIGINT arrived since the current command
// started, letting the ls output loop and the get per-file loop unwind to
// the prompt between items instead of running to completion or killing
// the process. put and the READDIR paging inside the engine do not check it.
func (s *Shell) cancelled() bool {
	return atomic.LoadInt32(&s.cancel) != 0
}

// Execute runs a single command line through the same dispatch path Run
// uses, for a caller that wants to inject one command (such as an initial
// `host` argument) before starting the interactive loop.
func (s *Shell) Execute(line string) {
	s.dispatch(line)
}

func (s *Shell) dispatch(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if strings.HasPrefix(line, "!") {
		s.shellEscape(strings.TrimPrefix(line, "!"))
		return
	}

	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	var err error
	switch verb {
	case "host":
		err = s.cmdHost(args)
	case "mount":
		err = s.cmdMount(args)
	case "umount":
		err = s.cmdUmount(args)
	case "umountall":
		err = s.sess.UmountAll()
	case "uid":
		err = s.cmdUID(args)
	case "gid":
		err = s.cmdGID(args)
	case "cd":
		err = s.cmdCd(args)
	case "lcd":
		err = s.cmdLcd(args)
	case "cat":
		err = s.cmdCat(args)
	case "ls":
		err = s.cmdLs(args)
	case "get":
		err = s.cmdGet(args)
	case "put":
		err = s.cmdPut(args)
	case "df":
		err = s.cmdDf(args)
	case "rm":
		err = s.cmdRm(args)
	case "ln":
		err = s.cmdLn(args)
	case "mv":
		err = s.cmdMv(args)
	case "mkdir":
		err = s.cmdMkdir(args)
	case "rmdir":
		err = s.cmdRmdir(args)
	case "chmod":
		err = s.cmdChmod(args)
	case "chown":
		err = s.cmdChown(args)
	case "mknod":
		err = s.cmdMknod(args)
	case "export":
		err = s.cmdExport(args)
	case "dump":
		err = s.cmdDump(args)
	case "status":
		err = s.cmdStatus(args)
	case "handle":
		err = s.cmdHandle(args)
	case "help":
		s.cmdHelp()
	case "quit", "bye":
		s.quit = true
	default:
		err = fmt.Errorf("unknown command: %s (try 'help')", verb)
	}

	if err != nil {
		fmt.Fprintf(s.out, "%s: %v\n", verb, err)
	}
}

func (s *Shell) shellEscape(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		command = os.Getenv("SHELL")
		if command == "" {
			command = "/bin/sh"
		}
	}
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = s.out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(s.out, "!: %v\n", err)
	}
}

func (s *Shell) cmdHelp() {
	fmt.Fprint(s.out, `commands:
  host [<route>@]<name>         connect to a host's mount/portmap daemons, optionally LSRR source-routed
  mount [-upTU] [-P port] <path> mount an exported directory
  umount                        unmount the current directory
  umountall                     ask the server to drop all mounts for this client
  uid [<uid> [<secret-key>]]    show or set the credential uid
  gid [<gid>]                   show or set the credential gid
  cd <path>                     change remote directory
  lcd [<path>]                  change local directory
  cat <file>                    print a remote file
  ls [-l] [<pattern>]           list the remote directory, optionally in long form
  get [-i] <filespec>           fetch every matching regular file, prompting unless -i
  put <local> [<remote>]        store a local file
  df                            show remote filesystem space
  rm <file>                     remove a remote file
  ln <target> <link>            create a hard link
  mv <from> <to>                rename a remote file
  mkdir <dir>                   create a remote directory
  rmdir <dir>                   remove a remote directory
  chmod <mode> <file>           change a remote file's mode
  chown <uid> <gid> <file>      change a remote file's owner
  mknod <name> <type> [maj min] create a device/socket/fifo node
  export                        list the server's exports
  dump                          list the server's current mounts
  status                        show session state
  handle [-TU] [-P port] [<hex>] show, or bypass MOUNT and set, the current directory handle
  !<command>                    run a local shell command
  help                          this text
  quit, bye                     exit
`)
}

func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (s *Shell) cmdHost(args []string) error {
	if err := requireArgs(args, 1, "host [<route>@]<name>"); err != nil {
		return err
	}
	dest, route := transport.ParseHostSpec(args[0])

	pm, err := portmap.Dial(dest, rpc.DefaultTimeout)
	if err != nil {
		return fmt.Errorf("dial portmap: %w", err)
	}
	mntPort, err := pm.GetPort(mountproto.Program, mountproto.Version, portmap.ProtoTCP)
	pm.Close()
	if err != nil {
		return fmt.Errorf("resolve mount port: %w", err)
	}

	return s.sess.Host(dest, mntPort, route)
}

func (s *Shell) cmdMount(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mount [-upTU] [-P port] <path>")
	}

	var flags session.MountFlags
	i := 0
	for i < len(args)-1 && strings.HasPrefix(args[i], "-") {
		opt := args[i][1:]
		for j := 0; j < len(opt); j++ {
			switch opt[j] {
			case 'u':
				flags.UnmountAfter = true
			case 'p':
				flags.ThruPortmap = true
			case 'T':
				flags.ForceTCP = true
			case 'U':
				flags.ForceUDP = true
			case 'P':
				i++
				if i >= len(args)-1 {
					return fmt.Errorf("usage: mount [-upTU] [-P port] <path>")
				}
				port, err := strconv.ParseUint(args[i], 10, 16)
				if err != nil {
					return fmt.Errorf("invalid port %q: %w", args[i], err)
				}
				flags.Port = uint16(port)
			default:
				return fmt.Errorf("mount: unknown flag -%c", opt[j])
			}
		}
		i++
	}
	if i != len(args)-1 {
		return fmt.Errorf("usage: mount [-upTU] [-P port] <path>")
	}

	return s.sess.Mount(args[i], flags)
}

func (s *Shell) cmdUmount(args []string) error {
	return s.sess.Umount()
}

func (s *Shell) cmdUID(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "uid=%d\n", s.sess.UID)
		return nil
	}
	uid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid uid %q: %w", args[0], err)
	}
	secret := ""
	if len(args) > 1 {
		secret = args[1]
	}
	return s.sess.SetAuth(rpc.AuthUnix, uint32(uid), s.sess.GID, secret)
}

func (s *Shell) cmdGID(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "gid=%d\n", s.sess.GID)
		return nil
	}
	gid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid gid %q: %w", args[0], err)
	}
	return s.sess.SetAuth(s.sess.AuthFlavor, s.sess.UID, uint32(gid), s.sess.SecretKey)
}

func (s *Shell) cmdCd(args []string) error {
	if err := requireArgs(args, 1, "cd <path>"); err != nil {
		return err
	}
	return s.eng.Cd(args[0])
}

func (s *Shell) cmdLcd(args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if err := s.local.Chdir(path); err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.local.Cwd())
	return nil
}

func (s *Shell) cmdCat(args []string) error {
	if err := requireArgs(args, 1, "cat <file>"); err != nil {
		return err
	}
	data, err := s.eng.Cat(args[0])
	if err != nil {
		return err
	}
	_, err = s.out.Write(data)
	return err
}

func (s *Shell) cmdLs(args []string) error {
	long := false
	if len(args) > 0 && args[0] == "-l" {
		long = true
		args = args[1:]
	}
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}

	if !long {
		entries, err := s.eng.Ls(pattern)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if s.cancelled() {
				return fmt.Errorf("interrupted")
			}
			fmt.Fprintln(s.out, e.Name)
		}
		return nil
	}

	entries, err := s.eng.LsLong(pattern)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if s.cancelled() {
			return fmt.Errorf("interrupted")
		}
		fmt.Fprintln(s.out, formatLongEntry(e))
	}
	return nil
}

// formatLongEntry renders one `ls -l` line: type char, rwxrwxrwx (with
// setuid/setgid/sticky bits folded into the executable-bit position),
// link count, uid, gid, size, a compact modification time, the name and,
// for symlinks, an " -> target" suffix.
func formatLongEntry(e engine.LongEntry) string {
	if e.Attr == nil {
		return e.Name
	}
	a := e.Attr

	var b strings.Builder
	b.WriteByte(fileTypeChar(a.Type))
	writeModeTriplet(&b, a.Mode&0400 != 0, a.Mode&0200 != 0, a.Mode&0100 != 0, a.Mode&04000 != 0, 's', 'S')
	writeModeTriplet(&b, a.Mode&0040 != 0, a.Mode&0020 != 0, a.Mode&0010 != 0, a.Mode&02000 != 0, 's', 'S')
	writeModeTriplet(&b, a.Mode&0004 != 0, a.Mode&0002 != 0, a.Mode&0001 != 0, a.Mode&01000 != 0, 't', 'T')

	fmt.Fprintf(&b, " %3d %5d %5d %9d %s %s", a.Nlink, a.UID, a.GID, a.Size,
		time.Unix(int64(a.Mtime.Seconds), 0).UTC().Format("Jan _2 15:04"), e.Name)
	if e.SymlinkDest != "" {
		fmt.Fprintf(&b, " -> %s", e.SymlinkDest)
	}
	return b.String()
}

func fileTypeChar(t uint32) byte {
	switch t {
	case nfs3.FileTypeRegular:
		return '-'
	case nfs3.FileTypeDirectory:
		return 'd'
	case nfs3.FileTypeBlock:
		return 'b'
	case nfs3.FileTypeChar:
		return 'c'
	case nfs3.FileTypeSymlink:
		return 'l'
	case nfs3.FileTypeSocket:
		return 's'
	case nfs3.FileTypeFifo:
		return 'p'
	default:
		return '?'
	}
}

func writeModeTriplet(b *strings.Builder, r, w, x, special bool, execChar, noExecChar byte) {
	if r {
		b.WriteByte('r')
	} else {
		b.WriteByte('-')
	}
	if w {
		b.WriteByte('w')
	} else {
		b.WriteByte('-')
	}
	switch {
	case x && special:
		b.WriteByte(execChar)
	case x:
		b.WriteByte('x')
	case special:
		b.WriteByte(noExecChar)
	default:
		b.WriteByte('-')
	}
}

func (s *Shell) cmdGet(args []string) error {
	interactive := true
	if len(args) > 0 && args[0] == "-i" {
		interactive = false
		args = args[1:]
	}
	if err := requireArgs(args, 1, "get [-i] <filespec>"); err != nil {
		return err
	}

	matches, err := s.eng.MatchRegularFiles(args[0])
	if err != nil {
		return err
	}

	for _, m := range matches {
		if s.cancelled() {
			return fmt.Errorf("interrupted")
		}

		fmt.Fprintf(s.out, "%s? ", m.Name)
		if interactive {
			reply, err := s.in.Readline()
			if err != nil {
				return fmt.Errorf("get %s: %w", m.Name, err)
			}
			if len(reply) == 0 || (reply[0] != 'y' && reply[0] != 'Y') {
				continue
			}
		} else {
			fmt.Fprintln(s.out, "Yes")
		}

		f, err := s.local.CreateForWrite(m.Name)
		if err != nil {
			return err
		}
		n, err := s.eng.GetHandle(m.Handle, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("get %s: %w", m.Name, err)
		}
		if uint64(n) != m.Size {
			fmt.Fprintf(s.out, "%s: size mismatch on read (expected %d, read %d)\n", m.Name, m.Size, n)
		}
		fmt.Fprintf(s.out, "%d bytes received\n", n)
	}
	return nil
}

func (s *Shell) cmdPut(args []string) error {
	if err := requireArgs(args, 1, "put <local> [<remote>]"); err != nil {
		return err
	}
	local := args[0]
	remote := local
	if len(args) > 1 {
		remote = args[1]
	}
	f, err := s.local.OpenForRead(local)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := s.eng.Put(remote, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d bytes sent\n", n)
	return nil
}

func (s *Shell) cmdDf(args []string) error {
	stat, err := s.eng.Df()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "total: %d bytes (%d free, %d avail)\n", stat.TotalBytes, stat.FreeBytes, stat.AvailBytes)
	fmt.Fprintf(s.out, "files: %d (%d free, %d avail)\n", stat.TotalFiles, stat.FreeFiles, stat.AvailFiles)
	return nil
}

func (s *Shell) cmdRm(args []string) error {
	if err := requireArgs(args, 1, "rm <file>"); err != nil {
		return err
	}
	return s.eng.Rm(args[0])
}

func (s *Shell) cmdLn(args []string) error {
	if err := requireArgs(args, 2, "ln <target> <link>"); err != nil {
		return err
	}
	return s.eng.Ln(args[0], args[1])
}

func (s *Shell) cmdMv(args []string) error {
	if err := requireArgs(args, 2, "mv <from> <to>"); err != nil {
		return err
	}
	return s.eng.Mv(args[0], args[1])
}

func (s *Shell) cmdMkdir(args []string) error {
	if err := requireArgs(args, 1, "mkdir <dir>"); err != nil {
		return err
	}
	mode := uint32(0755)
	if len(args) > 1 {
		parsed, err := strconv.ParseUint(args[1], 8, 32)
		if err == nil {
			mode = uint32(parsed)
		}
	}
	return s.eng.Mkdir(args[0], mode)
}

func (s *Shell) cmdRmdir(args []string) error {
	if err := requireArgs(args, 1, "rmdir <dir>"); err != nil {
		return err
	}
	return s.eng.Rmdir(args[0])
}

func (s *Shell) cmdChmod(args []string) error {
	if err := requireArgs(args, 2, "chmod <mode> <file>"); err != nil {
		return err
	}
	mode, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", args[0], err)
	}
	return s.eng.Chmod(args[1], uint32(mode))
}

func (s *Shell) cmdChown(args []string) error {
	if err := requireArgs(args, 3, "chown <uid> <gid> <file>"); err != nil {
		return err
	}
	uid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid uid %q: %w", args[0], err)
	}
	gid, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid gid %q: %w", args[1], err)
	}
	return s.eng.Chown(args[2], uint32(uid), uint32(gid))
}

func (s *Shell) cmdMknod(args []string) error {
	if err := requireArgs(args, 2, "mknod <name> <type> [major minor]"); err != nil {
		return err
	}
	var fileType uint32
	switch args[1] {
	case "b":
		fileType = nfs3.FileTypeBlock
	case "c":
		fileType = nfs3.FileTypeChar
	case "s":
		fileType = nfs3.FileTypeSocket
	case "p":
		fileType = nfs3.FileTypeFifo
	default:
		return fmt.Errorf("unknown node type %q (want b, c, s or p)", args[1])
	}

	var major, minor uint64
	if len(args) > 3 {
		major, _ = strconv.ParseUint(args[2], 10, 32)
		minor, _ = strconv.ParseUint(args[3], 10, 32)
	}
	return s.eng.Mknod(args[0], fileType, 0644, uint32(major), uint32(minor))
}

func (s *Shell) cmdExport(args []string) error {
	if s.sess.MountClient == nil {
		return fmt.Errorf("no host set; use 'host' first")
	}
	entries, err := s.sess.MountClient.Export()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "%s %s\n", e.Directory, strings.Join(e.Groups, ","))
	}
	return nil
}

func (s *Shell) cmdDump(args []string) error {
	if s.sess.MountClient == nil {
		return fmt.Errorf("no host set; use 'host' first")
	}
	entries, err := s.sess.MountClient.Dump()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "%s:%s\n", e.Hostname, e.Directory)
	}
	return nil
}

func (s *Shell) cmdStatus(args []string) error {
	fmt.Fprintf(s.out, "host:          %s\n", s.sess.RemoteHost)
	fmt.Fprintf(s.out, "mount path:    %s\n", s.sess.MountPath)
	fmt.Fprintf(s.out, "transfer size: %d\n", s.sess.TransferSize)
	fmt.Fprintf(s.out, "uid/gid:       %d/%d\n", s.sess.UID, s.sess.GID)
	mounted := "no"
	if s.sess.NFSClient != nil {
		mounted = "yes"
	}
	fmt.Fprintf(s.out, "mounted:       %s\n", mounted)
	return nil
}

func (s *Shell) cmdHandle(args []string) error {
	if len(args) == 0 {
		h, err := s.eng.Handle()
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, h)
		return nil
	}

	var flags session.MountFlags
	i := 0
	for i < len(args)-1 && strings.HasPrefix(args[i], "-") {
		opt := args[i][1:]
		for j := 0; j < len(opt); j++ {
			switch opt[j] {
			case 'T':
				flags.ForceTCP = true
			case 'U':
				flags.ForceUDP = true
			case 'P':
				i++
				if i >= len(args)-1 {
					return fmt.Errorf("usage: handle [-TU] [-P port] <hex>")
				}
				port, err := strconv.ParseUint(args[i], 10, 16)
				if err != nil {
					return fmt.Errorf("invalid port %q: %w", args[i], err)
				}
				flags.Port = uint16(port)
			default:
				return fmt.Errorf("handle: unknown flag -%c", opt[j])
			}
		}
		i++
	}
	if i != len(args)-1 {
		return fmt.Errorf("usage: handle [-TU] [-P port] <hex>")
	}

	return s.eng.SetHandleHex(args[i], flags)
}
