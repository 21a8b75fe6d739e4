// Command nfsraw is an interactive, unprivileged-operator-friendly NFSv3 and
// MOUNTv3 client for probing and exercising remote NFS exports directly —
// the raw wire protocol, not a kernel mount.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cubbit/nfsraw/internal/logger"
	"github.com/cubbit/nfsraw/internal/session"
	"github.com/cubbit/nfsraw/internal/shell"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	interactive := flag.Bool("i", false, "read commands from stdin with no line editing (for scripting)")
	flag.Parse()

	if *verbose {
		logger.SetLevel("debug")
	}

	sess := session.New()
	sess.Verbose = *verbose
	sess.Interactive = *interactive

	var in shell.LineSource
	var err error
	if *interactive {
		in = shell.NewScannerSource(os.Stdin)
	} else {
		in, err = shell.NewReadlineSource("nfsraw> ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "nfsraw: %v\n", err)
			os.Exit(1)
		}
	}
	defer in.Close()

	sh, err := shell.New(sess, in, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nfsraw: %v\n", err)
		os.Exit(1)
	}

	if flag.NArg() > 0 {
		sh.Execute("host " + flag.Arg(0))
	}

	if err := sh.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "nfsraw: %v\n", err)
		os.Exit(1)
	}

	_ = sess.Close()
}
