package shell

import (
	"bufio"
	"io"

	"github.com/chzyer/readline"
)

// LineSource abstracts where the shell's input lines come from, so the
// interactive readline-backed path and the `-i` scripted/piped path share
// one dispatch loop.
type LineSource interface {
	Readline() (string, error)
	Close() error
}

// readlineSource is the interactive default: history and line editing via
// chzyer/readline.
type readlineSource struct {
	inst *readline.Instance
}

// NewReadlineSource builds the interactive line source, prompting with
// prompt.
func NewReadlineSource(prompt string) (LineSource, error) {
	inst, err := readline.New(prompt)
	if err != nil {
		return nil, err
	}
	return &readlineSource{inst: inst}, nil
}

func (s *readlineSource) Readline() (string, error) {
	return s.inst.Readline()
}

func (s *readlineSource) Close() error {
	return s.inst.Close()
}

// scannerSource is the `-i` fallback: bare line-oriented stdin, no
// editing, no history, no prompt echoed.
type scannerSource struct {
	scanner *bufio.Scanner
}

// NewScannerSource wraps r as a line source.
func NewScannerSource(r io.Reader) LineSource {
	return &scannerSource{scanner: bufio.NewScanner(r)}
}

func (s *scannerSource) Readline() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scannerSource) Close() error {
	return nil
}
