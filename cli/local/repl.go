package local

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

const replPrompt = "> "

// lineReader yields one program per call.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// scannerReader reads lines from a non interactive input.
type scannerReader struct {
	scanner *bufio.Scanner
}

func (s *scannerReader) Prompt(string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scannerReader) AppendHistory(string) {}

func (s *scannerReader) Close() error { return nil }

// linerReader edits lines on a terminal and keeps a history file.
type linerReader struct {
	state   *liner.State
	fs      afero.Fs
	history string
}

func newLinerReader(fs afero.Fs, history string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	if history != "" {
		if f, err := fs.Open(history); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
	}
	return &linerReader{state: state, fs: fs, history: history}
}

func (l *linerReader) Prompt(prompt string) (string, error) {
	line, err := l.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (l *linerReader) AppendHistory(line string) { l.state.AppendHistory(line) }

func (l *linerReader) Close() error {
	if l.history != "" {
		if f, err := l.fs.Create(l.history); err == nil {
			l.state.WriteHistory(f)
			f.Close()
		}
	}
	return l.state.Close()
}

func (r *Runner) lineReader() lineReader {
	if r.isTerminal() {
		return newLinerReader(r.FS, r.Config.ReplHistory)
	}
	return &scannerReader{scanner: bufio.NewScanner(r.Stdin)}
}

// repl evaluates each line as a raw program on an in-memory store.
func (r *Runner) repl(c *cli.Context) error {
	if c.NArg() != 0 {
		return usage(c)
	}
	env, err := r.memoryEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	reader := r.lineReader()
	defer reader.Close()

	for {
		line, err := reader.Prompt(replPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		reader.AppendHistory(line)

		result, err := env.EvalRaw(line)
		if err != nil {
			r.printf("error: %v\n", err)
			continue
		}
		r.printf("%s\n", result)
	}
}
