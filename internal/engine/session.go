// Package engine implements the Engine Session: the lifecycle of the
// external generation engine process (spec.md §4 "Engine Session", §6
// command grammar).
//
// Grounded on the teacher's exec.go (process lifecycle, signal handling,
// os/exec-style error wrapping) and golang.org/x/term (terminal sizing),
// generalized from a one-shot resize invocation into a long-lived PTY
// session. PTY spawning is grounded on github.com/creack/pty usage
// across the retrieval pack (see SPEC_FULL.md DOMAIN STACK).
package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/creack/pty"
)

// State is the Engine Session's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateSpawning
	StateRunning
)

// Session owns the external engine process's PTY (spec.md §5 "The
// engine PTY is exclusively controlled by this system; writes are
// serialized and ordered").
type Session struct {
	mu    sync.Mutex
	state State

	cmd *exec.Cmd
	tty *os.File

	// Command and Args build the engine's argv; Environ supplies its
	// process environment (spec.md §6 "BROOD_MEMORY").
	Command string
	Args    []string
	Environ []string

	// OnStdoutLine is invoked for every line the engine writes to its
	// PTY, used as the "best-effort text-line consumer for out-of-band
	// completions" (spec.md §4 "Engine Session").
	OnStdoutLine func(line string)
}

// descriptionLineRe matches the out-of-band describe completion format
// spec.md §4.2 defines: "Description (<source>, <model>): <text>".
var descriptionLineRe = regexp.MustCompile(`^Description \(([^,]+), ([^)]+)\): (.*)$`)

// ParsedDescriptionLine is a successfully matched out-of-band completion.
type ParsedDescriptionLine struct {
	Source, Model, Text string
}

// ParseDescriptionLine matches spec.md §4.2's fallback completion
// format. ok is false for any non-matching line.
func ParseDescriptionLine(line string) (ParsedDescriptionLine, bool) {
	m := descriptionLineRe.FindStringSubmatch(line)
	if m == nil {
		return ParsedDescriptionLine{}, false
	}
	return ParsedDescriptionLine{Source: m[1], Model: m[2], Text: m[3]}, true
}

// Spawn starts the engine process attached to a PTY. It transitions
// StateStopped -> StateSpawning -> StateRunning once the child process
// is alive (spec.md §4.3 "Engine-busy gate ... engine process is
// spawning" blocks the scheduler during this window).
func (s *Session) Spawn(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("engine: spawn called while state is %v", s.state)
	}
	s.state = StateSpawning
	s.mu.Unlock()

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Env = append(os.Environ(), s.Environ...)

	tty, err := pty.Start(cmd)
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("engine: spawn %s: %w", s.Command, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.tty = tty
	s.state = StateRunning
	s.mu.Unlock()

	go s.consumeStdout(tty)
	return nil
}

// consumeStdout is the best-effort text-line consumer for out-of-band
// completions (spec.md §4 "Engine Session").
func (s *Session) consumeStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if s.OnStdoutLine != nil {
			s.OnStdoutLine(line)
		}
	}
}

// IsRunning reports whether the engine process is currently attached.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// IsSpawning reports whether Spawn is in flight (spec.md §4.3 gate).
func (s *Session) IsSpawning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateSpawning
}

// WriteLine writes one command line to the engine's PTY stdin, serialized
// by s.mu (spec.md §5 "writes are serialized and ordered").
func (s *Session) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.tty == nil {
		return fmt.Errorf("engine: write while not running")
	}
	_, err := io.WriteString(s.tty, line+"\n")
	if err != nil {
		return fmt.Errorf("engine: write line: %w", err)
	}
	return nil
}

// Wait blocks until the engine process exits, then marks the session
// stopped and closes its pty. It returns the process's exit error.
func (s *Session) Wait() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("engine: wait called before spawn")
	}
	err := cmd.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.cmd = nil
	if s.tty != nil {
		s.tty.Close()
		s.tty = nil
	}
	s.mu.Unlock()
	return err
}

// Stop forcibly terminates the engine process.
func (s *Session) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func quoteArg(arg string) string {
	if !strings.ContainsAny(arg, " \t\"\\") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
