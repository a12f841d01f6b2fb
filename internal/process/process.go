// ============================================================================
// Process supervisor / I/O pump
// ============================================================================
//
// Package: internal/process
// Purpose: Own the managed server process and expose a command sink and a
// merged event source built from its standard streams.
//
// Producer/consumer layout:
//
//   ┌──────────────┐  stdout ─→ reader ─┐
//   │   managed    │  stderr ─→ reader ─┼─→ Events ─→ single consumer
//   │   process    │        heartbeat ──┘
//   │              │  stdin ←─ writer ←─── commands ←─ Send() / console
//   └──────────────┘
//
// Guarantees:
//   - Each producer preserves its own emission order; no ordering holds
//     across producers (stdout vs stderr vs heartbeat).
//   - The heartbeat emits an empty line every 10 seconds so the consumer
//     wakes periodically even when the server is silent.
//   - Send is fire-and-forget: a closed input pipe stops the writer and
//     later sends are dropped, never surfaced to callers.
//   - Close tears down every background goroutine via one done channel.
//
// ============================================================================

package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

var log = slog.Default()

// ErrNoCommand means Start was called with an empty launch command.
var ErrNoCommand = errors.New("server launch command is empty")

const (
	// defaultHeartbeat is how often the heartbeat producer emits an empty
	// line onto the event source.
	defaultHeartbeat = 10 * time.Second

	// channelBuffer sizes both the event source and the command sink.
	// Producers block (rather than drop) once it fills, which only happens
	// while the consumer sits in a deliberate multi-second wait.
	channelBuffer = 256

	// maxLineBytes bounds a single forwarded log line. Longer lines are
	// truncated, never fatal; the remainder is consumed and discarded so
	// the stream survives.
	maxLineBytes = 256 * 1024
)

// Options tune Start. The zero value is production behavior.
type Options struct {
	// Heartbeat overrides the heartbeat interval (tests shorten it).
	Heartbeat time.Duration
	// Console, when set, is relayed line by line into the command sink,
	// interleaved with programmatic commands in arrival order.
	Console io.Reader
	// Echo receives every normalized server line for operator visibility.
	// Defaults to mirroring onto the supervisor's stdout.
	Echo func(string)
}

// Server is an owned managed process together with its I/O pump.
type Server struct {
	cmd      *exec.Cmd
	events   chan string
	commands chan string
	done     chan struct{}
	exited   chan struct{}
	waitErr  error

	readerWg  sync.WaitGroup
	closeOnce sync.Once
}

// Start spawns the server process with its standard streams piped, and
// launches the pump goroutines. A process that cannot be launched is a
// spawn error; nothing is left running in that case.
func Start(command []string, opts Options) (*Server, error) {
	if len(command) == 0 {
		return nil, ErrNoCommand
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.Echo == nil {
		opts.Echo = func(line string) { fmt.Println(line) }
	}

	log.Info("starting server", "command", command)

	cmd := exec.Command(command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn server process: %w", err)
	}

	s := &Server{
		cmd:      cmd,
		events:   make(chan string, channelBuffer),
		commands: make(chan string, channelBuffer),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	// Stream readers. Both must drain before the process is reaped.
	s.readerWg.Add(2)
	go s.readPipe(stdout, opts.Echo)
	go s.readPipe(stderr, opts.Echo)

	// Reaper: joins the readers, then the process.
	go func() {
		s.readerWg.Wait()
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	// Heartbeat producer.
	go s.heartbeat(opts.Heartbeat)

	// Command writer: sole goroutine touching the child's stdin.
	go s.writeCommands(stdin)

	// Operator console relay.
	if opts.Console != nil {
		go s.relayConsole(opts.Console)
	}

	return s, nil
}

// Events is the merged source of normalized server lines and heartbeats.
// It is never closed; consumers detect the end of a session via Exited.
func (s *Server) Events() <-chan string { return s.events }

// Exited is closed once the process has exited and both streams drained.
func (s *Server) Exited() <-chan struct{} { return s.exited }

// Send queues one command for the server's stdin. Fire-and-forget: after
// Close or a dead input pipe the command is silently dropped.
func (s *Server) Send(command string) {
	select {
	case s.commands <- command:
	case <-s.done:
	}
}

// Wait blocks until the process exits and returns its terminal error.
// Callers that have stopped consuming Events must use WaitDrain instead:
// with no consumer the pipe readers block on the full event channel and
// the process is never reaped.
func (s *Server) Wait() error {
	<-s.exited
	return s.waitErr
}

// WaitDrain discards events until the process exits, then returns its
// terminal error. Used once a session stops caring about the stream but
// still needs the exit; the readers keep flowing no matter how much the
// server says on its way down.
func (s *Server) WaitDrain() error {
	for {
		select {
		case <-s.events:
		case <-s.exited:
			return s.waitErr
		}
	}
}

// Close stops the heartbeat, the console relay and the command writer.
// It does not terminate the process; callers stop the server through its
// own command protocol (or let it exit) and then Wait.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// readPipe splits one stream on line boundaries, normalizes each line and
// forwards it onto the merged event source.
func (s *Server) readPipe(pipe io.Reader, echo func(string)) {
	defer s.readerWg.Done()

	reader := bufio.NewReaderSize(pipe, 64*1024)
	for {
		raw, err := readLine(reader)
		if err != nil && len(raw) == 0 {
			// Read errors end the stream like EOF; a dying process is
			// reported through Wait, not here.
			if err != io.EOF {
				log.Warn("server stream read failed", "error", err)
			}
			return
		}

		line := normalize(raw)
		echo(line)
		select {
		case s.events <- line:
		case <-s.done:
			return
		}

		if err != nil {
			if err != io.EOF {
				log.Warn("server stream read failed", "error", err)
			}
			return
		}
	}
}

// readLine reads one newline-terminated line. A line beyond maxLineBytes
// is truncated and the rest of it consumed and discarded, so one oversized
// line never ends the stream.
func readLine(reader *bufio.Reader) ([]byte, error) {
	var line []byte
	truncated := false
	for {
		chunk, err := reader.ReadSlice('\n')
		switch {
		case truncated:
			// Discarding the remainder of an oversized line.
		case len(line)+len(chunk) > maxLineBytes:
			line = append(line, chunk[:maxLineBytes-len(line)]...)
			truncated = true
			log.Warn("truncating over-long server line", "limit", maxLineBytes)
		default:
			line = append(line, chunk...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, err
	}
}

// normalize trims surrounding whitespace and replaces invalid encoding.
// Malformed bytes are never fatal.
func normalize(raw []byte) string {
	line := strings.TrimSpace(string(raw))
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, string(utf8.RuneError))
	}
	return line
}

// heartbeat emits an empty line onto the event source at every interval so
// time-driven bookkeeping never stalls while the server is quiet.
func (s *Server) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case s.events <- "":
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// writeCommands drains the command sink into the child's stdin, one
// newline-terminated command per send. A write failure stops the writer;
// queued and future commands are dropped per the fire-and-forget contract.
func (s *Server) writeCommands(stdin io.WriteCloser) {
	defer stdin.Close()
	w := bufio.NewWriter(stdin)
	for {
		select {
		case command := <-s.commands:
			if _, err := w.WriteString(command + "\n"); err != nil {
				log.Warn("server stdin closed, dropping commands", "error", err)
				return
			}
			if err := w.Flush(); err != nil {
				log.Warn("server stdin closed, dropping commands", "error", err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// relayConsole forwards operator input, line by line, into the command
// sink. It shares the sink with programmatic senders; arrival order is the
// only ordering across the two.
func (s *Server) relayConsole(console io.Reader) {
	scanner := bufio.NewScanner(console)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := normalize(scanner.Bytes())
		select {
		case s.commands <- line:
		case <-s.done:
			return
		}
	}
}
