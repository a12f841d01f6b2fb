// ============================================================================
// Session event journal
// ============================================================================
//
// Package: internal/journal
// Purpose: Append-only log of session history (joins, deaths, rolls,
// checkpoints, recoveries), one JSON entry per line.
//
// The journal is an audit trail, not state the supervisor depends on:
// replay is lenient and skips entries whose checksum does not verify
// instead of aborting. Sequence numbers are recovered from the last valid
// entry so numbering continues across supervisor restarts.
//
// ============================================================================

package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"sync"
	"time"
)

var log = slog.Default()

// EntryType names a journal record kind.
type EntryType string

const (
	EntrySessionStart EntryType = "SESSION_START" // New supervised session spawned
	EntrySessionEnd   EntryType = "SESSION_END"   // Server exited without a penalty
	EntryJoin         EntryType = "JOIN"          // Player came online
	EntryLeave        EntryType = "LEAVE"         // Player went offline
	EntryDeath        EntryType = "DEATH"         // Death event classified
	EntryRoll         EntryType = "ROLL"          // Dice ritual result
	EntryCheckpoint   EntryType = "CHECKPOINT"    // Backup taken
	EntryReset        EntryType = "RESET"         // World destroyed
	EntryRewind       EntryType = "REWIND"        // World restored from backup
)

// Entry is one journal record.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Type      EntryType `json:"type"`
	Player    string    `json:"player,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp int64     `json:"timestamp"` // Unix millisecond timestamp
	Checksum  uint32    `json:"checksum"`  // CRC32 over the stable fields
}

// checksum covers the fields that are stable across replay. The timestamp
// is excluded on purpose.
func checksum(t EntryType, player, detail string, seq uint64) uint32 {
	data := fmt.Sprintf("%s|%s|%s|%d", t, player, detail, seq)
	return crc32.ChecksumIEEE([]byte(data))
}

// Verify reports whether the entry's checksum matches its contents.
func Verify(e Entry) bool {
	return e.Checksum == checksum(e.Type, e.Player, e.Detail, e.Seq)
}

// Journal appends entries to a single file.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
	seq  uint64
}

// Open creates or opens the journal at path in append mode. The sequence
// counter continues from the last valid entry of an existing file.
func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	var seq uint64
	if entries, err := read(path); err == nil && len(entries) > 0 {
		seq = entries[len(entries)-1].Seq
	}

	return &Journal{
		file: file,
		enc:  json.NewEncoder(file),
		path: path,
		seq:  seq,
	}, nil
}

// Append writes one entry. Journal failures are reported but the caller is
// expected to keep running; the journal never blocks the game.
func (j *Journal) Append(t EntryType, player, detail string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry := Entry{
		Seq:       j.seq,
		Type:      t,
		Player:    player,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	}
	entry.Checksum = checksum(t, player, detail, j.seq)

	if err := j.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Close syncs and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return j.file.Close()
}

// Replay invokes handler for every valid entry in file order. Entries that
// fail to decode or verify are skipped with a warning.
func Replay(path string, handler func(Entry) error) error {
	entries, err := read(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := handler(entry); err != nil {
			return err
		}
	}
	return nil
}

func read(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			log.Warn("skipping malformed journal line", "error", err)
			continue
		}
		if !Verify(entry) {
			log.Warn("skipping journal entry with bad checksum", "seq", entry.Seq)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal: %w", err)
	}
	return entries, nil
}
