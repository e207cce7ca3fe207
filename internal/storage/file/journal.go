// Package file implements the trade journal as a JSON-lines file.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// maxLineSize bounds a single journal line.
const maxLineSize = 1 << 20

// Journal appends one JSON object per line. Each record is written with
// a single write on an O_APPEND descriptor.
type Journal struct {
	mu      sync.Mutex
	f       *os.File
	lastSeq uint64
	refs    map[string]struct{}
}

// OpenJournal opens or creates the journal at path and replays it to
// recover the last sequence id.
func OpenJournal(path string) (*Journal, error) {
	j := &Journal{refs: make(map[string]struct{})}
	if err := j.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j.f = f
	return j, nil
}

var _ storage.Journal = (*Journal)(nil)

func (j *Journal) replay(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open journal for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r domain.JournalRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("journal line %d: %w", line, err)
		}
		if r.SequenceID > j.lastSeq {
			j.lastSeq = r.SequenceID
		}
		j.refs[r.TradeRef] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	return nil
}

// Append writes r as one line.
func (j *Journal) Append(_ context.Context, r *domain.JournalRecord) error {
	if err := storage.ValidateJournalRecord(r); err != nil {
		return err
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if r.SequenceID <= j.lastSeq {
		return storage.ErrDuplicateKey
	}
	if _, exists := j.refs[r.TradeRef]; exists {
		return storage.ErrDuplicateKey
	}

	if _, err := j.f.Write(line); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	j.lastSeq = r.SequenceID
	j.refs[r.TradeRef] = struct{}{}
	return nil
}

// LastSequenceID returns the highest sequence id written.
func (j *Journal) LastSequenceID(_ context.Context) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq, nil
}

// Close closes the file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
