package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// SnipeList is an allow-list of mints loaded from a file, one base58
// mint per line. Blank lines and lines starting with # are ignored.
type SnipeList struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex
	mints map[solana.PublicKey]struct{}
}

// NewSnipeList creates a snipe list backed by path. Call Load or Run to fill it.
func NewSnipeList(path string, logger zerolog.Logger) *SnipeList {
	return &SnipeList{
		path:   path,
		logger: logger.With().Str("component", "snipe_list").Logger(),
		mints:  make(map[solana.PublicKey]struct{}),
	}
}

var _ storage.SnipeListStore = (*SnipeList)(nil)

// Contains reports whether mint is listed.
func (l *SnipeList) Contains(_ context.Context, mint solana.PublicKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.mints[mint]
	return ok
}

// Len returns the number of listed mints.
func (l *SnipeList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.mints)
}

// Mints returns the listed mints in no particular order.
func (l *SnipeList) Mints() []solana.PublicKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]solana.PublicKey, 0, len(l.mints))
	for m := range l.mints {
		out = append(out, m)
	}
	return out
}

// Load replaces the list with the file contents.
func (l *SnipeList) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open snipe list: %w", err)
	}
	defer f.Close()

	mints := make(map[solana.PublicKey]struct{})
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		mint, err := solana.PublicKeyFromBase58(text)
		if err != nil {
			l.logger.Warn().Err(err).Int("line", line).Msg("skipping invalid mint")
			continue
		}
		mints[mint] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read snipe list: %w", err)
	}

	l.mu.Lock()
	l.mints = mints
	l.mu.Unlock()

	l.logger.Debug().Int("mints", len(mints)).Msg("snipe list loaded")
	return nil
}

// Run reloads the file every interval until ctx is done.
// A failed reload keeps the previous list.
func (l *SnipeList) Run(ctx context.Context, interval time.Duration) {
	if err := l.Load(); err != nil {
		l.logger.Error().Err(err).Msg("load snipe list")
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Load(); err != nil {
				l.logger.Error().Err(err).Msg("refresh snipe list")
			}
		}
	}
}
