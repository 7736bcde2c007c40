// Package logfile implements a file-backed trade log source. Each line of
// the watched file is one log entry, newest lines appended at the end.
// Lines may be plain text or JSON objects carrying actor metadata.
package logfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/odinsson/tradeledger/internal/service"
)

// jsonLine is the optional structured form of a log line. A line carrying
// only sessionId binds the session identity without adding an entry.
type jsonLine struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ActorName string `json:"actorName"`
	SessionID string `json:"sessionId"`
	ActorID   int64  `json:"actorId"`
}

// Source watches a log file and exposes it as a service.LogSource.
// Truncation or replacement of the file bumps the generation, signaling
// consumers to rebuild rather than scan incrementally.
type Source struct {
	path      string
	logger    *slog.Logger
	entries   []service.Entry
	callbacks []func()
	sessionID string
	gen       int64
	lastSize  int64
	lastHash  uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
}

// New creates a source over path and performs the initial load. The file
// does not need to exist yet; it is picked up once created.
func New(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		path:   path,
		logger: logger.With("component", "logfile", "path", path),
		gen:    1,
	}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load log file: %w", err)
	}
	return s, nil
}

// Entries returns the current entries in file order.
func (s *Source) Entries() []service.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]service.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Generation returns the current log generation. It changes whenever the
// file is truncated or replaced.
func (s *Source) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// SessionID returns the bound session identity, if the file declared one.
func (s *Source) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// OnMutation registers a callback fired after the file changes. Delivery
// is at-least-once; callbacks must tolerate redundant invocations.
func (s *Source) OnMutation(fn func()) {
	s.mu.Lock()
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Start begins watching the file for changes via fsnotify, with a slow
// poll as a safety net for filesystems that drop events.
func (s *Source) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so file replacement (rename over) is observed.
	dir := s.path
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[:i]
	} else {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = watcher.Close() }()

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				s.sync()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("File watcher error", "error", err)
			case <-ticker.C:
				s.sync()
			}
		}
	}()
	return nil
}

// Stop halts the watcher.
func (s *Source) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Source) sync() {
	if err := s.reload(); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to reload log file", "error", err)
		}
		return
	}
	s.mu.Lock()
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (s *Source) reload() error {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var (
		entries   []service.Entry
		sessionID string
	)
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, session, ok := parseLine(line, lineNo)
		if session != "" {
			sessionID = session
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	size := int64(len(content))

	s.mu.Lock()
	// A shrink is a truncation; a grown-or-equal file whose old prefix
	// changed was replaced wholesale. Either way the line-numbered entry
	// ids no longer identify what they used to, so consumers must rebuild.
	if size < s.lastSize || (s.lastSize > 0 && hashPrefix(content[:s.lastSize]) != s.lastHash) {
		s.gen++
		s.logger.Debug("log file truncated or replaced, bumping generation", "generation", s.gen)
	}
	s.lastSize = size
	s.lastHash = hashPrefix(content)
	s.entries = entries
	s.sessionID = sessionID
	s.mu.Unlock()
	return nil
}

func hashPrefix(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// parseLine decodes one log line. JSON lines carry actor metadata; a JSON
// line with only sessionId binds the session without adding an entry.
// Plain lines become text-only entries keyed by line number.
func parseLine(line string, lineNo int) (service.Entry, string, bool) {
	if strings.HasPrefix(line, "{") {
		var jl jsonLine
		if err := json.Unmarshal([]byte(line), &jl); err == nil {
			if jl.Text == "" {
				return service.Entry{}, jl.SessionID, false
			}
			id := jl.ID
			if id == "" {
				id = "line-" + strconv.Itoa(lineNo)
			}
			return service.Entry{
				ID:        id,
				Text:      jl.Text,
				ActorName: jl.ActorName,
				ActorID:   jl.ActorID,
			}, jl.SessionID, true
		}
	}
	return service.Entry{
		ID:   "line-" + strconv.Itoa(lineNo),
		Text: line,
	}, "", true
}
