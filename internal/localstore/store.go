// Package localstore keeps the client-side studio state on disk: the saved
// credential, the generation counter and the generation history.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

const (
	settingsFile = "settings.toml"
	historyFile  = "history.json"

	// MaxPreviewRunes is the longest text kept verbatim in a history item.
	MaxPreviewRunes = 50
)

// ErrNotFound is returned when a history item does not exist.
var ErrNotFound = errors.New("localstore: not found")

// Settings is persisted in settings.toml.
type Settings struct {
	APIKey       string `toml:"elevenlabs_api_key"`
	TotalCreated int    `toml:"tts_total_created"`
}

// HistoryItem records one generated file.
type HistoryItem struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	VoiceName string    `json:"voiceName"`
	Timestamp time.Time `json:"timestamp"`
	AudioPath string    `json:"audioPath"`
	Index     int       `json:"index"`
}

// Store is a directory-backed store. It is safe for concurrent use within
// one process.
type Store struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// Open creates dir when missing and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("localstore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// APIKey returns the saved credential, empty when none.
func (s *Store) APIKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.readSettings()
	if err != nil {
		return "", err
	}
	return settings.APIKey, nil
}

// SetAPIKey saves the credential.
func (s *Store) SetAPIKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.readSettings()
	if err != nil {
		return err
	}
	settings.APIKey = key
	return s.writeSettings(settings)
}

// NextIndex increments and persists the generation counter and returns the
// new value. The first call returns 1.
func (s *Store) NextIndex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.readSettings()
	if err != nil {
		return 0, err
	}
	settings.TotalCreated++
	if err := s.writeSettings(settings); err != nil {
		return 0, err
	}
	return settings.TotalCreated, nil
}

// Add records a generation at the head of the history and returns the item.
func (s *Store) Add(text, voiceName, audioPath string, index int) (HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readHistory()
	if err != nil {
		return HistoryItem{}, err
	}

	item := HistoryItem{
		ID:        uuid.New(),
		Text:      Preview(text),
		VoiceName: voiceName,
		Timestamp: s.now().UTC(),
		AudioPath: audioPath,
		Index:     index,
	}
	items = append([]HistoryItem{item}, items...)
	if err := s.writeHistory(items); err != nil {
		return HistoryItem{}, err
	}
	return item, nil
}

// List returns the history, newest first.
func (s *Store) List() ([]HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readHistory()
}

// Delete removes the history item with id. The audio file is left alone.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readHistory()
	if err != nil {
		return err
	}

	kept := items[:0]
	found := false
	for _, item := range items {
		if item.ID == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.writeHistory(kept)
}

// Filename is the download name for generation index with voiceName, for
// example 007_Rachel.mp3. Path separators and control characters in the name
// become underscores, so the result is always a single path element.
func Filename(index int, voiceName string) string {
	return fmt.Sprintf("%03d_%s.mp3", index, safeName(voiceName))
}

func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == ':', unicode.IsControl(r):
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if strings.Trim(name, ".") == "" {
		return "Unknown"
	}
	return name
}

// Preview truncates text to MaxPreviewRunes runes, marking the cut with "...".
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxPreviewRunes {
		return text
	}
	return string(runes[:MaxPreviewRunes]) + "..."
}

func (s *Store) readSettings() (Settings, error) {
	var settings Settings
	data, err := os.ReadFile(filepath.Join(s.dir, settingsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("localstore: read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("localstore: parse settings: %w", err)
	}
	return settings, nil
}

func (s *Store) writeSettings(settings Settings) error {
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("localstore: encode settings: %w", err)
	}
	// The file holds a credential.
	return writeAtomic(filepath.Join(s.dir, settingsFile), data, 0o600)
}

func (s *Store) readHistory() ([]HistoryItem, error) {
	items := []HistoryItem{}
	data, err := os.ReadFile(filepath.Join(s.dir, historyFile))
	if errors.Is(err, fs.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read history: %w", err)
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("localstore: parse history: %w", err)
	}
	return items, nil
}

func (s *Store) writeHistory(items []HistoryItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("localstore: encode history: %w", err)
	}
	return writeAtomic(filepath.Join(s.dir, historyFile), data, 0o644)
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("localstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("localstore: write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("localstore: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("localstore: rename temp file: %w", err)
	}
	return nil
}
