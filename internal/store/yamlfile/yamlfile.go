// Package yamlfile stores channels as one YAML document per channel inside a
// directory, plus a defaults.yaml file mapping members to their default channel.
// Channel files always end in .yml, so no channel name maps onto defaults.yaml.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/chanserv/internal/store"
)

const (
	channelExt   = ".yml"
	defaultsFile = "defaults.yaml"
)

// Store implements store.ChannelStore on top of a directory of YAML files.
type Store struct {
	dir string
	mu  sync.Mutex // serializes defaults.yaml read-modify-write
}

// New creates the directory if needed and returns a store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create channels dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op; files are written synchronously.
func (s *Store) Close() error { return nil }

// ErrInvalidName is returned for names that cannot be used as a file name.
var ErrInvalidName = errors.New("invalid channel file name")

func (s *Store) channelPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, strings.ToLower(name)+channelExt), nil
}

// LoadChannels reads every channel file in the directory.
func (s *Store) LoadChannels(_ context.Context) ([]store.ChannelRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read channels dir: %w", err)
	}

	records := make([]store.ChannelRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != channelExt {
			continue
		}
		var rec store.ChannelRecord
		if err := readYAML(filepath.Join(s.dir, entry.Name()), &rec); err != nil {
			return nil, err
		}
		if rec.Name == "" {
			rec.Name = strings.TrimSuffix(entry.Name(), channelExt)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
	})
	return records, nil
}

// SaveChannel writes the channel file atomically.
func (s *Store) SaveChannel(_ context.Context, rec store.ChannelRecord) error {
	path, err := s.channelPath(rec.Name)
	if err != nil {
		return err
	}
	return writeYAML(path, rec)
}

// DeleteChannel removes the channel file.
func (s *Store) DeleteChannel(_ context.Context, name string) error {
	path, err := s.channelPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove channel file: %w", err)
	}
	return nil
}

// LoadDefaults reads defaults.yaml. A missing file means no defaults.
func (s *Store) LoadDefaults(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDefaults()
}

// SaveDefault updates one entry of defaults.yaml.
func (s *Store) SaveDefault(_ context.Context, memberID, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults, err := s.readDefaults()
	if err != nil {
		return err
	}
	if channel == "" {
		delete(defaults, memberID)
	} else {
		defaults[memberID] = channel
	}
	return writeYAML(filepath.Join(s.dir, defaultsFile), defaults)
}

func (s *Store) readDefaults() (map[string]string, error) {
	defaults := make(map[string]string)
	err := readYAML(filepath.Join(s.dir, defaultsFile), &defaults)
	if errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	if defaults == nil {
		defaults = make(map[string]string)
	}
	return defaults, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeYAML writes through a temp file and rename so readers never see a
// partially written document.
func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
