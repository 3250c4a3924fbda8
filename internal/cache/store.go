package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/models"
)

// Store is the local JSON cache of daily below-book counts, keyed by YYYYMMDD.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the cache file. Counts may be integers, floats or null; null is
// kept as NaN. A missing, empty or unreadable file yields an empty map; the
// problem is logged, never returned. Unparsable content is copied to
// <path>.corrupt first.
func (s *Store) Load() models.PBRCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"module": "cache", "method": "Load", "path": s.path})

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("cache file not found, starting empty")
		} else {
			log.WithError(err).Warn("cache file unreadable, starting empty")
		}
		return models.PBRCounts{}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		log.Warn("cache file is empty")
		return models.PBRCounts{}
	}

	var data models.PBRCounts
	if err := json.Unmarshal(raw, &data); err != nil {
		// the next Save replaces the file, keep what was there
		backup := s.path + ".corrupt"
		if werr := os.WriteFile(backup, raw, 0o644); werr != nil {
			log.WithError(werr).Warn("cache backup failed")
		}
		log.WithError(err).WithField("backup", backup).Warn("cache file is not valid JSON, starting empty")
		return models.PBRCounts{}
	}
	if data == nil {
		return models.PBRCounts{}
	}

	log.WithField("entries", len(data)).Debug("cache loaded")
	return data
}

// Save writes data with sorted keys and four-space indent, replacing the file
// atomically.
func (s *Store) Save(data models.PBRCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data == nil {
		data = models.PBRCounts{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("flush cache: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), s.path); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("replace cache: %w", err)
	}

	logrus.WithFields(logrus.Fields{"module": "cache", "method": "Save", "entries": len(data)}).
		Info("cache saved")
	return nil
}
