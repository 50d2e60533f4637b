package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	addressesFile = "deployed_addresses.json"
	recordsFile   = "journal.json"
)

// FileStore keeps one directory per chain:
//
//	<dir>/chain-<id>/deployed_addresses.json  future id -> address
//	<dir>/chain-<id>/journal.json             full records
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. Nothing is written until Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) chainDir(chainID int64) string {
	return filepath.Join(s.dir, DeploymentID(chainID))
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, chainID int64, futureID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read(chainID)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.FutureID == futureID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, futureID, DeploymentID(chainID))
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read(rec.ChainID)
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range records {
		if r.FutureID == rec.FutureID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	return s.write(rec.ChainID, records)
}

// List implements Store.
func (s *FileStore) List(_ context.Context, chainID int64) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chainID != 0 {
		return s.read(chainID)
	}

	chains, err := s.chains()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, id := range chains {
		records, err := s.read(id)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// Reset implements Store.
func (s *FileStore) Reset(_ context.Context, chainID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.chainDir(chainID)); err != nil {
		return fmt.Errorf("reset %s: %w", DeploymentID(chainID), err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) chains() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}

	var ids []int64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "chain-") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), "chain-"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *FileStore) read(chainID int64) ([]*Record, error) {
	path := filepath.Join(s.chainDir(chainID), recordsFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func (s *FileStore) write(chainID int64, records []*Record) error {
	dir := s.chainDir(chainID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	addresses := make(map[string]string, len(records))
	for _, r := range records {
		addresses[r.FutureID] = r.Address
	}

	if err := writeJSON(filepath.Join(dir, recordsFile), records); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, addressesFile), addresses)
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
