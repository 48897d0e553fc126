package services

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateStore is the built-in state-persistence convenience layer bound to a
// root directory, per spec §4.13/§6. For an actor name and a key, it reads,
// writes, and deletes {root}/{actor-name}/{key}. Atomicity is best-effort
// per call; there are no cross-call transactions.
type StateStore struct {
	root string
}

// NewStateStore binds a StateStore to root, creating it if absent.
func NewStateStore(root string) (*StateStore, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("services: creating state root %s: %w", root, err)
	}

	return &StateStore{root: root}, nil
}

// pathFor validates name and key contain no path separators (an actor name
// or key must never escape its own directory) and returns the on-disk path.
func (s *StateStore) pathFor(actorName, key string) (string, error) {
	if actorName == "" || key == "" {
		return "", fmt.Errorf("services: actor name and key must be non-empty")
	}
	if filepath.Base(actorName) != actorName || filepath.Base(key) != key {
		return "", fmt.Errorf("services: actor name and key must not contain path separators")
	}

	return filepath.Join(s.root, actorName, key), nil
}

// Write stores value under {root}/{actorName}/{key}, creating the actor's
// directory on demand. The write goes to a temp file first and is renamed
// into place, so a reader never observes a partial write (best-effort
// atomicity per call, as the spec requires; no cross-call transactions).
func (s *StateStore) Write(actorName, key string, value []byte) error {
	path, err := s.pathFor(actorName, key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("services: creating actor state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("services: creating temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("services: writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("services: closing state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("services: renaming state file into place: %w", err)
	}

	return nil
}

// Read returns the current contents of {root}/{actorName}/{key}. ok is
// false if the key does not exist.
func (s *StateStore) Read(actorName, key string) (value []byte, ok bool, err error) {
	path, err := s.pathFor(actorName, key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("services: reading state file: %w", err)
	}

	return data, true, nil
}

// Delete removes {root}/{actorName}/{key}. It is not an error for the key
// to already be absent.
func (s *StateStore) Delete(actorName, key string) error {
	path, err := s.pathFor(actorName, key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("services: deleting state file: %w", err)
	}

	return nil
}

// List returns the keys currently stored for actorName.
func (s *StateStore) List(actorName string) ([]string, error) {
	dir := filepath.Join(s.root, actorName)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("services: listing actor state directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}

	return keys, nil
}
