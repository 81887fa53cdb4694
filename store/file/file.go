// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/xmidt-org/vitrine/store"
)

const (
	defaultDir      = "data"
	defaultFileMode = 0o600
	fileSuffix      = ".json"
)

// Config selects where blobs are written on the local filesystem.
type Config struct {
	// Dir holds one file per namespace. Defaults to "data".
	Dir string

	// MaxBytes bounds the size of a single blob. Zero means unbounded.
	MaxBytes int
}

// Store keeps each namespace in its own file, written atomically through
// a temporary file and a rename.
type Store struct {
	fs    afero.Fs
	dir   string
	quota store.Quota
	lock  sync.Mutex
}

// New builds a Store over fsys, creating the directory when missing.
func New(fsys afero.Fs, config Config) (*Store, error) {
	if config.Dir == "" {
		config.Dir = defaultDir
	}
	if err := fsys.MkdirAll(config.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", config.Dir, err)
	}
	return &Store{
		fs:    fsys,
		dir:   config.Dir,
		quota: store.Quota{MaxBytes: config.MaxBytes},
	}, nil
}

func (s *Store) path(namespace string) string {
	return filepath.Join(s.dir, namespace+fileSuffix)
}

func (s *Store) Load(_ context.Context, namespace string) ([]byte, error) {
	if err := store.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	data, err := afero.ReadFile(s.fs, s.path(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: store.ErrNotFound}
	}
	if err != nil {
		return nil, store.OperationError{Operation: store.LoadType, Namespace: namespace, Err: err}
	}
	return data, nil
}

func (s *Store) Save(_ context.Context, namespace string, data []byte) error {
	if err := store.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := s.quota.Check(namespace, data); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	tmp := s.path(namespace) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, defaultFileMode); err != nil {
		_ = s.fs.Remove(tmp)
		if isNoSpace(err) {
			return store.QuotaExceededError{Namespace: namespace, Size: len(data), Err: err}
		}
		return store.OperationError{Operation: store.SaveType, Namespace: namespace, Err: err}
	}
	if err := s.fs.Rename(tmp, s.path(namespace)); err != nil {
		_ = s.fs.Remove(tmp)
		return store.OperationError{Operation: store.SaveType, Namespace: namespace, Err: err}
	}
	return nil
}

func (s *Store) Clear(_ context.Context, namespace string) error {
	if err := store.ValidateNamespace(namespace); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	err := s.fs.Remove(s.path(namespace))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return store.OperationError{Operation: store.ClearType, Namespace: namespace, Err: err}
	}
	return nil
}

func isNoSpace(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr.Err, errNoSpace)
	}
	return errors.Is(err, errNoSpace)
}
