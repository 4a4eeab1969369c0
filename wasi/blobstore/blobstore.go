// Package blobstore implements the blob-store capability over the local
// filesystem: containers are directories, objects are files.
package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Name is the capability name.
const Name = "wasi:blobstore/blobstore"

// Options configures the blob-store backend.
type Options struct {
	Dir string `env:"BLOB_DIR" default:".blobs"`
}

// FS is a filesystem-backed blob store rooted at a single directory.
// Writes go to a temp file first and are renamed into place, so readers
// never observe a partial object.
type FS struct {
	root string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.BackendUnavailable(Name, err)
	}
	return &FS{root: dir}, nil
}

// Connect builds the store from the environment.
func Connect(ctx context.Context) (*FS, error) {
	var opts Options
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith builds the store using opts.
func ConnectWith(_ context.Context, opts Options) (*FS, error) {
	return New(opts.Dir)
}

// objectPath validates the container/object names and maps them to a
// path under the root. Names must not escape the store.
func (s *FS) objectPath(container, object string) (string, error) {
	if !validName(container) || !validName(object) {
		return "", errors.Decode("blob name "+container+"/"+object, nil)
	}
	return filepath.Join(s.root, container, object), nil
}

func validName(name string) bool {
	if name == "" || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

// Write stores an object, replacing any previous value.
func (s *FS) Write(_ context.Context, container, object string, data []byte) error {
	path, err := s.objectPath(container, object)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Internal(errors.PhaseDispatch, "create container", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Internal(errors.PhaseDispatch, "stage blob", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return errors.Internal(errors.PhaseDispatch, "stage blob", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return errors.Internal(errors.PhaseDispatch, "stage blob", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return errors.Internal(errors.PhaseDispatch, "commit blob", err)
	}
	return nil
}

// Read returns the object's contents, or found=false when it does not
// exist.
func (s *FS) Read(_ context.Context, container, object string) ([]byte, bool, error) {
	path, err := s.objectPath(container, object)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Internal(errors.PhaseDispatch, "read blob", err)
	}
	return data, true, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *FS) Delete(_ context.Context, container, object string) error {
	path, err := s.objectPath(container, object)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Internal(errors.PhaseDispatch, "delete blob", err)
	}
	return nil
}

// List returns the object names in a container, sorted. A missing
// container lists as empty.
func (s *FS) List(_ context.Context, container string) ([]string, error) {
	if !validName(container) {
		return nil, errors.Decode("container name "+container, nil)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, container))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal(errors.PhaseDispatch, "list container", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
