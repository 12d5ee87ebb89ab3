package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var (
	ErrDocumentNotFound = errors.New("settings document not found")
	ErrInvalidName      = errors.New("invalid settings document name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// Repository stores whole documents by name; documents are never patched in place.
type Repository interface {
	Load(ctx context.Context, name string) (*Node, error)
	Save(ctx context.Context, name string, doc *Node) error
}

// ValidateName accepts plain file names such as "collections.json" and rejects anything that
// could address a location outside the repository.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// DirRepository keeps each document as a JSON file in one directory.
type DirRepository struct {
	dir string
}

// NewDirRepository creates dir when it does not exist.
func NewDirRepository(dir string) (*DirRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &DirRepository{dir: dir}, nil
}

func (r *DirRepository) Load(_ context.Context, name string) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	return Decode(data)
}

// Save writes to a temporary file first and renames it, so readers never see a partial document.
func (r *DirRepository) Save(_ context.Context, name string, doc *Node) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	data, err := Encode(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, "."+name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(r.dir, name))
}

var _ Repository = (*DirRepository)(nil)
