package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	inputTypeSelect   = "select"
	settingSeparator  = "#"
	logMsgApplied     = "settings document updated"
	logMsgHarvestFail = "settings harvest failed"
	logAttrDocument   = "document"
	logAttrUpdates    = "updates"
	logAttrError      = "error"
)

var ErrNilRepository = errors.New("settings repository must not be nil")

// Update appends Value at Path. The parent of an update is taken from the update in the same
// batch whose path is this path without its last segment.
type Update struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Service reads and modifies documents through a Repository. Read-modify-write cycles on the
// same document are serialised within the process.
type Service struct {
	repo   Repository
	logger collectionstore.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithLogger(logger collectionstore.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(repo Repository, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}

	s := &Service{repo: repo, locks: make(map[string]*sync.Mutex)}
	for _, option := range options {
		option(s)
	}

	return s, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Node, error) {
	return s.repo.Load(ctx, name)
}

// Put replaces a whole document.
func (s *Service) Put(ctx context.Context, name string, doc *Node) error {
	unlock := s.lock(name)
	defer unlock()

	return s.repo.Save(ctx, name, doc)
}

// Options resolves path (and parent) in the named document.
func (s *Service) Options(ctx context.Context, name, path, parent string) ([]string, error) {
	doc, err := s.repo.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	return doc.Resolve(path, parent), nil
}

// Apply appends every update in order and saves the document only when it changed.
func (s *Service) Apply(ctx context.Context, name string, updates []Update) (bool, error) {
	unlock := s.lock(name)
	defer unlock()

	doc, err := s.repo.Load(ctx, name)
	if err != nil {
		return false, err
	}

	modified := false
	for _, u := range updates {
		changed, err := doc.Append(u.Path, u.Value, parentValue(u, updates))
		if err != nil {
			return false, fmt.Errorf("append %s: %w", u.Path, err)
		}
		modified = modified || changed
	}

	if !modified {
		return false, nil
	}

	if err := s.repo.Save(ctx, name, doc); err != nil {
		return false, err
	}

	if s.logger != nil {
		s.logger.Info(logMsgApplied, logAttrDocument, name, logAttrUpdates, len(updates))
	}

	return true, nil
}

func parentValue(u Update, batch []Update) string {
	i := strings.LastIndex(u.Path, ".")
	if i < 0 {
		return ""
	}

	parentPath := u.Path[:i]
	for _, other := range batch {
		if other.Path == parentPath {
			return other.Value
		}
	}

	return ""
}

// HarvestRecord adds the values a record carries in select fields with a setting reference to
// the referenced documents, so that values typed in by users become options. A field whose
// setting path extends the path of another field in the same document is only harvested
// together with a value for that parent field.
func (s *Service) HarvestRecord(ctx context.Context, fields []collectionstore.FieldShape, rec collectionstore.Record) error {
	type reference struct {
		field string
		file  string
		path  string
	}

	var refs []reference
	for _, f := range fields {
		if f.Meta.InputType != inputTypeSelect || f.Meta.Setting == "" {
			continue
		}
		file, path, ok := strings.Cut(f.Meta.Setting, settingSeparator)
		if !ok || file == "" || path == "" {
			continue
		}
		refs = append(refs, reference{field: f.Name, file: file, path: path})
	}

	var files []string
	batches := make(map[string][]Update)

	for _, ref := range refs {
		value := rec.Text(ref.field)
		if value == "" {
			continue
		}

		hasParent, parentSet := false, false
		for _, other := range refs {
			if other.file == ref.file && strings.HasPrefix(ref.path, other.path+".") {
				hasParent = true
				parentSet = rec.Text(other.field) != ""
				break
			}
		}

		if hasParent && !parentSet {
			continue
		}

		if _, seen := batches[ref.file]; !seen {
			files = append(files, ref.file)
		}
		batches[ref.file] = append(batches[ref.file], Update{Path: ref.path, Value: value})
	}

	var errs []error
	for _, file := range files {
		if _, err := s.Apply(ctx, file, batches[file]); err != nil {
			if s.logger != nil {
				s.logger.Warn(logMsgHarvestFail, logAttrDocument, file, logAttrError, err.Error())
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) lock(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()

	return l.Unlock
}
