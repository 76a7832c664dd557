package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxflow/voxflow/pkg/flow"
)

// Logical document names served by the [Store].
const (
	DocIVR        = "ivr"
	DocWebAPI     = "webapi"
	DocExtensions = "extensions"
	DocRecording  = "recording"
)

// Store loads the JSON flow documents and serves them to concurrent readers.
//
// Publication is atomic: a document pointer is swapped only after both parse
// and validation succeed, so readers observe either the previous document or
// the new one, never a mix. The recorded mtime advances only on successful
// publication, keeping the probe state coherent with what readers see.
//
// The reload path is single-writer (guarded by mu); reads are lock-free.
type Store struct {
	scriptDir string
	files     map[string]string
	log       *slog.Logger
	reloadRec func(name string)

	mu     sync.Mutex
	mtimes map[string]time.Time

	ivr        atomic.Pointer[flow.Document]
	endpoints  atomic.Pointer[flow.EndpointCatalog]
	extensions atomic.Pointer[flow.ExtensionMap]
	recording  atomic.Pointer[flow.RecordingTypeMap]
}

// StoreOption is a functional option for [NewStore].
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for reload events.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReloadRecorder installs a callback invoked after every successful
// document publication, with the logical document name.
func WithReloadRecorder(r func(name string)) StoreOption {
	return func(s *Store) { s.reloadRec = r }
}

// WithFiles overrides the file name registered under a logical document
// name. Unknown names are ignored.
func WithFiles(files map[string]string) StoreOption {
	return func(s *Store) {
		for name, file := range files {
			if _, ok := s.files[name]; ok && file != "" {
				s.files[name] = file
			}
		}
	}
}

// NewStore creates a Store resolving documents under scriptDir using the
// default file names. No files are read until [Store.LoadAll].
func NewStore(scriptDir string, opts ...StoreOption) *Store {
	s := &Store{
		scriptDir: scriptDir,
		log:       slog.With("component", "config"),
		files: map[string]string{
			DocIVR:        DefaultIVRFile,
			DocWebAPI:     DefaultWebAPIFile,
			DocExtensions: DefaultExtensionsFile,
			DocRecording:  DefaultRecordingFile,
		},
		mtimes: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the resolved file path for a logical document name.
func (s *Store) Path(name string) (string, error) {
	file, ok := s.files[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return filepath.Join(s.scriptDir, file), nil
}

// LoadAll probes every registered document and re-parses the ones whose
// mtime changed since the last successful load. Documents that fail to load
// keep their previously published version; all failures are reported as one
// joined error.
func (s *Store) LoadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, name := range []string{DocIVR, DocWebAPI, DocExtensions, DocRecording} {
		if err := s.loadLocked(name, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reload re-parses one document regardless of its mtime.
func (s *Store) Reload(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.loadLocked(name, true)
}

// loadLocked probes, parses, validates and publishes one document. The
// caller holds mu.
func (s *Store) loadLocked(name string, force bool) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) && s.optional(name) {
			// Optional catalogs may be absent; publish an empty one once.
			s.publishEmpty(name)
			return nil
		}
		return fmt.Errorf("%w: %s (%s)", ErrNotFound, name, path)
	}
	mtime := info.ModTime()
	if !force && mtime.Equal(s.mtimes[name]) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &ParseError{Name: name, Err: err}
	}

	if err := s.parseAndPublish(name, data); err != nil {
		return err
	}

	// Record mtime only after successful publication so a broken edit keeps
	// both the published pointer and the probe state on the last good version.
	s.mtimes[name] = mtime
	s.log.Info("document published", "name", name, "file", filepath.Base(path), "mtime", mtime)
	if s.reloadRec != nil {
		s.reloadRec(name)
	}
	return nil
}

func (s *Store) optional(name string) bool {
	return name == DocExtensions || name == DocRecording
}

func (s *Store) publishEmpty(name string) {
	switch name {
	case DocExtensions:
		if s.extensions.Load() == nil {
			m := flow.ExtensionMap{}
			s.extensions.Store(&m)
			s.log.Warn("extensions file missing; publishing empty map")
		}
	case DocRecording:
		if s.recording.Load() == nil {
			m := flow.RecordingTypeMap{}
			s.recording.Store(&m)
			s.log.Warn("recording type file missing; publishing empty map")
		}
	}
}

func (s *Store) parseAndPublish(name string, data []byte) error {
	switch name {
	case DocIVR:
		doc, err := flow.Decode(data)
		if err != nil {
			return &ParseError{Name: name, Err: err}
		}
		if err := flow.Validate(doc); err != nil {
			return &ValidationError{Name: name, Field: "IVRConfiguration", Err: err}
		}
		s.ivr.Store(doc)
	case DocWebAPI:
		cat, err := flow.DecodeEndpoints(data)
		if err != nil {
			return &ValidationError{Name: name, Field: "result", Err: err}
		}
		s.endpoints.Store(cat)
	case DocExtensions:
		m, err := flow.DecodeExtensions(data)
		if err != nil {
			return &ParseError{Name: name, Err: err}
		}
		if len(m) == 0 {
			s.log.Warn("extensions map is empty")
		}
		s.extensions.Store(&m)
	case DocRecording:
		m, err := flow.DecodeRecordingTypes(data)
		if err != nil {
			return &ParseError{Name: name, Err: err}
		}
		s.recording.Store(&m)
	default:
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Get returns the currently published document for a logical name, or nil
// when nothing has been published yet.
func (s *Store) Get(name string) any {
	switch name {
	case DocIVR:
		if d := s.ivr.Load(); d != nil {
			return d
		}
	case DocWebAPI:
		if d := s.endpoints.Load(); d != nil {
			return d
		}
	case DocExtensions:
		if d := s.extensions.Load(); d != nil {
			return *d
		}
	case DocRecording:
		if d := s.recording.Load(); d != nil {
			return *d
		}
	}
	return nil
}

// IVRFlow returns the active flow configuration, or nil before first load.
// The returned configuration is immutable; callers in flight keep operating
// on the version they first saw even across reloads.
func (s *Store) IVRFlow() *flow.Configuration {
	doc := s.ivr.Load()
	if doc == nil {
		return nil
	}
	return doc.Flow()
}

// GeneralSettings returns the active flow's settings map, or nil.
func (s *Store) GeneralSettings() flow.Settings {
	cfg := s.IVRFlow()
	if cfg == nil {
		return nil
	}
	return cfg.Settings
}

// Endpoints returns the web API endpoint catalog, or nil before first load.
func (s *Store) Endpoints() *flow.EndpointCatalog {
	return s.endpoints.Load()
}

// AgentExtensions returns the extension map; never nil after a successful
// LoadAll.
func (s *Store) AgentExtensions() flow.ExtensionMap {
	if m := s.extensions.Load(); m != nil {
		return *m
	}
	return nil
}

// RecordingConfig returns the recording type map; never nil after a
// successful LoadAll.
func (s *Store) RecordingConfig() flow.RecordingTypeMap {
	if m := s.recording.Load(); m != nil {
		return *m
	}
	return nil
}

// Loaded reports whether the two mandatory documents have been published.
// Health checks use this as the readiness signal.
func (s *Store) Loaded() bool {
	return s.ivr.Load() != nil && s.endpoints.Load() != nil
}
