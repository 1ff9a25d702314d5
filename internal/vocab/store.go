package vocab

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Store holds the active tables and swaps them atomically on reload.
// Readers take a snapshot with Tables() at the start of a run.
type Store struct {
	current atomic.Pointer[Tables]
	path    string
}

// NewStore creates a store. With an empty path the embedded defaults are used
// and Reload is a no-op.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		s.current.Store(Default())
		return s, nil
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(t)
	return s, nil
}

// NewStaticStore wraps fixed tables, mostly for tests.
func NewStaticStore(t *Tables) *Store {
	s := &Store{}
	s.current.Store(t)
	return s
}

// Tables returns the current snapshot.
func (s *Store) Tables() *Tables {
	return s.current.Load()
}

// Path returns the overlay file path, empty when running on defaults.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the overlay file. On failure the previous tables stay active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	t, err := LoadFile(s.path)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Vocabulary reload failed, keeping previous tables")
		return err
	}
	s.current.Store(t)
	log.Info().Str("path", s.path).Int("headTerms", len(t.SubjectHeads)).Msg("Vocabulary reloaded")
	return nil
}
