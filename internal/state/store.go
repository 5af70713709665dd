package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/models"
	"github.com/kinofiles/kinosync/internal/protocol"
)

// Sender is the outbound command channel. A nil Sender means the push
// channel is not connected.
type Sender interface {
	Send(ctx context.Context, cmd protocol.Command) error
}

// Persister is the session store the Store writes its snapshot to.
type Persister interface {
	Load(key string, v interface{}) (bool, error)
	Save(key string, v interface{}) error
}

// Snapshot is the persisted part of the Store. The transport handle and the
// node roster are never persisted.
type Snapshot struct {
	Files           []models.FileEntry `json:"files"`
	FilesInProgress ProgressMap        `json:"filesInProgress"`
}

// Store is the observable client state. One Store exists per running client
// and is handed to every consumer. Thread-safe for concurrent access.
type Store struct {
	eventBus *events.EventBus
	persist  Persister
	logger   *logging.Logger

	files     []models.FileEntry
	progress  ProgressMap
	nodes     []string
	transport Sender

	mu sync.RWMutex

	// persistMu orders snapshot writes so the session never ends up holding
	// an older snapshot than the one in memory.
	persistMu sync.Mutex
}

// StoreOptions configures NewStore. All fields are optional.
type StoreOptions struct {
	EventBus  *events.EventBus
	Persister Persister
	Logger    *logging.Logger
}

// NewStore creates a Store and restores files and progress from the session
// store when one is attached. A missing or unreadable snapshot starts the
// Store empty.
func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Store{
		eventBus: opts.EventBus,
		persist:  opts.Persister,
		logger:   logger,
		files:    make([]models.FileEntry, 0),
		progress: make(ProgressMap),
		nodes:    make([]string, 0),
	}
	if s.persist != nil {
		if err := s.restore(); err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring unreadable session snapshot")
		}
	}
	return s
}

func (s *Store) restore() error {
	var snap Snapshot
	found, err := s.persist.Load(constants.SessionKey, &snap)
	if err != nil {
		return fmt.Errorf("load %s: %w", constants.SessionKey, err)
	}
	if !found {
		return nil
	}
	if snap.Files != nil {
		s.files = snap.Files
	}
	if snap.FilesInProgress != nil {
		s.progress = snap.FilesInProgress
	}
	s.logger.Debug().
		Int("files", len(s.files)).
		Int("transfers", len(s.progress)).
		Msg("Restored session snapshot")
	return nil
}

// Files returns a copy of the current listing.
func (s *Store) Files() []models.FileEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.FileEntry, len(s.files))
	copy(result, s.files)
	return result
}

// SetFiles replaces the listing wholesale and publishes a change event.
func (s *Store) SetFiles(files []models.FileEntry) {
	itemsCopy := make([]models.FileEntry, len(files))
	copy(itemsCopy, files)

	s.mu.Lock()
	s.files = itemsCopy
	s.mu.Unlock()

	s.publish(NewFilesChangedEvent(itemsCopy))
	s.save()
}

// Progress returns the current progress map. The map must not be modified.
func (s *Store) Progress() ProgressMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// SetProgress replaces the progress map.
func (s *Store) SetProgress(m ProgressMap) {
	m = m.Clone()

	s.mu.Lock()
	s.progress = m
	s.mu.Unlock()

	s.publish(NewProgressChangedEvent("", 0, -1, m))
	s.save()
}

// UpdateProgress merges one transfer update into the progress map and
// returns the resulting map. The read-merge-write happens under the lock so
// concurrent updates for different names are never lost.
func (s *Store) UpdateProgress(name string, progress int) ProgressMap {
	s.mu.Lock()
	previous, ok := s.progress.Get(name)
	if !ok {
		previous = -1
	}
	merged := MergeProgress(s.progress, name, progress)
	s.progress = merged
	s.mu.Unlock()

	s.publish(NewProgressChangedEvent(name, progress, previous, merged))
	s.save()
	return merged
}

// KnownNodes returns a copy of the node roster.
func (s *Store) KnownNodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.nodes))
	copy(result, s.nodes)
	return result
}

// SetKnownNodes replaces the node roster.
func (s *Store) SetKnownNodes(nodes []string) {
	nodesCopy := make([]string, len(nodes))
	copy(nodesCopy, nodes)

	s.mu.Lock()
	s.nodes = nodesCopy
	s.mu.Unlock()

	s.publish(NewNodesChangedEvent(nodesCopy))
}

// Transport returns the command channel, or nil when disconnected.
func (s *Store) Transport() Sender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport
}

// SetTransport installs the command channel. Pass nil on disconnect.
func (s *Store) SetTransport(t Sender) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()

	s.publish(NewTransportChangedEvent(t != nil))
}

// Snapshot returns the persistable part of the Store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]models.FileEntry, len(s.files))
	copy(files, s.files)
	return Snapshot{Files: files, FilesInProgress: s.progress}
}

func (s *Store) publish(e events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(e)
	}
}

func (s *Store) save() {
	if s.persist == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.persist.Save(constants.SessionKey, s.Snapshot()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist session snapshot")
	}
}
