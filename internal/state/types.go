// Package state holds the client's current view of the remote node: the file
// listing, in-flight transfer progress, the node roster and the command
// transport. Changes are published on the event bus so any frontend can
// follow them.
package state

import (
	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/models"
)

// FilesChangedEvent is published when the listing is replaced.
type FilesChangedEvent struct {
	events.BaseEvent
	Files []models.FileEntry
}

// ProgressChangedEvent is published for every merged progress update.
type ProgressChangedEvent struct {
	events.BaseEvent
	Name     string
	Progress int
	Previous int  // -1 when Name was not tracked before
	Complete bool // Progress reached 100
	Map      ProgressMap
}

// NodesChangedEvent is published when the roster is replaced.
type NodesChangedEvent struct {
	events.BaseEvent
	Nodes []string
}

// TransportChangedEvent is published when the command channel appears or
// goes away.
type TransportChangedEvent struct {
	events.BaseEvent
	Connected bool
}

// NewFilesChangedEvent creates a FilesChangedEvent.
func NewFilesChangedEvent(files []models.FileEntry) *FilesChangedEvent {
	return &FilesChangedEvent{
		BaseEvent: events.NewBase(events.EventFilesChanged),
		Files:     files,
	}
}

// NewProgressChangedEvent creates a ProgressChangedEvent.
func NewProgressChangedEvent(name string, progress, previous int, m ProgressMap) *ProgressChangedEvent {
	return &ProgressChangedEvent{
		BaseEvent: events.NewBase(events.EventProgressChanged),
		Name:      name,
		Progress:  progress,
		Previous:  previous,
		Complete:  IsComplete(progress),
		Map:       m,
	}
}

// NewNodesChangedEvent creates a NodesChangedEvent.
func NewNodesChangedEvent(nodes []string) *NodesChangedEvent {
	return &NodesChangedEvent{
		BaseEvent: events.NewBase(events.EventNodesChanged),
		Nodes:     nodes,
	}
}

// NewTransportChangedEvent creates a TransportChangedEvent.
func NewTransportChangedEvent(connected bool) *TransportChangedEvent {
	return &TransportChangedEvent{
		BaseEvent: events.NewBase(events.EventTransportChanged),
		Connected: connected,
	}
}
