package core

import (
	"context"
	"fmt"

	"github.com/kinofiles/kinosync/internal/events"
	"github.com/kinofiles/kinosync/internal/metrics"
	"github.com/kinofiles/kinosync/internal/models"
	"github.com/kinofiles/kinosync/internal/protocol"
)

const (
	commandCreateDir = "CreateDir"
	commandMove      = "Move"
)

// CreateFolder asks the node to create root/name.
//
// Checks run in order and the first failure is returned: a transport must be
// connected, name must be non-empty, and the user must confirm. On success
// onSuccess (if non-nil) runs right after the command is sent, without
// waiting for the node, and a refresh is scheduled after the refresh delay.
func (e *Engine) CreateFolder(ctx context.Context, root, name string, onSuccess func()) error {
	transport := e.store.Transport()
	if transport == nil {
		return e.reject(commandCreateDir, ReasonNoTransport)
	}
	if name == "" {
		return e.reject(commandCreateDir, ReasonEmptyFolderName)
	}

	path := models.JoinPath(root, name)
	if !e.confirmer.Confirm(fmt.Sprintf("Are you sure you want to add %s?", name)) {
		metrics.RecordCommand(commandCreateDir, metrics.ResultDeclined)
		return ErrDeclined
	}

	cmd := protocol.CreateDir{Path: path}
	if err := e.send(ctx, transport, cmd); err != nil {
		return err
	}
	e.dispatched(cmd.Name(), "", path)

	if onSuccess != nil {
		onSuccess()
	}
	e.ScheduleRefresh(e.delay)
	return nil
}

// MoveFile asks the node to move source into the directory destination.
//
// Checks run in order and the first failure is returned: transport
// connected, source has a name, destination has a name, destination is a
// directory, source is not already in destination, source and destination
// differ, and the user confirms. On success a refresh is scheduled after the
// refresh delay.
func (e *Engine) MoveFile(ctx context.Context, source, destination models.FileEntry) error {
	transport := e.store.Transport()
	switch {
	case transport == nil:
		return e.reject(commandMove, ReasonNoTransport)
	case source.Name == "":
		return e.reject(commandMove, ReasonNoSourceName)
	case destination.Name == "":
		return e.reject(commandMove, ReasonNoDestinationName)
	case !destination.Dir:
		return e.reject(commandMove, ReasonDestinationNotDirectory)
	case models.ParentDir(source.Name) == destination.Name:
		return e.reject(commandMove, ReasonInPlaceMove)
	case source.Name == destination.Name:
		return e.reject(commandMove, ReasonSamePath)
	}

	prompt := fmt.Sprintf("Are you sure you want to move %s to %s?", source.Name, destination.Name)
	if !e.confirmer.Confirm(prompt) {
		metrics.RecordCommand(commandMove, metrics.ResultDeclined)
		return ErrDeclined
	}

	cmd := protocol.Move{SourcePath: source.Name, TargetPath: destination.Name}
	if err := e.send(ctx, transport, cmd); err != nil {
		return err
	}
	e.dispatched(cmd.Name(), source.Name, destination.Name)

	e.ScheduleRefresh(e.delay)
	return nil
}

func (e *Engine) reject(command string, reason Reason) error {
	metrics.RecordCommand(command, metrics.ResultRejected)
	e.logger.Debug().Str("command", command).Stringer("reason", reason).Msg("Command rejected")
	return &PreconditionError{Command: command, Reason: reason}
}

func (e *Engine) send(ctx context.Context, transport Sender, cmd protocol.Command) error {
	if err := transport.Send(ctx, cmd); err != nil {
		metrics.RecordCommand(cmd.Name(), metrics.ResultFailed)
		return fmt.Errorf("failed to send %s: %w", cmd.Name(), err)
	}
	return nil
}

func (e *Engine) dispatched(command, source, target string) {
	metrics.RecordCommand(command, metrics.ResultDispatched)
	e.logger.Info().Str("command", command).Str("source", source).Str("target", target).Msg("Command sent")
	e.publish(&events.CommandDispatchedEvent{
		BaseEvent: events.NewBase(events.EventCommandDispatched),
		Command:   command,
		Source:    source,
		Target:    target,
	})
}
