package core

import (
	"errors"
	"math"

	"github.com/kinofiles/kinosync/internal/metrics"
	"github.com/kinofiles/kinosync/internal/protocol"
	"github.com/kinofiles/kinosync/internal/state"
)

// FrameType distinguishes push-channel frames.
type FrameType int

const (
	TextFrame FrameType = iota + 1
	BinaryFrame
)

func (t FrameType) String() string {
	switch t {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// HandleMessage processes one push-channel frame. It never fails: frames
// that cannot be decoded are logged and dropped so one bad message cannot
// stop the channel.
func (e *Engine) HandleMessage(frameType FrameType, payload []byte) {
	if frameType != TextFrame {
		// Reserved for future binary framing.
		metrics.RecordBinaryFrame()
		e.logger.Debug().
			Str("frame", frameType.String()).
			Int("bytes", len(payload)).
			Msg("Ignoring non-text push frame")
		return
	}

	ev, err := protocol.DecodeEvent(payload)
	if err != nil {
		metrics.RecordMalformedEvent()
		logEvt := e.logger.Warn().Err(err)
		var me *protocol.MalformedEventError
		if errors.As(err, &me) && me.Kind != "" {
			logEvt = logEvt.Str("kind", me.Kind)
		}
		logEvt.Int("bytes", len(payload)).Msg("Dropping malformed push event")
		return
	}

	kind := ev.Kind()
	if _, ok := ev.(protocol.UnknownEvent); ok {
		kind = "unknown"
	}
	metrics.RecordEvent(kind)
	e.dispatch(ev)
}

func (e *Engine) dispatch(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.ProgressEvent:
		merged := e.store.UpdateProgress(ev.Name, percent(ev.Progress))
		metrics.SetTransfersInProgress(merged.InFlight())
		e.logger.Debug().Str("name", ev.Name).Float64("progress", ev.Progress).Msg("Transfer progress")
		if ev.Progress >= state.CompletePercent {
			e.TriggerRefresh()
		}

	case protocol.UploadedEvent:
		if ev.Name == "" {
			e.logger.Debug().Msg("Upload finished without a usable name or size")
		} else {
			e.logger.Info().Str("name", ev.Name).Int64("size", ev.Size).Msg("Upload finished")
		}
		e.TriggerRefresh()

	case protocol.FileUpdateEvent:
		e.TriggerRefresh()

	case protocol.StateEvent:
		e.store.SetKnownNodes(ev.KnownNodes)
		e.logger.Debug().Strs("nodes", ev.KnownNodes).Msg("Node roster updated")

	case protocol.UnknownEvent:
		e.logger.Debug().Str("kind", ev.RawKind).Msg("Ignoring push event of unknown kind")
	}
}

// percent converts a reported progress value to the stored integer form,
// clamped to 0-100. NaN is treated as 0.
func percent(p float64) int {
	switch {
	case math.IsNaN(p) || p <= 0:
		return 0
	case p >= state.CompletePercent:
		return state.CompletePercent
	default:
		return int(p)
	}
}
