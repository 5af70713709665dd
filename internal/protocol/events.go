// Package protocol implements the wire formats shared with the remote node:
// the inbound push envelope and the outbound command envelope.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Push event kinds. The strings are part of the wire contract.
const (
	KindProgress   = "progress"
	KindUploaded   = "uploaded"
	KindFileUpdate = "file_update"
	KindState      = "state"
)

// Event is a decoded push message. The set of implementations is closed;
// kinds this client does not understand decode to UnknownEvent.
type Event interface {
	Kind() string
	isEvent()
}

// ProgressEvent reports how far a transfer has got (0-100).
type ProgressEvent struct {
	Name     string
	Progress float64
}

// UploadedEvent reports that a transfer finished on the node.
type UploadedEvent struct {
	Name string
	Size int64
}

// FileUpdateEvent reports that something changed on the node's filesystem.
// The payload is not interpreted.
type FileUpdateEvent struct {
	Data json.RawMessage
}

// StateEvent carries the node roster.
type StateEvent struct {
	KnownNodes []string
}

// UnknownEvent is any kind newer than this client.
type UnknownEvent struct {
	RawKind string
	Data    json.RawMessage
}

func (ProgressEvent) Kind() string   { return KindProgress }
func (UploadedEvent) Kind() string   { return KindUploaded }
func (FileUpdateEvent) Kind() string { return KindFileUpdate }
func (StateEvent) Kind() string      { return KindState }
func (e UnknownEvent) Kind() string  { return e.RawKind }

func (ProgressEvent) isEvent()   {}
func (UploadedEvent) isEvent()   {}
func (FileUpdateEvent) isEvent() {}
func (StateEvent) isEvent()      {}
func (UnknownEvent) isEvent()    {}

// MalformedEventError reports a push payload that could not be decoded.
type MalformedEventError struct {
	Kind   string // empty when the envelope itself was bad
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	msg := "malformed push event"
	if e.Kind != "" {
		msg += fmt.Sprintf(" (kind %q)", e.Kind)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

type envelope struct {
	Kind *string         `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type progressData struct {
	Name     *string  `json:"name"`
	Progress *float64 `json:"progress"`
}

type stateData struct {
	KnownNodes *[]string `json:"known_nodes"`
}

// DecodeEvent parses a text push frame. It returns *MalformedEventError for
// invalid JSON, a missing kind, or a progress or state event whose required
// fields are missing or mistyped.
func DecodeEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &MalformedEventError{Reason: "invalid JSON", Err: err}
	}
	if env.Kind == nil || *env.Kind == "" {
		return nil, &MalformedEventError{Reason: "missing kind"}
	}

	kind := *env.Kind
	switch kind {
	case KindProgress:
		var d progressData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, &MalformedEventError{Kind: kind, Reason: "invalid data", Err: err}
		}
		if d.Name == nil {
			return nil, &MalformedEventError{Kind: kind, Reason: "missing name"}
		}
		if d.Progress == nil {
			return nil, &MalformedEventError{Kind: kind, Reason: "missing progress"}
		}
		return ProgressEvent{Name: *d.Name, Progress: *d.Progress}, nil

	case KindUploaded:
		return decodeUploaded(env.Data), nil

	case KindFileUpdate:
		return FileUpdateEvent{Data: env.Data}, nil

	case KindState:
		var d stateData
		if err := decodeData(env.Data, &d); err != nil {
			return nil, &MalformedEventError{Kind: kind, Reason: "invalid data", Err: err}
		}
		if d.KnownNodes == nil {
			return nil, &MalformedEventError{Kind: kind, Reason: "missing known_nodes"}
		}
		return StateEvent{KnownNodes: *d.KnownNodes}, nil

	default:
		return UnknownEvent{RawKind: kind, Data: env.Data}, nil
	}
}

// decodeUploaded reads name and size when they are present and well typed.
// An uploaded notice is never malformed; the kind alone is the signal.
func decodeUploaded(data json.RawMessage) UploadedEvent {
	var e UploadedEvent
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return e
	}
	if raw, ok := fields["name"]; ok {
		_ = json.Unmarshal(raw, &e.Name)
	}
	if raw, ok := fields["size"]; ok {
		var size int64
		if json.Unmarshal(raw, &size) == nil {
			e.Size = size
		}
	}
	return e
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(data, v)
}

// EncodeEvent builds a push frame. The node side owns these frames; the
// encoder exists for test servers.
func EncodeEvent(e Event) ([]byte, error) {
	var data interface{}
	switch ev := e.(type) {
	case ProgressEvent:
		data = map[string]interface{}{"name": ev.Name, "progress": ev.Progress}
	case UploadedEvent:
		data = map[string]interface{}{"name": ev.Name, "size": ev.Size}
	case FileUpdateEvent:
		data = ev.Data
	case StateEvent:
		nodes := ev.KnownNodes
		if nodes == nil {
			nodes = []string{}
		}
		data = map[string]interface{}{"known_nodes": nodes}
	case UnknownEvent:
		data = ev.Data
	default:
		return nil, fmt.Errorf("unsupported event type %T", e)
	}
	return json.Marshal(map[string]interface{}{"kind": e.Kind(), "data": data})
}
