package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is an outbound mutation for the remote node.
type Command interface {
	// Name is the tag used in the envelope ("CreateDir", "Move").
	Name() string
	isCommand()
}

// CreateDir asks the node to create a directory at Path (full path).
type CreateDir struct {
	Path string
}

// Move asks the node to move SourcePath into the directory TargetPath.
type Move struct {
	SourcePath string
	TargetPath string
}

func (CreateDir) Name() string { return "CreateDir" }
func (Move) Name() string      { return "Move" }

func (CreateDir) isCommand() {}
func (Move) isCommand()      {}

type createDirBody struct {
	Name string `json:"name"`
}

type moveBody struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
}

// EncodeCommand produces the tagged envelope the node consumes:
//
//	{"data":{"CreateDir":{"name":"/docs/notes"}}}
//	{"data":{"Move":{"source_path":"/a.txt","target_path":"/docs"}}}
func EncodeCommand(c Command) ([]byte, error) {
	var body interface{}
	switch cmd := c.(type) {
	case CreateDir:
		body = createDirBody{Name: cmd.Path}
	case Move:
		body = moveBody{SourcePath: cmd.SourcePath, TargetPath: cmd.TargetPath}
	default:
		return nil, fmt.Errorf("unsupported command type %T", c)
	}

	return json.Marshal(map[string]interface{}{
		"data": map[string]interface{}{c.Name(): body},
	})
}

// DecodeCommand parses a command envelope. Used by test nodes.
func DecodeCommand(payload []byte) (Command, error) {
	var env struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("invalid command envelope: %w", err)
	}
	if len(env.Data) != 1 {
		return nil, fmt.Errorf("command envelope must carry exactly one variant, got %d", len(env.Data))
	}

	for tag, raw := range env.Data {
		switch tag {
		case "CreateDir":
			var b createDirBody
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("invalid CreateDir body: %w", err)
			}
			return CreateDir{Path: b.Name}, nil
		case "Move":
			var b moveBody
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("invalid Move body: %w", err)
			}
			return Move{SourcePath: b.SourcePath, TargetPath: b.TargetPath}, nil
		default:
			return nil, fmt.Errorf("unknown command %q", tag)
		}
	}
	return nil, fmt.Errorf("empty command envelope")
}
