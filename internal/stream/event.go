package stream

import (
	"encoding/json"
	"strings"
)

const (
	// EndSentinel terminates a stream. It arrives on a line of its own.
	EndSentinel = "[[END]]"

	// ErrorMarker inside a control frame signals a server-side failure.
	ErrorMarker = "[ERROR]"
)

// Kind discriminates classified stream lines.
type Kind int

const (
	KindToken Kind = iota
	KindToolCall
	KindControl
	KindEnd
)

// ToolCall is an inline tool invocation request parsed from the stream.
type ToolCall struct {
	Name string
	Args map[string]interface{}
}

// Event is one classified stream line.
type Event struct {
	Kind Kind
	Text string   // token text for KindToken, raw line for KindControl
	Call ToolCall // populated for KindToolCall
}

// toolCallFrame mirrors the wire shape of inline tool-call lines.
type toolCallFrame struct {
	Type string          `json:"type"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ParseLine classifies one framed line. The boolean is false when the line
// carries nothing after prefix stripping and trimming. Classification never
// fails: lines that look like JSON but do not parse as a tool call come back
// as control frames.
func ParseLine(raw string) (Event, bool) {
	line := strings.TrimSpace(strings.TrimPrefix(raw, "data:"))
	if line == "" {
		return Event{}, false
	}

	if line == EndSentinel {
		return Event{Kind: KindEnd}, true
	}

	if line[0] == '{' || line[0] == '[' {
		var frame toolCallFrame
		if err := json.Unmarshal([]byte(line), &frame); err == nil && frame.Type == "toolcall" && frame.Name != "" {
			args := map[string]interface{}{}
			if len(frame.Args) > 0 {
				if err := json.Unmarshal(frame.Args, &args); err != nil {
					args = map[string]interface{}{}
				}
			}
			return Event{Kind: KindToolCall, Call: ToolCall{Name: frame.Name, Args: args}}, true
		}
		return Event{Kind: KindControl, Text: line}, true
	}

	return Event{Kind: KindToken, Text: line}, true
}
