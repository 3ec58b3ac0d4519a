package relay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"TaskChat/internal/gate"
	"TaskChat/internal/prose"
	"TaskChat/internal/stream"
	"TaskChat/internal/transcript"
)

// session consumes one live token stream and applies its events to the
// conversation. Event routing happens under mu so a concurrent cancel
// observes a consistent state; once cancelled, no event mutates anything.
type session struct {
	body   io.ReadCloser
	framer *stream.Framer
	conv   *transcript.Conversation
	msgID  string
	gate   *gate.Gate
	logger *slog.Logger

	onToken    func(delta string)
	onToolCall func(call gate.PendingToolCall)
	onNotice   func(text string)

	mu        sync.Mutex
	text      string
	tokens    int64
	toolCalls int64
	sawToken  bool
	sawCall   bool
	sawEnd    bool
	cancelled bool
}

func newSession(body io.ReadCloser, conv *transcript.Conversation, msgID string, g *gate.Gate, logger *slog.Logger) *session {
	return &session{
		body:   body,
		framer: stream.NewFramer(),
		conv:   conv,
		msgID:  msgID,
		gate:   g,
		logger: logger,
	}
}

// run reads the stream to completion. It returns nil once the end marker
// arrives, ErrCancelled if the session was cancelled, and a read error
// otherwise. A stream that closes without the end marker is an error; the
// caller decides whether the partial output is worth keeping.
func (s *session) run() error {
	defer s.body.Close()

	buf := make([]byte, 4096)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			for _, line := range s.framer.Feed(buf[:n]) {
				s.route(line)
			}
		}
		if s.ended() {
			return nil
		}
		if err != nil {
			if s.isCancelled() {
				return ErrCancelled
			}
			if errors.Is(err, io.EOF) {
				s.flush()
				if s.ended() {
					return nil
				}
				return fmt.Errorf("stream closed before end marker: %w", io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}

// flush routes whatever the framer is still holding. Some servers close
// the connection right after the end marker without a trailing newline.
func (s *session) flush() {
	if line, ok := s.framer.Flush(); ok {
		s.route(line)
	}
}

func (s *session) route(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.sawEnd {
		return
	}

	ev, ok := stream.ParseLine(line)
	if !ok {
		return
	}

	switch ev.Kind {
	case stream.KindToken:
		joined := prose.Join(s.text, ev.Text)
		delta := joined[len(s.text):]
		s.text = joined
		s.conv.SetContent(s.msgID, joined)
		s.tokens++
		s.sawToken = true
		if s.onToken != nil {
			s.onToken(delta)
		}

	case stream.KindToolCall:
		pending, err := s.gate.Offer(ev.Call, s.msgID)
		if err != nil {
			s.logger.Warn("tool call rejected", "tool", ev.Call.Name, "error", err)
			notice := fmt.Sprintf("tool call %s dropped: another call is awaiting confirmation", ev.Call.Name)
			s.conv.Append(transcript.RoleSystem, notice)
			if s.onNotice != nil {
				s.onNotice(notice)
			}
			return
		}
		s.conv.Append(transcript.RoleSystem, "tool requested: "+ev.Call.Name)
		s.toolCalls++
		s.sawCall = true
		if s.onToolCall != nil {
			s.onToolCall(pending)
		}

	case stream.KindControl:
		if strings.Contains(ev.Text, stream.ErrorMarker) {
			s.logger.Warn("stream reported an error", "frame", ev.Text)
			if s.onNotice != nil {
				s.onNotice("the stream reported an error: " + ev.Text)
			}
			return
		}
		s.logger.Debug("dropping control frame", "frame", ev.Text)

	case stream.KindEnd:
		s.sawEnd = true
	}
}

// cancel stops the session. Closing the body unblocks the read loop.
func (s *session) cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()
	s.body.Close()
}

// usable reports whether the stream produced anything worth keeping: a
// token, a tool call, or a clean end. Failures before that point fall
// back to the non-streaming endpoint.
func (s *session) usable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawToken || s.sawCall || s.sawEnd
}

func (s *session) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawEnd
}

func (s *session) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *session) counts() (tokens, toolCalls int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.toolCalls
}
