package transcript

import (
	"sync"
	"time"
)

// Conversation owns the ordered message history of one chat. It is safe for
// concurrent use: the stream session grows the live assistant message while
// other goroutines snapshot the history.
type Conversation struct {
	ID        string
	StartedAt time.Time
	Agent     string
	Model     string

	mu       sync.Mutex
	messages []*Message
}

// NewConversation starts an empty conversation.
func NewConversation(agent, model string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewID(now),
		StartedAt: now,
		Agent:     agent,
		Model:     model,
	}
}

// Append adds a message with a fresh ID and returns a copy of it.
func (c *Conversation) Append(role, content string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	msg := &Message{
		ID:        NewID(now),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	c.messages = append(c.messages, msg)
	return *msg
}

// SetContent replaces the content of the message with the given id. The
// stream session uses it to grow the live assistant message.
func (c *Conversation) SetContent(id, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The live message is almost always the last one.
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			c.messages[i].Content = content
			return
		}
	}
}

// Content returns the content of the message with the given id.
func (c *Conversation) Content(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			return c.messages[i].Content
		}
	}
	return ""
}

// Messages returns a snapshot copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
