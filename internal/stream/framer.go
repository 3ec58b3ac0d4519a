package stream

import "bytes"

// Framer splits a byte stream into lines regardless of how the transport
// chunks it. Incomplete trailing lines are carried over to the next Feed.
type Framer struct {
	carry []byte
}

// NewFramer creates a Framer with an empty carry-over buffer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the carry-over buffer and returns every complete
// line it now holds. Lines are terminated by \n; a preceding \r is stripped.
// The trailing partial line stays buffered until a later Feed completes it
// or Flush drains it.
func (f *Framer) Feed(chunk []byte) []string {
	f.carry = append(f.carry, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(f.carry, '\n')
		if i < 0 {
			break
		}
		line := f.carry[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		f.carry = f.carry[i+1:]
	}
	return lines
}

// Flush returns the buffered partial line, if any, and resets the buffer.
// Called when the stream ends so a final unterminated line is not lost.
func (f *Framer) Flush() (string, bool) {
	if len(f.carry) == 0 {
		return "", false
	}
	line := string(f.carry)
	f.carry = nil
	return line, true
}
