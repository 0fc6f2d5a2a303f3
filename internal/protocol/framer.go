package protocol

import "strings"

// Framer splits the raw serial byte stream into newline-terminated lines.
// Partial reads are carried over in an internal buffer, so no bytes are
// lost between calls. The framer knows nothing about the transport.
type Framer struct {
	buffer strings.Builder
}

// NewFramer creates an empty framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends raw bytes and returns every complete line received so far.
// Lines are split on '\n', a trailing '\r' is stripped and empty lines are
// suppressed. Non-ASCII bytes are dropped, the stick only speaks ASCII.
func (f *Framer) Feed(p []byte) []string {
	for _, b := range p {
		if b < 0x80 {
			f.buffer.WriteByte(b)
		}
	}

	data := f.buffer.String()
	if !strings.Contains(data, "\n") {
		return nil
	}

	var lines []string
	for {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(data[:idx])
		data = data[idx+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}

	f.buffer.Reset()
	f.buffer.WriteString(data)

	return lines
}

// Pending returns the number of buffered bytes not yet forming a line.
func (f *Framer) Pending() int {
	return f.buffer.Len()
}
