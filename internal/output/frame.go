// Package output defines the frames a submission produces and renders them for
// line-oriented transports.
//
// A Frame is a payload tagged with a media type. Frames are handed to an Emit
// sink as soon as they are produced; the kernel never buffers or reorders them
// and never interprets the media type beyond tagging.
package output

import (
	"fmt"
	"strings"
)

// MediaType identifies how a frame's payload should be rendered.
type MediaType string

const (
	// MediaText is plain command output. Payload is a string.
	MediaText MediaType = "text/plain"
	// MediaCSV is a table whose first row is the header. Payload is [][]string.
	MediaCSV MediaType = "text/csv"
)

// Frame is one unit of streamed output.
type Frame struct {
	MediaType MediaType
	Payload   any
}

// Text creates a plain text frame.
func Text(s string) Frame {
	return Frame{MediaType: MediaText, Payload: s}
}

// Table creates a CSV frame; rows[0] is the header.
func Table(rows [][]string) Frame {
	return Frame{MediaType: MediaCSV, Payload: rows}
}

// Typed creates a frame with an arbitrary media type.
func Typed(mediaType MediaType, payload any) Frame {
	return Frame{MediaType: mediaType, Payload: payload}
}

// IsText reports whether the frame carries plain text.
func (f Frame) IsText() bool {
	return f.MediaType == MediaText || f.MediaType == ""
}

// String returns the textual payload, or a short description for typed payloads.
func (f Frame) String() string {
	switch p := f.Payload.(type) {
	case string:
		return p
	case [][]string:
		lines := make([]string, len(p))
		for i, row := range p {
			lines[i] = strings.Join(row, ",")
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%v", p)
	}
}

// Emit receives frames in production order.
type Emit func(Frame)

// Discard is an Emit that drops every frame.
func Discard(Frame) {}

// Collector accumulates frames, mostly for tests and the one-shot run command.
type Collector struct {
	Frames []Frame
}

// Emit appends f.
func (c *Collector) Emit(f Frame) {
	c.Frames = append(c.Frames, f)
}

// Texts returns the payloads of all text frames.
func (c *Collector) Texts() []string {
	var out []string
	for _, f := range c.Frames {
		if f.IsText() {
			out = append(out, f.String())
		}
	}
	return out
}

// Joined concatenates all text payloads.
func (c *Collector) Joined() string {
	return strings.Join(c.Texts(), "")
}
