// Package reply folds streamed completion fragments into the text shown to
// the user, hiding the model's reasoning segment.
package reply

import "strings"

const (
	OpenMarker  = "<think>"
	CloseMarker = "</think>"
	Placeholder = "Verona is thinking…"
)

type State int

const (
	Start State = iota
	ReasoningOpen
	ReasoningClosed
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case ReasoningOpen:
		return "reasoning_open"
	case ReasoningClosed:
		return "reasoning_closed"
	}
	return "unknown"
}

// Assembler accumulates the fragments of one reply. It tracks the marker
// state incrementally, so each fragment only rescans the bytes that could
// complete a marker. It is not safe for concurrent use.
type Assembler struct {
	raw   strings.Builder
	state State

	// closeFrom is where the next search for CloseMarker starts while the
	// reasoning segment is open.
	closeFrom int
	// bodyStart is the offset just past CloseMarker once closed.
	bodyStart int
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed appends fragment and returns the updated visible text.
func (a *Assembler) Feed(fragment string) string {
	prev := a.raw.Len()
	a.raw.WriteString(fragment)
	a.transition(prev)
	return a.Visible()
}

func (a *Assembler) transition(prev int) {
	raw := a.raw.String()

	switch a.state {
	case Start:
		// raw[:prev] held no opening marker, so a new one must end past prev.
		// A closing marker only counts once reasoning has been opened.
		open := indexFrom(raw, OpenMarker, prev-len(OpenMarker)+1)
		if open < 0 {
			return
		}
		a.state = ReasoningOpen
		a.closeFrom = open + len(OpenMarker)
		fallthrough

	case ReasoningOpen:
		cl := indexFrom(raw, CloseMarker, a.closeFrom)
		if cl < 0 {
			a.closeFrom = max(a.closeFrom, len(raw)-len(CloseMarker)+1)
			return
		}
		a.state = ReasoningClosed
		a.bodyStart = cl + len(CloseMarker)
	}
}

func (a *Assembler) State() State {
	return a.state
}

// Raw returns every byte received so far, reasoning included.
func (a *Assembler) Raw() string {
	return a.raw.String()
}

// Visible is the text the UI may render right now.
func (a *Assembler) Visible() string {
	switch a.state {
	case ReasoningOpen:
		return Placeholder
	case ReasoningClosed:
		return strings.TrimSpace(a.raw.String()[a.bodyStart:])
	}
	return a.raw.String()
}

// Final is the reply to commit to the conversation. Once closed it is the
// visible body, later marker literals included. It never returns the
// placeholder: a reasoning segment that was never closed is kept with its
// markers stripped.
func (a *Assembler) Final() string {
	switch a.state {
	case ReasoningOpen:
		return strings.TrimSpace(stripMarkers(a.raw.String()))
	case ReasoningClosed:
		return a.Visible()
	}
	return strings.TrimSpace(a.raw.String())
}

// Finalize treats a complete reply as a one-fragment stream.
func Finalize(text string) string {
	a := NewAssembler()
	a.Feed(text)
	return a.Final()
}

func stripMarkers(s string) string {
	s = strings.ReplaceAll(s, OpenMarker, "")
	return strings.ReplaceAll(s, CloseMarker, "")
}

func indexFrom(s, substr string, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], substr)
	if i < 0 {
		return -1
	}
	return from + i
}
