package reply

import "strings"

type View struct {
	State   State
	Visible string
}

// Scan derives the view of a raw buffer from scratch. It is the reference
// for Assembler: for every prefix of a stream both agree.
func Scan(raw string) View {
	open := strings.Index(raw, OpenMarker)
	if open < 0 {
		return View{State: Start, Visible: raw}
	}

	rel := strings.Index(raw[open+len(OpenMarker):], CloseMarker)
	if rel < 0 {
		return View{State: ReasoningOpen, Visible: Placeholder}
	}
	return closedView(raw, open+len(OpenMarker)+rel)
}

func closedView(raw string, cl int) View {
	return View{State: ReasoningClosed, Visible: strings.TrimSpace(raw[cl+len(CloseMarker):])}
}
