package reply

import (
	"context"
	"errors"
	"io"
)

// FragmentSource yields the text fragments of one completion in order.
// Next returns io.EOF once the stream has ended.
type FragmentSource interface {
	Next(ctx context.Context) (string, error)
}

type Result struct {
	Final string
	Raw   string
	State State
}

// Collect drains src through a fresh Assembler. onVisible, when non-nil, is
// called each time the visible text changes. If src fails mid-stream the
// result computed from the fragments received so far is returned together
// with the error.
func Collect(ctx context.Context, src FragmentSource, onVisible func(string)) (Result, error) {
	a := NewAssembler()
	last := ""

	for {
		fragment, err := src.Next(ctx)
		if err != nil {
			res := Result{Final: a.Final(), Raw: a.Raw(), State: a.State()}
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, err
		}

		visible := a.Feed(fragment)
		if onVisible != nil && visible != last {
			onVisible(visible)
		}
		last = visible
	}
}

// SliceSource replays a fixed list of fragments.
type SliceSource struct {
	fragments []string
	pos       int
}

func Fragments(fragments ...string) *SliceSource {
	return &SliceSource{fragments: fragments}
}

func (s *SliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}
