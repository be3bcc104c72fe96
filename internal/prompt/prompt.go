package prompt

import (
	"context"
	"errors"
)

// ErrCancelled is returned when input ends before a question is answered.
var ErrCancelled = errors.New("prompt cancelled")

// Question describes one answer request.
type Question struct {
	Name string
	Text string
	// Default is shown and returned for an empty response when HasDefault.
	Default    string
	HasDefault bool
	// Options turns the question into a numbered choice.
	Options []string
	// Problem explains why the previous response was rejected.
	Problem string
}

// Prompter is a blocking request/response input provider.
type Prompter interface {
	// Ask returns the raw response to q. Validation is the caller's job;
	// it re-asks with Problem set when the response is rejected.
	Ask(ctx context.Context, q Question) (string, error)
	// Select returns the index of the chosen item.
	Select(ctx context.Context, title string, items []string) (int, error)
}

// Scripted replays canned responses. It records every question asked.
type Scripted struct {
	Answers    []string
	Selections []int

	Asked    []Question
	Selected []string
}

func (s *Scripted) Ask(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.Asked = append(s.Asked, q)
	if len(s.Answers) == 0 {
		return "", ErrCancelled
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}

func (s *Scripted) Select(ctx context.Context, title string, items []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.Selected = append(s.Selected, title)
	if len(s.Selections) == 0 {
		return 0, ErrCancelled
	}
	i := s.Selections[0]
	s.Selections = s.Selections[1:]
	return i, nil
}
