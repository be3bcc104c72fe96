package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal prompts on a line-oriented reader and writer, normally stdin and
// stderr.
type Terminal struct {
	reader *bufio.Reader
	w      io.Writer

	label   lipgloss.Style
	hint    lipgloss.Style
	problem lipgloss.Style
}

// NewTerminal returns a Terminal reading r and writing w. Styling is
// dropped automatically when w is not a terminal.
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	re := lipgloss.NewRenderer(w)
	return &Terminal{
		reader:  bufio.NewReader(r),
		w:       w,
		label:   re.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		hint:    re.NewStyle().Foreground(lipgloss.Color("#888888")),
		problem: re.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	}
}

func (t *Terminal) Ask(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if q.Problem != "" {
		fmt.Fprintln(t.w, t.problem.Render(q.Problem))
	}
	if len(q.Options) > 0 {
		return t.choose(q)
	}

	text := t.label.Render(q.Text)
	if q.HasDefault {
		text += " " + t.hint.Render("["+q.Default+"]")
	}
	fmt.Fprintf(t.w, "%s ", text)
	return t.readLine()
}

// choose accepts either the option number or the option itself.
func (t *Terminal) choose(q Question) (string, error) {
	fmt.Fprintf(t.w, "%s\n", t.label.Render(q.Text))
	for i, opt := range q.Options {
		fmt.Fprintf(t.w, "  %d) %s\n", i+1, opt)
	}
	hint := fmt.Sprintf("Enter number [1-%d]", len(q.Options))
	if q.HasDefault {
		hint += " (default " + q.Default + ")"
	}
	fmt.Fprintf(t.w, "%s: ", t.hint.Render(hint))

	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1], nil
	}
	return line, nil
}

// Select presents a numbered list and returns the selected index. Invalid
// input is re-asked until a valid number is entered or input ends.
func (t *Terminal) Select(ctx context.Context, title string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("nothing to select from")
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprintf(t.w, "\n%s\n", t.label.Render(title))
		for i, item := range items {
			fmt.Fprintf(t.w, "  %d) %s\n", i+1, item)
		}
		fmt.Fprintf(t.w, "%s: ", t.hint.Render(fmt.Sprintf("Enter number [1-%d]", len(items))))

		line, err := t.readLine()
		if err != nil {
			return 0, err
		}
		num, err := strconv.Atoi(line)
		if err == nil && num >= 1 && num <= len(items) {
			return num - 1, nil
		}
		fmt.Fprintln(t.w, t.problem.Render(fmt.Sprintf("invalid selection %q: choose 1-%d", line, len(items))))
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", ErrCancelled
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading input: %w", err)
		}
	}
	return strings.TrimSpace(line), nil
}
