package materialize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/logging"
	"github.com/igr88/archetect/internal/platform"
	"github.com/igr88/archetect/internal/prompt"
	"github.com/igr88/archetect/internal/userdata"
)

// Policy decides what happens to a destination file that already exists
// with different content.
type Policy string

const (
	Overwrite Policy = "overwrite"
	Skip      Policy = "skip"
	Ask       Policy = "prompt"
	Conflict  Policy = "conflict"
)

// ConflictSuffix is appended to the path a conflicting file is written to.
const ConflictSuffix = ".conflict"

// ParsePolicy parses a policy name. An empty name is Overwrite.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return Overwrite, nil
	case Overwrite, Skip, Ask, Conflict:
		return Policy(s), nil
	case "skip-if-exists":
		return Skip, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q (want overwrite, skip, prompt, or conflict)", s)
}

// Outcome is what happened to one planned file.
type Outcome string

const (
	Created     Outcome = "created"
	Overwritten Outcome = "overwritten"
	Unchanged   Outcome = "unchanged"
	Preserved   Outcome = "preserved"
	Conflicted  Outcome = "conflict"
	// Differs is reported by a dry run that would have asked.
	Differs Outcome = "differs"
)

// Result records the outcome for one destination path.
type Result struct {
	Path    string
	Outcome Outcome
}

// Report lists the outcome of every planned file in commit order.
type Report struct {
	Results []Result
	DryRun  bool
}

// Count returns how many files had outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Modified returns how many files were, or in a dry run would be, written.
func (r *Report) Modified() int {
	return r.Count(Created) + r.Count(Overwritten) + r.Count(Conflicted)
}

// Writer commits plans to a destination filesystem.
type Writer struct {
	Dest   billy.Filesystem
	Policy Policy
	// Prompter answers the Ask policy. Without one Ask behaves like
	// Overwrite.
	Prompter prompt.Prompter
	DryRun   bool
	Logger   *slog.Logger
}

// Commit writes plan in order. It stops at the first failure; files
// committed before it remain.
func (w *Writer) Commit(ctx context.Context, plan *Plan) (*Report, error) {
	log := logging.OrDiscard(w.Logger)
	report := &Report{DryRun: w.DryRun}

	for _, e := range plan.Entries() {
		if err := ctx.Err(); err != nil {
			return report, apperr.Wrap(apperr.KindCancelled, "write", e.Path, err)
		}

		if e.Dir {
			if w.DryRun {
				continue
			}
			if err := w.Dest.MkdirAll(e.Path, dirMode(e.Mode)); err != nil {
				return report, apperr.Wrap(apperr.KindMaterialization, "create directory", e.Path, err)
			}
			continue
		}

		outcome, err := w.commitFile(ctx, e)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, Result{Path: e.Path, Outcome: outcome})

		attrs := []any{"path", e.Path}
		if w.DryRun {
			attrs = append(attrs, "dry_run", true)
		}
		switch outcome {
		case Created:
			log.Info("Creating", attrs...)
		case Overwritten:
			log.Info("Overwriting", attrs...)
		case Preserved:
			log.Info("Preserving", attrs...)
		case Conflicted:
			log.Warn("Conflict", append(attrs, "written_to", e.Path+ConflictSuffix)...)
		case Differs:
			log.Info("Differs", attrs...)
		default:
			log.Debug("Unchanged", attrs...)
		}
	}
	return report, nil
}

func (w *Writer) commitFile(ctx context.Context, e Entry) (Outcome, error) {
	existing, err := util.ReadFile(w.Dest, e.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Created, w.write(e.Path, e.Data, e.Mode)
	case err != nil:
		return "", apperr.Wrap(apperr.KindMaterialization, "read existing file", e.Path, err)
	case bytes.Equal(existing, e.Data):
		return Unchanged, nil
	}

	policy := w.Policy
	if policy == Ask {
		if w.DryRun {
			return Differs, nil
		}
		if w.Prompter == nil {
			policy = Overwrite
		} else {
			policy, err = w.ask(ctx, e.Path)
			if err != nil {
				return "", err
			}
		}
	}

	switch policy {
	case Skip:
		return Preserved, nil
	case Conflict:
		return Conflicted, w.write(e.Path+ConflictSuffix, e.Data, e.Mode)
	default:
		return Overwritten, w.write(e.Path, e.Data, e.Mode)
	}
}

func (w *Writer) ask(ctx context.Context, rel string) (Policy, error) {
	q := prompt.Question{
		Name:       rel,
		Text:       rel + " already exists and differs.",
		Options:    []string{"overwrite", "keep", "conflict"},
		Default:    "keep",
		HasDefault: true,
	}
	for {
		resp, err := w.Prompter.Ask(ctx, q)
		if err != nil {
			return "", apperr.Wrap(apperr.KindCancelled, "prompt", rel, err)
		}
		switch resp {
		case "overwrite":
			return Overwrite, nil
		case "", "keep":
			return Skip, nil
		case "conflict":
			return Conflict, nil
		}
		q.Problem = fmt.Sprintf("%q is not one of the choices", resp)
	}
}

// write stages data next to rel and renames it into place.
func (w *Writer) write(rel string, data []byte, mode os.FileMode) error {
	if w.DryRun {
		return nil
	}
	dir := path.Dir(rel)
	if err := w.Dest.MkdirAll(dir, userdata.DirPermNormal); err != nil {
		return apperr.Wrap(apperr.KindMaterialization, "create directory", dir, err)
	}

	f, err := util.TempFile(w.Dest, dir, "."+path.Base(rel)+".tmp-")
	if err != nil {
		return apperr.Wrap(apperr.KindMaterialization, "write", rel, err)
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = w.Dest.Remove(tmp)
		return apperr.Wrap(apperr.KindMaterialization, "write", rel, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	if mode == 0 {
		mode = userdata.FilePermNormal
	}
	if err := platform.Chmod(w.Dest, tmp, mode); err != nil {
		return fail(err)
	}
	if err := w.Dest.Rename(tmp, rel); err != nil {
		return fail(err)
	}
	return nil
}

func dirMode(m os.FileMode) os.FileMode {
	if m == 0 {
		return userdata.DirPermNormal
	}
	return m
}
