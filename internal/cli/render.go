package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/igr88/archetect/internal/answers"
	"github.com/igr88/archetect/internal/cache"
	"github.com/igr88/archetect/internal/config"
	"github.com/igr88/archetect/internal/materialize"
	"github.com/igr88/archetect/internal/prompt"
	"github.com/igr88/archetect/internal/scaffold"
	"github.com/igr88/archetect/internal/source"
	"github.com/igr88/archetect/internal/switches"
)

// renderOptions holds the flags shared by render and catalog.
type renderOptions struct {
	answers     []string
	answerFiles []string
	switches    []string
	offline     bool
	headless    bool
	conflict    string
	dryRun      bool
}

func (o *renderOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVarP(&o.answers, "answer", "a", nil, "Supply an answer as name=value (repeatable)")
	f.StringArrayVarP(&o.answerFiles, "answer-file", "A", nil, "Read answers from a YAML file (repeatable, later files win)")
	f.StringArrayVarP(&o.switches, "switch", "s", nil, "Enable a switch (repeatable)")
	f.BoolVar(&o.offline, "offline", false, "Only use sources already in the cache")
	f.BoolVar(&o.headless, "headless", false, "Never prompt; fail when a required answer is missing")
	f.StringVar(&o.conflict, "conflict", "", "Existing files that differ: overwrite, skip, prompt, or conflict")
	f.BoolVar(&o.dryRun, "dry-run", false, "Print what would be written without writing anything")
}

var renderOpts renderOptions

func init() {
	renderOpts.bind(renderCmd)
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <source> [destination]",
	Short: "Render an archetype into a directory",
	Long: `Render an archetype into destination (default: the current directory).

The source is a local path or a git URL, optionally pinned with #ref:

  archetect render ./archetypes/service my-service
  archetect render git@github.com:org/service-archetype.git#v2 my-service -a name=billing
  archetect render https://github.com/org/archetypes.git -A answers.yaml --headless

Answers given with -a win over answer files, which win over manifest defaults.
Anything still missing is asked for unless --headless is set.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := "."
		if len(args) == 2 {
			dest = args[1]
		}
		ss, err := newSession(settings(), &renderOpts, os.Stdin, cmd.OutOrStdout(), os.Stderr)
		if err != nil {
			return err
		}
		defer ss.store.Close()
		return ss.render(cmd.Context(), args[0], dest)
	},
}

// session wires the components a single render needs.
type session struct {
	settings config.Settings
	opts     *renderOptions
	log      *slog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	store    *cache.Store
	prompter prompt.Prompter
}

func newSession(s config.Settings, o *renderOptions, in io.Reader, out, errOut io.Writer) (*session, error) {
	log := newLogger(errOut)
	store, err := newStore(s, log)
	if err != nil {
		return nil, err
	}
	ss := &session{settings: s, opts: o, log: log, in: in, out: out, errOut: errOut, store: store}
	if !ss.headless() {
		ss.prompter = prompt.NewTerminal(in, errOut)
	}
	return ss, nil
}

func (ss *session) offline() bool  { return ss.settings.Offline || ss.opts.offline }
func (ss *session) headless() bool { return ss.settings.Headless || ss.opts.headless }

func (ss *session) resolver() *source.Resolver {
	return &source.Resolver{Cache: ss.store, Offline: ss.offline(), Logger: ss.log}
}

func (ss *session) scaffolder() (*scaffold.Scaffolder, error) {
	fromCLI, err := answers.ParseAssignments(ss.opts.answers)
	if err != nil {
		return nil, err
	}
	fromFiles, err := answers.LoadFiles(ss.opts.answerFiles...)
	if err != nil {
		return nil, err
	}

	names := append(append([]string(nil), ss.settings.Switches...), ss.opts.switches...)
	sw := switches.New(names...)

	return &scaffold.Scaffolder{
		Sources: ss.resolver(),
		Answers: &answers.Resolver{
			CLI:      fromCLI,
			File:     answers.Merge(ss.settings.Answers, fromFiles),
			Prompter: ss.prompter,
			Switches: sw,
			Logger:   ss.log,
		},
		Switches: sw,
		Version:  buildVersion,
		Logger:   ss.log,
	}, nil
}

// policy picks the conflict policy: the flag, then config, then prompt
// when someone can answer and overwrite otherwise.
func (ss *session) policy() (materialize.Policy, error) {
	name := ss.opts.conflict
	if name == "" {
		name = ss.settings.Conflict
	}
	if name == "" {
		if ss.prompter != nil {
			return materialize.Ask, nil
		}
		return materialize.Overwrite, nil
	}
	return materialize.ParsePolicy(name)
}

func (ss *session) writer(dest string) (*materialize.Writer, error) {
	policy, err := ss.policy()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolving destination %s: %w", dest, err)
	}
	return &materialize.Writer{
		Dest:     osfs.New(abs),
		Policy:   policy,
		Prompter: ss.prompter,
		DryRun:   ss.opts.dryRun,
		Logger:   ss.log,
	}, nil
}

func (ss *session) render(ctx context.Context, raw, dest string) error {
	sc, err := ss.scaffolder()
	if err != nil {
		return err
	}
	res, err := sc.Plan(ctx, raw)
	if err != nil {
		return err
	}
	return ss.commit(ctx, res, dest)
}

func (ss *session) commit(ctx context.Context, res *scaffold.Result, dest string) error {
	w, err := ss.writer(dest)
	if err != nil {
		return err
	}
	report, err := w.Commit(ctx, res.Plan)
	if report != nil {
		printReport(ss.out, res, report, dest)
	}
	return err
}

func printReport(w io.Writer, res *scaffold.Result, report *materialize.Report, dest string) {
	if report.DryRun {
		for _, r := range report.Results {
			fmt.Fprintf(w, "%-12s %s\n", r.Outcome, filepath.Join(dest, filepath.FromSlash(r.Path)))
		}
		fmt.Fprintf(w, "Dry run: %d of %d files would be written.\n", report.Modified(), len(report.Results))
		return
	}

	name := dest
	if res.Archetype != nil && res.Archetype.Name != "" {
		name = res.Archetype.Name
	}
	fmt.Fprintf(w, "Rendered %s into %s: %d created, %d overwritten, %d unchanged, %d preserved",
		name, dest,
		report.Count(materialize.Created),
		report.Count(materialize.Overwritten),
		report.Count(materialize.Unchanged),
		report.Count(materialize.Preserved))
	if n := report.Count(materialize.Conflicted); n > 0 {
		fmt.Fprintf(w, ", %d conflicts (see *%s)", n, materialize.ConflictSuffix)
	}
	fmt.Fprintln(w)
	if len(res.Rendered) > 1 {
		for _, r := range res.Rendered[1:] {
			fmt.Fprintf(w, "  composed %s into %s\n", r.Name, r.Destination)
		}
	}
}
