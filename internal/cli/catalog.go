package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/igr88/archetect/internal/branding"
	"github.com/igr88/archetect/internal/catalog"
)

var (
	catalogOpts   renderOptions
	catalogSelect string
)

func init() {
	catalogOpts.bind(catalogCmd)
	catalogCmd.Flags().StringVar(&catalogSelect, "select", "", "Pick entries by position instead of prompting, e.g. 2/1")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [source] [destination]",
	Short: "Choose an archetype from a catalog and render it",
	Long: `Walk a catalog of archetypes, choose one, and render it into destination.

Catalog entries may point at archetypes or at further catalogs. Without
--select each level is chosen interactively; with it, positions are taken
from the path, one per level:

  archetect catalog ./catalogs/company my-app
  archetect catalog git@github.com:org/catalog.git my-app --select 2/1 --headless

Without a source the configured catalog is used (config key "catalog").`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings()
		raw := s.Catalog
		if len(args) > 0 {
			raw = args[0]
		}
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("no catalog given and none configured; run '%s config set catalog <source>'", branding.CLIName())
		}
		dest := "."
		if len(args) == 2 {
			dest = args[1]
		}

		ss, err := newSession(s, &catalogOpts, os.Stdin, cmd.OutOrStdout(), os.Stderr)
		if err != nil {
			return err
		}
		defer ss.store.Close()
		return ss.renderFromCatalog(cmd.Context(), raw, dest, catalogSelect)
	},
}

func (ss *session) selector(path string) (catalog.Selector, error) {
	if path != "" {
		return catalog.ParsePath(path)
	}
	if ss.prompter == nil {
		return nil, errors.New("a catalog selection is needed: pass --select or drop --headless")
	}
	return catalog.PromptSelector{Prompter: ss.prompter}, nil
}

func (ss *session) renderFromCatalog(ctx context.Context, raw, dest, selectPath string) error {
	sel, err := ss.selector(selectPath)
	if err != nil {
		return err
	}
	engine := &catalog.Engine{Resolver: ss.resolver(), Logger: ss.log}
	choice, err := engine.Traverse(ctx, raw, "", sel)
	if err != nil {
		return err
	}
	ss.log.Info("Chose archetype", "trail", strings.Join(choice.Trail, " > "), "source", choice.Source.String())

	sc, err := ss.scaffolder()
	if err != nil {
		return err
	}
	res, err := sc.PlanSpec(ctx, choice.Source)
	if err != nil {
		return err
	}
	return ss.commit(ctx, res, dest)
}
