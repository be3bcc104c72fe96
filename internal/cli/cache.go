package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/cache"
	"github.com/igr88/archetect/internal/source"
)

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cacheUpdateCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the cache of remote sources",
	Long: `Remote archetypes and catalogs are cloned into the cache the first time they
are used and reused by later renders, including --offline ones.

The cache lives in ~/.archetect/cache unless cache_dir or --cache-dir says otherwise.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(settings(), newLogger(os.Stderr))
		if err != nil {
			return err
		}
		return listCache(cmd.OutOrStdout(), store, time.Now())
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean [source...]",
	Short: "Remove cached sources (all of them when none are named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(settings(), newLogger(os.Stderr))
		if err != nil {
			return err
		}
		specs, err := parseSpecs(args)
		if err != nil {
			return err
		}
		n, err := store.Clean(specs...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached source(s).\n", n)
		return nil
	},
}

var cacheUpdateCmd = &cobra.Command{
	Use:   "update [source...]",
	Short: "Fetch cached sources again (all of them when none are named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings()
		store, err := newStore(s, newLogger(os.Stderr))
		if err != nil {
			return err
		}
		return updateCache(cmd.Context(), cmd.OutOrStdout(), store, args, s.Offline)
	},
}

func listCache(w io.Writer, store *cache.Store, now time.Time) error {
	entries, err := store.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "Cache at %s is empty.\n", store.Root)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tCOMMIT\tFETCHED\tSTATUS")
	for _, e := range entries {
		status := "fresh"
		if e.Outdated(now, cache.DefaultMaxAge) {
			status = "outdated"
		}
		commit := e.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Source, commit, e.FetchedAt.Local().Format(time.DateTime), status)
	}
	return tw.Flush()
}

// updateCache refreshes the named sources, or every cached one. Offline mode
// never touches the network, so it refuses outright.
func updateCache(ctx context.Context, w io.Writer, store *cache.Store, args []string, offline bool) error {
	if offline {
		return apperr.New(apperr.KindOfflineCacheMiss, "update cache", strings.Join(args, " "),
			"updating the cache needs network access, but offline mode is configured")
	}
	specs, err := parseSpecs(args)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		entries, err := store.List()
		if err != nil {
			return err
		}
		for _, e := range entries {
			spec, err := entrySpec(e)
			if err != nil {
				return err
			}
			specs = append(specs, spec)
		}
	}

	var (
		failed  int
		lastErr error
	)
	for _, spec := range specs {
		e, err := store.Refresh(ctx, spec)
		if err != nil {
			failed++
			lastErr = err
			fmt.Fprintf(w, "%s: %v\n", spec, err)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", spec, e.Commit)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d source(s) could not be updated: %w", failed, len(specs), lastErr)
	}
	return nil
}

func parseSpecs(args []string) ([]source.Spec, error) {
	specs := make([]source.Spec, 0, len(args))
	for _, raw := range args {
		spec, err := source.Parse(raw, "")
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// entrySpec rebuilds the specifier a cache entry was fetched for.
func entrySpec(e *cache.Entry) (source.Spec, error) {
	raw := e.URL
	if e.Ref != "" {
		raw += "#" + e.Ref
	}
	return source.Parse(raw, "")
}
