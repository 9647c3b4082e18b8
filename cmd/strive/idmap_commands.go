package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/al0nec0der/StrIve-sub000/internal/config"
	"github.com/al0nec0der/StrIve-sub000/internal/idmap"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

func newIDMapCommand(ctx *commandContext) *cobra.Command {
	idmapCmd := &cobra.Command{
		Use:   "idmap",
		Short: "Inspect the persisted catalog to IMDb id mappings",
		Long: "Reads and edits idmap.path directly. A running daemon keeps its own copy\n" +
			"in memory and overwrites the file on its next write, so stop it first when\n" +
			"removing entries.",
	}
	idmapCmd.AddCommand(newIDMapListCommand(ctx))
	idmapCmd.AddCommand(newIDMapRemoveCommand(ctx))
	idmapCmd.AddCommand(newIDMapClearCommand(ctx))
	return idmapCmd
}

func openIDMap(ctx *commandContext) (*idmap.Cache, *config.Config, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.IDMap.Persist {
		return nil, nil, fmt.Errorf("idmap.persist is disabled; there is no mapping file to inspect")
	}
	cache := idmap.NewCache(idmap.CacheOptions{
		Capacity: cfg.IDMap.Capacity,
		TTL:      cfg.IDMapTTL(),
		Path:     cfg.IDMap.Path,
	}, logging.NewNop())
	return cache, cfg, nil
}

func newIDMapListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached mappings, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, cfg, err := openIDMap(ctx)
			if err != nil {
				return err
			}
			entries := cache.List()
			if jsonOut {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No mappings cached in %s\n", cfg.IDMap.Path)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, m := range entries {
				external := m.ExternalID
				if !m.Found {
					external = "(none)"
				}
				rows = append(rows, []string{
					string(m.MediaType),
					m.CatalogID,
					external,
					m.CreatedAt.Local().Format("2006-01-02 15:04"),
					m.LastAccessedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Type", "Catalog ID", "IMDb ID", "Created", "Last used"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft}))
			fmt.Fprintf(out, "%d of %d slots used\n", len(entries), cache.Capacity())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newIDMapRemoveCommand(ctx *commandContext) *cobra.Command {
	var mediaTypeFlag string
	cmd := &cobra.Command{
		Use:     "remove <catalog-id>...",
		Aliases: []string{"rm"},
		Short:   "Remove mappings so they are resolved again",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, err := tmdb.ParseMediaType(mediaTypeFlag)
			if err != nil {
				return err
			}
			cache, _, err := openIDMap(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var failed []string
			for _, id := range args {
				if err := cache.Remove(id, mediaType); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					failed = append(failed, id)
					continue
				}
				fmt.Fprintf(out, "Removed %s/%s\n", mediaType, id)
			}
			if len(failed) > 0 {
				return fmt.Errorf("could not remove %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mediaTypeFlag, "type", "t", "movie", "Media type: movie or series")
	return cmd
}

func newIDMapClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, cfg, err := openIDMap(ctx)
			if err != nil {
				return err
			}
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return fmt.Errorf("clear id mappings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d mappings from %s\n", count, cfg.IDMap.Path)
			return nil
		},
	}
}
