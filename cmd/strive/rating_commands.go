package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
	"github.com/al0nec0der/StrIve-sub000/internal/daemonrun"
	"github.com/al0nec0der/StrIve-sub000/internal/ratings"
	"github.com/al0nec0der/StrIve-sub000/internal/tmdb"
)

type lookupFlags struct {
	mediaType string
	local     bool
	json      bool
}

func (f *lookupFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mediaType, "type", "t", "movie", "Media type: movie or series")
	cmd.Flags().BoolVar(&f.local, "local", false, "Resolve in-process instead of asking the daemon")
	cmd.Flags().BoolVar(&f.json, "json", false, "Output as JSON")
}

func newRatingCommand(ctx *commandContext) *cobra.Command {
	var flags lookupFlags
	cmd := &cobra.Command{
		Use:   "rating <catalog-id>",
		Short: "Look up the rating for one catalog title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, err := tmdb.ParseMediaType(flags.mediaType)
			if err != nil {
				return err
			}
			var rating api.Rating
			if flags.local {
				err = ctx.withLocalRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
					rec, err := rt.Service.GetRating(cmd.Context(), args[0], mediaType)
					if err != nil {
						return err
					}
					rating = api.FromRecord(rec)
					return nil
				})
			} else {
				err = ctx.withClient(func(client *api.Client) error {
					resp, err := client.Rating(cmd.Context(), mediaType.String(), args[0])
					if err != nil {
						return err
					}
					rating = resp.Rating
					return nil
				})
			}
			if err != nil {
				return err
			}
			if flags.json {
				return writeJSON(cmd, rating)
			}
			printRating(cmd.OutOrStdout(), rating)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags lookupFlags
	cmd := &cobra.Command{
		Use:   "batch <catalog-id>...",
		Short: "Look up ratings for several catalog titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaType, err := tmdb.ParseMediaType(flags.mediaType)
			if err != nil {
				return err
			}
			var result map[string]api.Rating
			if flags.local {
				err = ctx.withLocalRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
					result = api.FromRecords(rt.Service.GetRatingsBatch(cmd.Context(), args, mediaType))
					return nil
				})
			} else {
				err = ctx.withClient(func(client *api.Client) error {
					resp, err := client.Batch(cmd.Context(), mediaType.String(), args)
					if err != nil {
						return err
					}
					result = resp.Ratings
					return nil
				})
			}
			if err != nil {
				return err
			}
			if flags.json {
				return writeJSON(cmd, api.BatchResponse{Ratings: result})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, batchHeaders(), batchRows(out, args, result), batchAligns()))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printRating(out io.Writer, r api.Rating) {
	title := r.Title
	if r.Year != "" && r.Year != ratings.Unavailable {
		title = fmt.Sprintf("%s (%s)", title, r.Year)
	}
	fmt.Fprintln(out, title)
	rows := [][]string{
		{"Catalog", r.MediaType + "/" + r.CatalogID},
		{"IMDb", valueOr(r.ExternalID, ratings.Unavailable)},
		{"Source", colorSource(out, r.Source)},
		{"IMDb rating", r.PrimaryRating},
		{"Rotten Tomatoes", r.SecondaryRating},
		{"Metacritic", r.TertiaryRating},
		{"Votes", formatVotes(r.VoteCount)},
		{"Awards", r.Awards},
		{"Plot", r.Plot},
	}
	if r.CachedAt != "" {
		rows = append(rows, []string{"Cached at", r.CachedAt})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
}

func batchHeaders() []string {
	return []string{"Catalog ID", "Title", "IMDb", "RT", "Metacritic", "Source"}
}

func batchAligns() []columnAlignment {
	return []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft}
}

// batchRows keeps the caller's argument order and drops duplicate ids.
func batchRows(out io.Writer, ids []string, result map[string]api.Rating) [][]string {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	for id := range result {
		if _, ok := seen[id]; !ok {
			ordered = append(ordered, id)
		}
	}
	rows := make([][]string, 0, len(ordered))
	for _, id := range ordered {
		r, ok := result[id]
		if !ok {
			rows = append(rows, []string{id, "", "", "", "", "missing"})
			continue
		}
		rows = append(rows, []string{
			id,
			r.Title,
			r.PrimaryRating,
			r.SecondaryRating,
			r.TertiaryRating,
			colorSource(out, r.Source),
		})
	}
	return rows
}

func formatVotes(n int) string {
	if n <= 0 {
		return ratings.Unavailable
	}
	digits := strconv.Itoa(n)
	var groups []string
	for len(digits) > 3 {
		groups = append(groups, digits[len(digits)-3:])
		digits = digits[:len(digits)-3]
	}
	groups = append(groups, digits)
	slices.Reverse(groups)
	return strings.Join(groups, ",")
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
