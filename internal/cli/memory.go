package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/recall/pkg/memory"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		memType string
		tags    []string
		related []string
	)

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a memory when the text is salient",
		Long: `Add runs the text through the triviality filter and the salience
classifier. A salient fact that nearly duplicates a stored memory is either
merged into it or discarded. Prints the stored memory, or null when nothing
was stored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mem, err := a.manager.AddMemory(ctx, strings.Join(args, " "), memType, tags, related)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view(mem))
			})
		},
	}

	cmd.Flags().StringVar(&memType, "type", memory.TypeConversation, "memory type (conversation, important)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	cmd.Flags().StringSliceVar(&related, "related", nil, "id of a related memory (repeatable)")
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var (
		summary string
		salient bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id> <content>",
		Short: "Replace the content of a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var summaryPtr *string
			if cmd.Flags().Changed("summary") {
				summaryPtr = &summary
			}
			var salientPtr *bool
			if cmd.Flags().Changed("salient") {
				salientPtr = &salient
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mem, err := a.manager.EditMemory(ctx, args[0], strings.Join(args[1:], " "), summaryPtr, salientPtr)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view(mem))
			})
		},
	}

	cmd.Flags().StringVar(&summary, "summary", "", "new summary")
	cmd.Flags().BoolVar(&salient, "salient", true, "mark the memory salient or not")
	return cmd
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mem, err := a.manager.GetMemory(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view(mem))
			})
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete memories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				for _, id := range args {
					if err := a.manager.DeleteMemory(ctx, id); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": args})
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find salient memories related to a query",
		Long: `Search ranks salient memories by similarity to the query. Memories whose
similarity differs by no more than the tie band are ordered by recency.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				mems, err := a.manager.GetRelatedMemories(ctx, strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), views(mems))
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of memories")
	return cmd
}

func newFilterCmd(opts *rootOptions) *cobra.Command {
	var (
		where         []string
		tags          []string
		since, until  string
		minImportance float64
		query         string
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "List memories matching metadata conditions, most recent first",
		Example: `  recall filter --where type=important
  recall filter --where salient=true --tag work --since 2024-01-01 --min-importance 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			equals, err := parseWhere(where)
			if err != nil {
				return err
			}
			criteria := memory.SearchCriteria{
				Equals:        equals,
				Tags:          tags,
				MinImportance: minImportance,
			}
			if criteria.Since, err = parseTime(since); err != nil {
				return err
			}
			if criteria.Until, err = parseTime(until); err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				var mems []memory.Memory
				if len(tags) == 0 && since == "" && until == "" && minImportance == 0 {
					mems, err = a.manager.GetMemoriesByFilter(ctx, equals, query, limit)
				} else {
					mems, err = a.manager.SearchMemoriesComplex(ctx, query, criteria, limit)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), views(mems))
			})
		},
	}

	cmd.Flags().StringArrayVar(&where, "where", nil, "metadata equality key=value (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "required tag (repeatable)")
	cmd.Flags().StringVar(&since, "since", "", "created at or after (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "created at or before (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().Float64Var(&minImportance, "min-importance", 0, "minimum importance")
	cmd.Flags().StringVarP(&query, "query", "q", "", "text that steers the candidate search")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of memories")
	return cmd
}

func newConsolidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate <id>...",
		Short: "Merge the memories of a thread into one consolidated memory",
		Long: `Consolidate summarizes the given memories into a new memory tagged
"consolidated" that relates back to every source. Fewer memories than the
configured minimum are left alone and null is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sources := make([]memory.Memory, 0, len(args))
				for _, id := range args {
					mem, err := a.manager.GetMemory(ctx, id)
					if err != nil {
						return err
					}
					sources = append(sources, *mem)
				}

				mem, err := a.manager.ConsolidateThreadMemories(ctx, sources)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view(mem))
			})
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one conflict reconciliation sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				report, err := a.manager.ResolveMemoryConflicts(ctx)
				if err != nil {
					return fmt.Errorf("reconciliation failed: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}
