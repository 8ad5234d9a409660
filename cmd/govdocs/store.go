package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Administer the vector store",
	Long:  `Commands for creating, inspecting and cleaning the configured vector store.`,
}

var (
	deleteIDs     []string
	deleteFilters []string
	deleteAll     bool
)

func init() {
	simple := []struct {
		use, short string
		run        func(*retrieval.Store, context.Context) error
	}{
		{"create-tables", "Create the records table", (*retrieval.Store).CreateTables},
		{"drop-tables", "Drop the records table and everything in it", (*retrieval.Store).DropTables},
		{"create-index", "Build the nearest-neighbour index", (*retrieval.Store).CreateIndex},
		{"drop-index", "Drop the nearest-neighbour index", (*retrieval.Store).DropIndex},
	}
	for _, s := range simple {
		storeCmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, ctx context.Context, store *retrieval.Store, _ []string) error {
				if err := s.run(store, ctx); err != nil {
					return err
				}
				cmd.Println("Done.")
				return nil
			}),
		})
	}

	storeCmd.AddCommand(storeCountCmd, storeExistsCmd, storeInfoCmd, storeDeleteCmd)

	addDeleteFlags(storeDeleteCmd)

	rootCmd.AddCommand(storeCmd)
}

func addDeleteFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&deleteIDs, "id", nil, "record ID to delete (repeatable)")
	cmd.Flags().StringArrayVar(&deleteFilters, "filter", nil, "metadata equality key=value (repeatable, all must match)")
	cmd.Flags().BoolVar(&deleteAll, "all", false, "delete every record")
	cmd.MarkFlagsMutuallyExclusive("id", "filter", "all")
	cmd.MarkFlagsOneRequired("id", "filter", "all")
}

var storeCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of records",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, ctx context.Context, store *retrieval.Store, _ []string) error {
		n, err := store.Count(ctx)
		if err != nil {
			return err
		}
		cmd.Println(n)
		return nil
	}),
}

var storeExistsCmd = &cobra.Command{
	Use:   "exists [id]",
	Short: "Report whether a record exists",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, ctx context.Context, store *retrieval.Store, args []string) error {
		ok, err := store.Exists(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Println(ok)
		return nil
	}),
}

var storeInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the backend connection",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, ctx context.Context, store *retrieval.Store, _ []string) error {
		info, err := store.Info(ctx)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal info: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}),
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete records by ID, by metadata filter or all of them",
	Long: `Deletes records. Exactly one of --id, --filter or --all must be given.

Examples:
  govdocs store delete --id 0b5e1c2a-0e8f-11ef-9a3c-0242ac120002
  govdocs store delete --filter sender=Tax --filter addressed_to="Nune Grygorian"
  govdocs store delete --all`,
	Args: cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, ctx context.Context, store *retrieval.Store, _ []string) error {
		opts := retrieval.DeleteOptions{IDs: deleteIDs, All: deleteAll}
		if len(deleteFilters) > 0 {
			filter, err := parseFilters(deleteFilters)
			if err != nil {
				return err
			}
			opts.Filter = filter
		}

		n, err := store.Delete(ctx, opts)
		if err != nil {
			return err
		}
		if n < 0 {
			cmd.Println("Deleted.")
			return nil
		}
		cmd.Printf("Deleted %d record(s).\n", n)
		return nil
	}),
}

func parseFilters(raw []string) (map[string]any, error) {
	filter := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", kv)
		}
		filter[strings.TrimSpace(key)] = value
	}
	return filter, nil
}

// withStore loads the app around a store subcommand.
func withStore(fn func(cmd *cobra.Command, ctx context.Context, store *retrieval.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { err = closeApp(cmd, a, err) }()
		return fn(cmd, a.context(cmd.Context()), a.store, args)
	}
}
