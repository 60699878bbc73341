package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/collection"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

// withDocuments runs fn with the document collection at path
func withDocuments(cmd *cobra.Command, path string, fn func(c *collection.Collection[store.Document]) error) error {
	return withStore(cmd, func(a *app, st *store.Store) error {
		c, err := st.Documents(path)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(c)
	})
}

// documentArg interprets a command line value as JSON, falling back to a
// JSON string for anything that does not parse.
func documentArg(arg string) (store.Document, error) {
	if json.Valid([]byte(arg)) {
		return store.Document(arg), nil
	}
	data, err := json.Marshal(arg)
	if err != nil {
		return nil, err
	}
	return store.Document(data), nil
}

// displayKey renders a scanned key with "/" between partition names
func displayKey(key string) string {
	return strings.ReplaceAll(key, keys.SeparatorString, "/")
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <collection-path> <key> <value>",
		Short: "Put an entry into a collection",
		Long: `Put an entry into a collection or partition. The collection path names the
root collection followed by its partitions, separated by "/". The value is
stored as JSON; values that are not valid JSON are stored as JSON strings.

Examples:
  tapledb put first a '{"fruit":"apple"}'
  tapledb put first/inner1 b banana`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := documentArg(args[2])
			if err != nil {
				return err
			}

			return withDocuments(cmd, args[0], func(c *collection.Collection[store.Document]) error {
				if err := c.Put(args[1], value); err != nil {
					return fmt.Errorf("failed to put entry: %w", err)
				}
				cmd.Printf("Successfully put key '%s' in %s\n", args[1], c.Path())
				return nil
			})
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection-path> <key>",
		Short: "Get the value of an entry",
		Long: `Get the value stored under a key of a collection or partition.

Example:
  tapledb get first/inner1 b`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDocuments(cmd, args[0], func(c *collection.Collection[store.Document]) error {
				value, err := c.Get(args[1])
				if err != nil {
					return fmt.Errorf("failed to get entry: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(value))
				return nil
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection-path> <key>",
		Short: "Delete an entry",
		Long: `Delete an entry from a collection or partition. Deleting a missing key
succeeds.

Example:
  tapledb delete first a`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDocuments(cmd, args[0], func(c *collection.Collection[store.Document]) error {
				if err := c.Delete(args[1]); err != nil {
					return fmt.Errorf("failed to delete entry: %w", err)
				}
				cmd.Printf("Successfully deleted key '%s' from %s\n", args[1], c.Path())
				return nil
			})
		},
	}
}

func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan <collection-path>",
		Short: "List the entries of a collection",
		Long: `List the entries of a collection or partition in key order, including the
entries of nested partitions. Keys of nested entries are printed relative to
the scanned collection, with "/" between partition names.

Examples:
  tapledb scan first
  tapledb scan first/inner1 --reverse --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reverse, _ := cmd.Flags().GetBool("reverse")
			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			return withDocuments(cmd, args[0], func(c *collection.Collection[store.Document]) error {
				dir := backend.Forward
				if reverse {
					dir = backend.Reverse
				}

				entries, err := collection.Collect(c.Scan(dir), limit)
				if err != nil {
					return fmt.Errorf("failed to scan %s: %w", c.Path(), err)
				}

				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%s\n", displayKey(e.Key), e.Value)
				}
				return nil
			})
		},
	}

	scanCmd.Flags().BoolP("reverse", "r", false, "Descending key order")
	scanCmd.Flags().IntP("limit", "n", 0, "Maximum number of entries (0 for all)")
	return scanCmd
}
