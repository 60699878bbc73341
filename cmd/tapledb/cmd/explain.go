package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

func newExplainCmd() *cobra.Command {
	explainCmd := &cobra.Command{
		Use:   "explain",
		Short: "Describe the collections in the store",
		Long: `Walk the store and report keys, sizes and partitions per root collection.

Examples:
  tapledb explain
  tapledb explain --collection first --samples 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName, _ := cmd.Flags().GetString("collection")
			samples, _ := cmd.Flags().GetInt("samples")

			return withStore(cmd, func(a *app, st *store.Store) error {
				result, err := st.Explain(cmd.Context(), store.ExplainOptions{
					WithSamples: samples,
					Collection:  collectionName,
				})
				if err != nil {
					return fmt.Errorf("failed to explain store: %w", err)
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	explainCmd.Flags().String("collection", "", "Restrict the report to one root collection")
	explainCmd.Flags().Int("samples", 5, "Number of sample entries to include")
	return explainCmd
}
