package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/verichain-labs/verichain/internal/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent verifications from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "verify")
		if err != nil {
			return err
		}
		defer env.Close()

		count, err := env.Store.Count(cmd.Context())
		if err != nil {
			return err
		}
		recs, err := env.Store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if recs == nil {
			recs = []model.VerificationRecord{}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"count":         count,
			"returned":      len(recs),
			"verifications": recs,
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to return")
	rootCmd.AddCommand(historyCmd)
}
