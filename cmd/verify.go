package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verichain-labs/verichain/internal/model"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image-file>",
	Short: "Run a one-shot verification on a local image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), "verify")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read image")
		}

		rec, err := env.Pipeline.Verify(cmd.Context(), model.Upload{
			Filename: filepath.Base(args[0]),
			Data:     data,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
