package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tapico/go-posthog-openfeature/internal/auth"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an API key for the evaluation server",
	Long: `Generate a random API key for the HTTP evaluation server together with its
bcrypt hash. Give the key to clients and set SERVER_API_KEY_HASH to the hash.
The key is shown only once.

Example:
  phflag keygen`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "API key:             %s\n", key)
		fmt.Fprintf(out, "SERVER_API_KEY_HASH: %s\n", hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
