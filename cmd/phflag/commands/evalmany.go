package commands

import (
	"fmt"
	"os"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Tapico/go-posthog-openfeature/internal/cli"
	"github.com/Tapico/go-posthog-openfeature/internal/validation"
)

var (
	withPayload bool
	concurrency int
)

var evalManyCmd = &cobra.Command{
	Use:   "eval-many <flag>...",
	Short: "Check several feature flags at once",
	Long: `Evaluate several flags as booleans for the same subject, concurrently.
With --payload the JSON payload of every flag is resolved as well.

Examples:
  phflag eval-many new-checkout beta-banner --targeting-key user-1
  phflag eval-many theme onboarding --targeting-key user-1 --payload --format yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if concurrency < 1 {
			return fmt.Errorf("--concurrency must be at least 1")
		}
		for _, key := range args {
			if err := validation.ValidateEvaluation(key, ctxFlags.TargetingKey).Err(); err != nil {
				return fmt.Errorf("flag %q: %w", key, err)
			}
		}
		ec, err := cli.BuildContext(ctxFlags)
		if err != nil {
			return fmt.Errorf("invalid context: %w", err)
		}

		p, err := newProvider()
		if err != nil {
			return err
		}
		defer p.Close()

		perFlag := 1
		if withPayload {
			perFlag = 2
		}
		results := make([]cli.Result, len(args)*perFlag)

		ctx := cmd.Context()
		wp := pool.New().WithErrors().WithMaxGoroutines(concurrency)
		for i, key := range args {
			wp.Go(func() error {
				res, err := evaluate(ctx, p, "bool", key, false, ec)
				if err != nil {
					return err
				}
				results[i*perFlag] = res
				return nil
			})
			if withPayload {
				wp.Go(func() error {
					res, err := evaluate(ctx, p, "object", key, nil, ec)
					if err != nil {
						return err
					}
					results[i*perFlag+1] = res
					return nil
				})
			}
		}
		if err := wp.Wait(); err != nil {
			return err
		}

		return cli.PrintResults(os.Stdout, results, cli.OutputFormat(format))
	},
}

func init() {
	addContextFlags(evalManyCmd)
	evalManyCmd.Flags().BoolVar(&withPayload, "payload", false, "Also resolve each flag's payload")
	evalManyCmd.Flags().IntVar(&concurrency, "concurrency", 8, "Maximum concurrent lookups")
	rootCmd.AddCommand(evalManyCmd)
}
