package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tapico/go-posthog-openfeature/internal/cli"
	"github.com/Tapico/go-posthog-openfeature/internal/validation"
	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

var (
	ctxFlags   cli.ContextFlags
	defaultRaw string
)

var evalCmd = &cobra.Command{
	Use:   "eval <bool|string|number|object> <flag>",
	Short: "Evaluate a feature flag",
	Long: `Evaluate one feature flag for a subject and print the resolution details.

A failed lookup still prints the default value together with the error code,
exactly as an application would receive it.

Examples:
  phflag eval bool new-checkout --targeting-key user-1
  phflag eval string checkout-variant --targeting-key user-1 --default control
  phflag eval number max-items --targeting-key user-1 --prop plan=pro
  phflag eval object theme --targeting-key user-1 --group company=acme --group-prop company.tier=gold`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flagType, key := args[0], args[1]
		if err := validation.ValidateEvaluation(key, ctxFlags.TargetingKey).Err(); err != nil {
			return err
		}

		def, err := cli.ParseDefault(flagType, defaultRaw)
		if err != nil {
			return err
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

		res, err := evaluate(cmd.Context(), p, flagType, key, def, ec)
		if err != nil {
			return err
		}
		return cli.PrintResult(os.Stdout, res, cli.OutputFormat(format))
	},
}

// evaluate resolves key as flagType. def must already have the matching Go
// type, as returned by cli.ParseDefault. The error is only non-nil for an
// invalid evaluation context.
func evaluate(ctx context.Context, p *provider.Provider, flagType, key string, def any, ec provider.EvaluationContext) (cli.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		res cli.Result
		err error
	)
	switch flagType {
	case "bool", "boolean":
		var d provider.ResolutionDetails[bool]
		d, err = p.ResolveBoolean(ctx, key, def.(bool), ec)
		res = toResult(key, "bool", d)
	case "string":
		var d provider.ResolutionDetails[string]
		d, err = p.ResolveString(ctx, key, def.(string), ec)
		res = toResult(key, "string", d)
	case "number":
		var d provider.ResolutionDetails[float64]
		d, err = p.ResolveNumber(ctx, key, def.(float64), ec)
		res = toResult(key, "number", d)
	case "object":
		var d provider.ResolutionDetails[any]
		d, err = p.ResolveObject(ctx, key, def, ec)
		res = toResult(key, "object", d)
	default:
		return cli.Result{}, fmt.Errorf("unsupported flag type %q", flagType)
	}

	// Type and payload errors are already part of the result.
	var ve *provider.ValidationError
	if errors.As(err, &ve) {
		return res, err
	}
	return res, nil
}

func toResult[T any](key, flagType string, d provider.ResolutionDetails[T]) cli.Result {
	return cli.Result{
		FlagKey:      key,
		Type:         flagType,
		Value:        d.Value,
		Variant:      d.Variant,
		Reason:       string(d.Reason),
		ErrorCode:    string(d.ErrorCode),
		ErrorMessage: d.ErrorMessage,
	}
}

// addContextFlags registers the subject flags shared by eval and eval-many.
func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ctxFlags.TargetingKey, "targeting-key", "", "Distinct id of the subject")
	cmd.Flags().StringArrayVar(&ctxFlags.Groups, "group", nil, "Group membership as type=key (repeatable)")
	cmd.Flags().StringArrayVar(&ctxFlags.Props, "prop", nil, "Person property as name=value, dots nest (repeatable)")
	cmd.Flags().StringArrayVar(&ctxFlags.GroupProps, "group-prop", nil, "Group property as type.name=value (repeatable)")
}

func init() {
	addContextFlags(evalCmd)
	evalCmd.Flags().StringVar(&defaultRaw, "default", "", "Default value returned when the lookup fails")
	rootCmd.AddCommand(evalCmd)
}
