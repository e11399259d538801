// Package cli defines the command-line surface of the cleaning step.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"basic-cleaning/services"
)

// RunFunc executes the step with parsed parameters.
type RunFunc func(ctx context.Context, p services.Params) error

// NewRootCommand builds the command. All six flags are required; flag
// errors are returned before run is called.
func NewRootCommand(run RunFunc) *cobra.Command {
	var p services.Params

	cmd := &cobra.Command{
		Use:           "basic_cleaning",
		Short:         "A very basic data cleaning",
		Long:          "Download a dataset artifact, keep rows inside the price range and the NYC bounding box, and log the result as a new artifact.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := p.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), p)
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.InputArtifact, "input_artifact", "", "Name of the input artifact containing raw data")
	f.StringVar(&p.OutputArtifact, "output_artifact", "", "Name of the output artifact to store cleaned data")
	f.StringVar(&p.OutputType, "output_type", "", "Type of the output artifact (e.g., dataset)")
	f.StringVar(&p.OutputDescription, "output_description", "", "Description of the output artifact")
	f.Float64Var(&p.MinPrice, "min_price", 0, "Minimum price threshold for data cleaning")
	f.Float64Var(&p.MaxPrice, "max_price", 0, "Maximum price threshold for data cleaning")

	for _, name := range []string{
		"input_artifact", "output_artifact", "output_type",
		"output_description", "min_price", "max_price",
	} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
