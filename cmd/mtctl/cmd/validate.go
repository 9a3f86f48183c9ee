package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/carlosmarte/fastify-multi-tenant-sub001/identification"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
)

// NewValidateCommand creates the validate command
func NewValidateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and entity definitions",
		Long: `Load the configuration and entity definitions and check that every
definition names a known identification strategy with valid options.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, flags)
		},
	}
}

func runValidate(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	defs, err := loadDefinitions(cfg)
	if err != nil {
		return err
	}
	validator, err := security.NewValidator(cfg.Security)
	if err != nil {
		return err
	}
	ids := identification.NewManager(validator, nil)

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "TYPE\tSTRATEGY\tPRIORITY\tMERGE\tBASE PATH\tSTATUS")

	var errs []error
	for _, def := range defs.Definitions() {
		status := "ok"
		switch {
		case def.Disabled:
			status = "disabled"
		default:
			if err := ids.ValidateDefinition(def); err != nil {
				status = "invalid"
				errs = append(errs, err)
			}
		}
		fmt.Fprintf(out, "%s\t%s\t%d\t%s\t%s\t%s\n",
			def.Type, def.IdentificationStrategy, def.Priority, def.MergeStrategy, def.BasePath, status)
	}
	if err := out.Flush(); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d invalid entity definitions: %w", len(errs), errors.Join(errs...))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d entity definitions valid\n", len(defs.Definitions()))
	return nil
}
