package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"victory-readmodel/internal/allocation"
	"victory-readmodel/internal/domain"
)

// NewValidateAllocationsCommand creates the validate-allocations command.
func NewValidateAllocationsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-allocations <week> <three-month> <year> <three-year>",
		Short: "Check a lock-period allocation set before submitting it",
		Long: `Validate basis-point allocations for the four lock periods. Each value
must lie in [0, 10000] and together they must total exactly 10000 (100.00%).`,
		Example: "  readmodel validate-allocations 1000 2000 3000 4000",
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateAllocations(rootOpts, args, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runValidateAllocations(rootOpts *RootOptions, args []string, out io.Writer) error {
	values := make([]int64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %q is not an integer", i+1, arg)
		}
		values[i] = v
	}

	res := allocation.Validate(domain.AllocationSet{
		Week:       values[0],
		ThreeMonth: values[1],
		Year:       values[2],
		ThreeYear:  values[3],
	})

	if rootOpts.Format == "json" {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Total: %d bp (%s%%)\n", res.TotalBp, allocation.FormatPercent(res.TotalBp))
		if res.Valid {
			fmt.Fprintln(out, "Valid")
		}
		for _, msg := range res.Errors {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
	}

	return res.Err()
}
