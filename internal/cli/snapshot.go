package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"victory-readmodel/internal/dashboard"
	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/epoch"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	FromArchive bool
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build one dashboard snapshot and print it",
		Long: `Build one dashboard snapshot and print it.

With --from-archive pool, allocation and revenue events are all replayed from
the archive instead of being queried from the node; the locker and vault
objects are still read from the node.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.FromArchive, "from-archive", false, "replay events from the archive")

	return cmd
}

func runSnapshot(ctx context.Context, rootOpts *RootOptions, opts *SnapshotOptions, out io.Writer) error {
	cfg, logger, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rpc := newRPCClient(cfg, logger, nil)

	var events dashboard.EventSource = rpc
	if opts.FromArchive {
		if cfg.Storage.UseMemory {
			return fmt.Errorf("--from-archive needs a persistent archive, storage.use_memory is set")
		}
		st, err := openStores(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer st.close()
		events = dashboard.NewArchiveSource(st.events)
	}

	loader := newLoader(cfg, events, rpc, logger)
	defer loader.Close()

	refresher := dashboard.NewRefresher(loader, dashboard.RefresherOptions{Logger: logger})
	snap := refresher.Refresh(ctx)

	if rootOpts.Format == "json" {
		return writeJSON(out, snap)
	}
	return printSnapshot(out, snap)
}

func printSnapshot(w io.Writer, s domain.Snapshot) error {
	p := &printer{w: w}

	p.printf("Snapshot generated %s\n", time.UnixMilli(s.GeneratedAtMs).UTC().Format(time.RFC3339))
	p.printf("Health: %s\n", s.Health.Overall)
	for _, issue := range s.Health.Issues {
		p.printf("  - %s: %s\n", issue.Code, issue.Message)
	}

	p.printf("\nEpoch %d: %s", s.CurrentEpoch.ID, s.CurrentEpoch.Status)
	if s.CurrentEpoch.Initialized() {
		p.printf(" (%.1f%%, %s left)", s.CurrentEpoch.ProgressPct, epoch.FormatRemaining(s.CurrentEpoch.TimeRemaining()))
	}
	p.printf("\n")
	if s.LastEpoch != nil {
		p.printf("Last epoch %d: %s\n", s.LastEpoch.ID, s.LastEpoch.Status)
	}

	p.printf("\nLP pools (%d, %d alloc points)\n", len(s.LPPools), s.Totals.LPAllocationPoints)
	printPools(p, s.LPPools)
	p.printf("Single pools (%d, %d alloc points)\n", len(s.SinglePools), s.Totals.SingleAllocationPoints)
	printPools(p, s.SinglePools)

	p.printf("\nAllocations\n")
	for _, a := range s.Allocations {
		if !a.Available {
			p.printf("  %-8s not set\n", a.Token)
			continue
		}
		p.printf("  %-8s week=%d three_month=%d year=%d three_year=%d total=%d valid=%t\n",
			a.Token, a.Set.Week, a.Set.ThreeMonth, a.Set.Year, a.Set.ThreeYear, a.TotalBp, a.Valid)
	}

	if s.Vaults.Available {
		p.printf("\nVaults: VICTORY=%s SUI=%s\n", s.Vaults.Victory, s.Vaults.SUI)
	}
	if len(s.Diagnostics) > 0 {
		p.printf("\n%d records skipped, see --format json for details\n", len(s.Diagnostics))
	}
	return p.err
}

func printPools(p *printer, pools []domain.PoolState) {
	for _, pool := range pools {
		state := "active"
		if !pool.Active {
			state = "inactive"
		}
		if pool.Placeholder {
			state += ", placeholder"
		}
		p.printf("  %-24s %6d  fees %d/%d bp  %s\n",
			pool.DisplayName, pool.AllocationPoints, pool.DepositFeeBp, pool.WithdrawalFeeBp, state)
	}
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
