package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"victory-readmodel/internal/ingestion"
)

// BackfillOptions holds flags for the backfill command.
type BackfillOptions struct {
	FromStart bool
	MaxPages  int
	PageSize  int
}

// NewBackfillCommand creates the backfill command.
func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackfillOptions{}

	cmd := &cobra.Command{
		Use:   "backfill [event-type...]",
		Short: "Archive ledger events for later replay",
		Long: `Page ledger events into the raw-event archive, resuming from the last
saved cursor of each event type. Without arguments every configured event
type is archived.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context(), rootOpts, opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "ignore saved cursors")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "pages per event type, 0 for all")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "events per RPC page")

	return cmd
}

func runBackfill(ctx context.Context, rootOpts *RootOptions, opts *BackfillOptions, eventTypes []string, out io.Writer) error {
	cfg, logger, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(eventTypes) == 0 {
		eventTypes = cfg.Events.All()
	}

	st, err := openStores(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer st.close()

	b := ingestion.NewBackfiller(ingestion.BackfillOptions{
		Source:    newRPCClient(cfg, logger, nil),
		Store:     st.events,
		Cursors:   st.cursors,
		PageSize:  opts.PageSize,
		MaxPages:  opts.MaxPages,
		FromStart: opts.FromStart,
		Logger:    logger,
	})

	result, err := b.Backfill(ctx, eventTypes...)
	if result != nil {
		if rootOpts.Format == "json" {
			if werr := writeJSON(out, result); werr != nil {
				return werr
			}
		} else {
			fmt.Fprintf(out, "Archived %d events (%d duplicates, %d errors) in %d pages, %s\n",
				result.EventsIngested, result.DuplicatesSkipped, result.Errors, result.Pages, result.Duration)
		}
	}
	return err
}
