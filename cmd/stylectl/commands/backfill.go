package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	backfillBatch int
	backfillMax   int
)

type unembeddedListings interface {
	ListUnembedded(ctx context.Context, limit int) ([]*domain.Listing, error)
	MarkEmbedded(ctx context.Context, id string) error
}

type listingEmbedder interface {
	EnsureListingEmbedding(ctx context.Context, listingID string) ([]float32, error)
}

type backfillResult struct {
	Embedded int
	Failed   map[string]error
}

func NewBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill-embeddings",
		Short: "Embed listings that were stored without an embedding",
		Long: `Embeds every listing whose embedding is missing, for example after a
provider outage. Listings that fail are reported and skipped.

Examples:
  stylectl backfill-embeddings
  stylectl backfill-embeddings --batch 50 --max 1000`,
		RunE: runBackfill,
	}

	cmd.Flags().IntVar(&backfillBatch, "batch", 100, "Listings fetched per query")
	cmd.Flags().IntVar(&backfillMax, "max", 0, "Stop after this many listings (0 = no limit)")

	return cmd
}

func runBackfill(cmd *cobra.Command, args []string) error {
	if backfillBatch <= 0 {
		return fmt.Errorf("--batch must be positive")
	}

	bar := newProgressBar(cmd.ErrOrStderr(), "Embedding listings")
	res, err := backfill(cmd.Context(), core.ListingRepo, core.StyleUC, backfillBatch, backfillMax, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "embedded %d listing(s), %d failed\n", res.Embedded, len(res.Failed))
	for id, ferr := range res.Failed {
		fmt.Fprintf(out, "  %s: %v\n", id, ferr)
	}
	return nil
}

// backfill выбирает партии неэмбеддированных объявлений, пока они не кончатся.
// Упавшие объявления остаются в выборке, поэтому limit растёт на их число.
func backfill(ctx context.Context, listings unembeddedListings, emb listingEmbedder, batch, limit int, step func()) (*backfillResult, error) {
	res := &backfillResult{Failed: make(map[string]error)}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := listings.ListUnembedded(ctx, batch+len(res.Failed))
		if err != nil {
			return res, fmt.Errorf("listing unembedded: %w", err)
		}

		progressed := false
		for _, l := range page {
			if _, failed := res.Failed[l.ID]; failed {
				continue
			}
			if limit > 0 && res.Embedded+len(res.Failed) >= limit {
				return res, nil
			}
			progressed = true

			if _, err := emb.EnsureListingEmbedding(ctx, l.ID); err != nil {
				res.Failed[l.ID] = err
				step()
				continue
			}
			if err := listings.MarkEmbedded(ctx, l.ID); err != nil {
				res.Failed[l.ID] = err
				step()
				continue
			}
			res.Embedded++
			step()
		}

		if !progressed {
			return res, nil
		}
	}
}

func newProgressBar(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
