package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type styleRebuilder interface {
	RebuildStyleVector(ctx context.Context, userID string) error
}

func NewRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-style <userID>...",
		Short: "Recompute style vectors from active contributions",
		Long: `Recomputes each user's style vector by folding the embeddings of their
active likes, saves and wardrobe items in order. Use after an unlike or
when a stored vector is suspected to be stale.

Examples:
  stylectl rebuild-style user-1
  stylectl rebuild-style user-1 user-2 user-3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := rebuild(cmd.Context(), core.StyleUC, args, func(userID string, err error) {
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", userID, err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: rebuilt\n", userID)
			})
			if failed > 0 {
				return fmt.Errorf("%d of %d rebuild(s) failed", failed, len(args))
			}
			return nil
		},
	}
}

func rebuild(ctx context.Context, style styleRebuilder, userIDs []string, report func(userID string, err error)) int {
	failed := 0
	for _, id := range userIDs {
		err := style.RebuildStyleVector(ctx, id)
		if err != nil {
			failed++
		}
		report(id, err)
	}
	return failed
}
