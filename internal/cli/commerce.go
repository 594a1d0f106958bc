package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utafrali/sixty60/internal/basket"
	"github.com/utafrali/sixty60/internal/catalog"
	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/internal/orders"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/logger"
	"github.com/utafrali/sixty60/pkg/pagination"
	"github.com/utafrali/sixty60/pkg/validator"
)

type searchInput struct {
	Query string `validate:"required"`
	Page  int    `validate:"gte=0"`
	Size  int    `validate:"gte=1,lte=100"`
}

type basketInput struct {
	ProductID string `validate:"required"`
	Qty       int    `validate:"gt=0"`
	CartID    string
}

// loadSession reads the saved state, fills whatever it is missing and saves
// the result when hydration changed it.
func loadSession(ctx context.Context, rt *Runtime) (context.Context, domain.Session, error) {
	state, found, err := rt.Sessions.LoadState(ctx)
	if err != nil {
		return ctx, domain.Session{}, err
	}
	if !found {
		return ctx, domain.Session{}, apperrors.Unauthorized("no local auth found, run login first")
	}

	hydrated, changed, err := rt.Auth.Hydrate(ctx, state)
	if err != nil {
		return ctx, domain.Session{}, err
	}
	if changed {
		if err := rt.Sessions.SaveState(ctx, hydrated); err != nil {
			return ctx, domain.Session{}, err
		}
	}

	session := hydrated.Session()
	if err := session.Validate(); err != nil {
		return ctx, domain.Session{}, err
	}
	return logger.WithUserID(ctx, session.UserID), session, nil
}

func newOrdersCmd(newRuntime Factory) *cobra.Command {
	var jsonOnly, compact bool
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show order history",
		Args:  cobra.NoArgs,
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			ctx, session, err := loadSession(ctx, rt)
			if err != nil {
				return err
			}

			raw, err := rt.Orders.History(ctx, session)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if compact {
				list, err := orders.Compact(raw)
				if err != nil {
					return err
				}
				return writeJSON(out, list)
			}
			if !jsonOnly {
				fmt.Fprintln(out, "Fetched orders successfully.")
			}
			return writeRaw(out, raw)
		}),
	}
	cmd.Flags().BoolVar(&jsonOnly, "json", false, "print only the JSON response")
	cmd.Flags().BoolVar(&compact, "compact", false, "print id, reference, status, total and date per order")
	return cmd
}

func newSearchCmd(newRuntime Factory) *cobra.Command {
	var (
		input   searchInput
		compact bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search products in the stores serving your location",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return validator.Validate(input)
		},
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			ctx, session, err := loadSession(ctx, rt)
			if err != nil {
				return err
			}

			raw, err := rt.Catalog.Search(ctx, session, input.Query, pagination.New(input.Page, input.Size))
			if err != nil {
				return err
			}

			if compact {
				products, err := catalog.Compact(raw)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), products)
			}
			return writeRaw(cmd.OutOrStdout(), raw)
		}),
	}
	defaults := pagination.DefaultParams()
	cmd.Flags().StringVar(&input.Query, "query", "", "search text")
	cmd.Flags().IntVar(&input.Page, "page", defaults.Page, "zero-based result page")
	cmd.Flags().IntVar(&input.Size, "size", defaults.PageSize, "results per page")
	cmd.Flags().BoolVar(&compact, "compact", false, "print id, name, brand and price per product")
	return cmd
}

func newAddToBasketCmd(newRuntime Factory) *cobra.Command {
	var input basketInput
	cmd := &cobra.Command{
		Use:   "add-to-basket",
		Short: "Add a product to the basket",
		Long: `Add a product to the basket.

The quantity is added to the sixty-minute cart (or --cart-id) and every cart
is re-sent in one update so the carts stay consistent.`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return validator.Validate(input)
		},
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			ctx, session, err := loadSession(ctx, rt)
			if err != nil {
				return err
			}

			result, err := rt.Basket.AddToBasket(ctx, session, basket.AddInput{
				ProductID: input.ProductID,
				Quantity:  input.Qty,
				CartID:    input.CartID,
			})
			if err != nil {
				return err
			}

			for _, failure := range result.PromotionFailures {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: promotions not refreshed for cart %s: %v\n", failure.CartID, failure.Err)
			}
			logger.WithContext(ctx, rt.Logger).Info("basket updated",
				slog.String("target_cart_id", result.TargetCartID),
				slog.Int("carts", len(result.Carts)),
			)
			return writeRaw(cmd.OutOrStdout(), result.Response)
		}),
	}
	cmd.Flags().StringVar(&input.ProductID, "product-id", "", "product to add")
	cmd.Flags().IntVar(&input.Qty, "qty", 1, "quantity to add")
	cmd.Flags().StringVar(&input.CartID, "cart-id", "", "cart to add to instead of the sixty-minute cart")
	return cmd
}
