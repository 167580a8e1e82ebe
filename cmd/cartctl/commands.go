package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/domain/cart"
)

func newOpenCommand(opts *RootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "open <client-id>",
		Short: "Open a new cart and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if id == "" {
					var err error
					if id, err = a.svc.Open(ctx, args[0]); err != nil {
						return err
					}
				} else if err := a.svc.OpenWithID(ctx, id, args[0]); err != nil {
					return err
				}
				return a.out.opened(id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "cart id to use instead of a generated one")
	return cmd
}

func newAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <cart-id> <product-id> <quantity> <unit-price>",
		Short: "Add units of a product to a cart",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseItem(args[1], args[2], args[3])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.svc.AddItem(ctx, args[0], item); err != nil {
					return err
				}
				return show(ctx, a, args[0])
			})
		},
	}
}

func newRemoveCommand(opts *RootOptions) *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "remove <cart-id> <product-id> <quantity>",
		Short: "Remove units of a product from a cart",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseItem(args[1], args[2], price)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.svc.RemoveItem(ctx, args[0], item); err != nil {
					return err
				}
				return show(ctx, a, args[0])
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "0", "unit price recorded with the removal")
	return cmd
}

func newConfirmCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <cart-id>",
		Short: "Confirm a pending cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.svc.Confirm(ctx, args[0]); err != nil {
					return err
				}
				return show(ctx, a, args[0])
			})
		},
	}
}

func newCancelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <cart-id>",
		Short: "Cancel a pending cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.svc.Cancel(ctx, args[0]); err != nil {
					return err
				}
				return show(ctx, a, args[0])
			})
		},
	}
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <cart-id>",
		Short: "Print the current state of a cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return show(ctx, a, args[0])
			})
		},
	}
}

func newEventsCommand(opts *RootOptions) *cobra.Command {
	var (
		from     uint64
		maxCount int
	)
	cmd := &cobra.Command{
		Use:   "events <cart-id>",
		Short: "Print the event stream of a cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				records, err := a.store.ReadStream(
					ctx,
					es.StreamName(cart.Kind, args[0]),
					es.FromRevision(es.Revision(from)),
					es.MaxCount(maxCount),
				)
				if err != nil {
					return err
				}
				all, err := es.Collect(records)
				if err != nil {
					return err
				}
				return a.out.records(all)
			})
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first revision to print")
	cmd.Flags().IntVar(&maxCount, "max", 0, "maximum number of events to print (0: all)")
	return cmd
}

func show(ctx context.Context, a *app, id string) error {
	c, rev, err := a.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.out.cart(c, rev)
}

func parseItem(productID, quantity, unitPrice string) (cart.PricedLineItem, error) {
	qty, err := strconv.Atoi(quantity)
	if err != nil {
		return cart.PricedLineItem{}, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	price, err := decimal.NewFromString(unitPrice)
	if err != nil {
		return cart.PricedLineItem{}, fmt.Errorf("invalid unit price %q: %w", unitPrice, err)
	}
	return cart.NewItem(productID, qty, price), nil
}
