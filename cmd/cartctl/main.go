// Command cartctl runs shopping cart commands against an event store.
//
//	cartctl --backend sqlite open client-1
//	cartctl add <cart-id> sku-1 2 9.99
//	cartctl show <cart-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/codewandler/cartes-go/core/es"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, es.ErrDomainViolation):
		return 2
	case errors.Is(err, es.ErrConcurrencyConflict):
		return 3
	case errors.Is(err, es.ErrNotFound):
		return 4
	default:
		return 1
	}
}
