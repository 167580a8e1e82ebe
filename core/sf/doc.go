// Package sf is a typed wrapper around golang.org/x/sync/singleflight.
//
// Concurrent calls with the same key execute the function once and share
// the result:
//
//	group := sf.New[*cart.Cart]()
//	c, shared, err := group.Do(cartID, func() (*cart.Cart, error) {
//	    c, _, err := repo.Load(ctx, cartID)
//	    return c, err
//	})
//	if shared {
//	    c = c.Clone()
//	}
package sf
