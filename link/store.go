package link

import "context"

type storeKeyType struct{}

var storeKey storeKeyType

// WithStore attaches the per-event store to a context so host functions
// invoked by the guest can reach their capability data.
func WithStore(ctx context.Context, store any) context.Context {
	return context.WithValue(ctx, storeKey, store)
}

// StoreFrom retrieves the per-event store placed by WithStore.
func StoreFrom(ctx context.Context) any {
	return ctx.Value(storeKey)
}
