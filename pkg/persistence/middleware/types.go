// Package middleware decorates remote snapshot stores.
package middleware

import "github.com/aretw0/chatflow/pkg/ports"

// Middleware allows wrapping a RemoteStore to add behavior.
type Middleware func(ports.RemoteStore) ports.RemoteStore

// Chain wraps store so that the first middleware is the outermost.
func Chain(store ports.RemoteStore, mws ...Middleware) ports.RemoteStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
