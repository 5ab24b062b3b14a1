// Package mock provides test doubles for chatstream interfaces using function
// fields.
package mock

import (
	"context"

	"github.com/fwojciec/chatstream"
)

// Interface compliance check.
var _ chatstream.Provider = (*Provider)(nil)

// Provider is a test double for chatstream.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req chatstream.Request) (chatstream.Source, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req chatstream.Request) (chatstream.Source, error) {
	return p.StreamFn(ctx, req)
}
