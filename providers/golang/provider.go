package golang

import "github.com/oxhq/scopeq/providers/base"

// New creates a Go provider using base functionality with Go-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
