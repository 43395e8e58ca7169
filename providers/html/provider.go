package html

import "github.com/oxhq/scopeq/providers/base"

// New creates a HTML provider using base functionality with HTML-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
