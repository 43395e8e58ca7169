package javascript

import "github.com/oxhq/scopeq/providers/base"

// New creates a JavaScript provider using base functionality with JavaScript-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
