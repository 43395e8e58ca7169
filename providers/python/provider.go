package python

import "github.com/oxhq/scopeq/providers/base"

// New creates a Python provider using base functionality with Python-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
