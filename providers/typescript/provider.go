package typescript

import "github.com/oxhq/scopeq/providers/base"

// New creates a TypeScript provider using base functionality with TypeScript-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
