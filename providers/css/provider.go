package css

import "github.com/oxhq/scopeq/providers/base"

// New creates a CSS provider using base functionality with CSS-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
