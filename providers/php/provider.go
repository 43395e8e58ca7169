package php

import "github.com/oxhq/scopeq/providers/base"

// New creates a PHP provider using base functionality with PHP-specific configuration
func New(opts ...base.Option) *base.Provider {
	config := &Config{}
	return base.New(config, opts...)
}
