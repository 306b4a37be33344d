package recipe

import (
	"github.com/viant/tasktree/extension"
	"github.com/viant/tasktree/service/meta"
)

type Option func(*Service)

// WithMetaService sets the meta service
func WithMetaService(meta *meta.Service) Option {
	return func(s *Service) {
		s.metaService = meta
	}
}

// WithFactories sets the task factory registry
func WithFactories(factories *extension.Factories) Option {
	return func(s *Service) {
		s.factories = factories
	}
}

// WithParallelLimit sets the parallel limit of groups not declaring one;
// 0 keeps groups unlimited.
func WithParallelLimit(limit int) Option {
	return func(s *Service) {
		s.parallelLimit = limit
	}
}
