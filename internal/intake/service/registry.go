package service

import (
	catalogdomain "github.com/smallbiznis/bootcamp/internal/catalog/domain"
	"github.com/smallbiznis/bootcamp/internal/intake/domain"
)

// Registry maps an intake source to its adapter.
type Registry struct {
	adapters map[catalogdomain.Source]*domain.Adapter
}

func NewRegistry(adapters ...*domain.Adapter) *Registry {
	r := &Registry{adapters: make(map[catalogdomain.Source]*domain.Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Source] = a
		}
	}
	return r
}

func (r *Registry) Get(source catalogdomain.Source) *domain.Adapter {
	if r == nil {
		return nil
	}
	return r.adapters[source]
}
