package cli

import (
	coreapp "pybundle/internal/core/app"
	"pybundle/internal/core/config"
	"pybundle/internal/core/ports"
)

type bundleFactory interface {
	New(cfg *config.Config) (ports.BundleService, error)
}

type coreBundleFactory struct{}

func (coreBundleFactory) New(cfg *config.Config) (ports.BundleService, error) {
	return coreapp.New(cfg).BundleService(), nil
}
