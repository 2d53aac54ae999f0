package adapter

import (
	"github.com/verdantlab/orchidnet-go/internal/conf"
	"github.com/verdantlab/orchidnet-go/internal/fetcher"
)

// NewDefaultRegistry builds a registry containing every source enabled in
// the settings, all sharing one fetcher.
func NewDefaultRegistry(settings *conf.Settings, f *fetcher.Fetcher) *Registry {
	registry := NewRegistry()

	if settings.Sources.IOSPE.Enabled {
		registry.Register(NewIOSPEAdapter(f))
	}
	if settings.Sources.Singapore.Enabled {
		registry.Register(NewSingaporeAdapter(f))
	}
	if settings.Sources.GBIF.Enabled {
		registry.Register(NewGBIFAdapter(f))
	}
	if settings.Sources.INaturalist.Enabled {
		registry.Register(NewINaturalistAdapter(f))
	}

	return registry
}

// SourceLimits maps each source id to its configured per-run taxa cap.
func SourceLimits(settings *conf.Settings) map[string]int {
	return map[string]int{
		iospeSourceID:     settings.Sources.IOSPE.MaxTaxa,
		singaporeSourceID: settings.Sources.Singapore.MaxTaxa,
		gbifSourceID:      settings.Sources.GBIF.MaxTaxa,
		inatSourceID:      settings.Sources.INaturalist.MaxTaxa,
	}
}
