package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/verdantlab/orchidnet-go/internal/fetcher"
)

const (
	gbifSourceID = "gbif"
	gbifBaseURL  = "https://api.gbif.org/v1"

	// GBIF responses are stable enough to cache for the length of a run
	gbifCacheTTL = 1 * time.Hour

	gbifOccurrenceLimit = 20
)

// gbifSpeciesSearchResponse is the species search envelope.
type gbifSpeciesSearchResponse struct {
	Results []gbifSpecies `json:"results"`
}

type gbifSpecies struct {
	Key           int64  `json:"key"`
	CanonicalName string `json:"canonicalName"`
	Rank          string `json:"rank"`
	Family        string `json:"family"`
}

// gbifOccurrenceSearchResponse is the occurrence search envelope.
type gbifOccurrenceSearchResponse struct {
	Results []gbifOccurrence `json:"results"`
}

type gbifOccurrence struct {
	Key            int64       `json:"key"`
	ScientificName string      `json:"scientificName"`
	Genus          string      `json:"genus"`
	Species        string      `json:"species"`
	Country        string      `json:"country"`
	Locality       string      `json:"locality"`
	RecordedBy     string      `json:"recordedBy"`
	EventDate      string      `json:"eventDate"`
	License        string      `json:"license"`
	RightsHolder   string      `json:"rightsHolder"`
	Media          []gbifMedia `json:"media"`
}

type gbifMedia struct {
	Type       string `json:"type"`
	Format     string `json:"format"`
	Identifier string `json:"identifier"`
}

// GBIFAdapter queries the GBIF occurrence API for orchid records with media.
type GBIFAdapter struct {
	meta    SourceMetadata
	baseURL string
	fetcher *fetcher.Fetcher
	cache   *cache.Cache
}

// NewGBIFAdapter creates the GBIF adapter sharing the given fetcher.
func NewGBIFAdapter(f *fetcher.Fetcher) *GBIFAdapter {
	return &GBIFAdapter{
		meta: SourceMetadata{
			ID:           gbifSourceID,
			Name:         "Global Biodiversity Information Facility",
			BaseURL:      gbifBaseURL,
			License:      "CC BY 4.0",
			RightsHolder: "GBIF contributing publishers",
		},
		baseURL: gbifBaseURL,
		fetcher: f,
		cache:   cache.New(gbifCacheTTL, gbifCacheTTL*2),
	}
}

// SetBaseURL overrides the API endpoint. Intended for tests.
func (a *GBIFAdapter) SetBaseURL(base string) {
	a.baseURL = base
}

// SourceInfo implements Adapter.
func (a *GBIFAdapter) SourceInfo() SourceMetadata {
	return a.meta
}

// DiscoverTaxa returns up to limit accepted Orchidaceae genus names from the
// GBIF species search.
func (a *GBIFAdapter) DiscoverTaxa(ctx context.Context, limit int) []string {
	searchURL := fmt.Sprintf("%s/species/search?q=Orchidaceae&rank=GENUS&status=ACCEPTED&limit=%d",
		a.baseURL, limit)

	var resp gbifSpeciesSearchResponse
	if !a.getJSON(ctx, searchURL, &resp) {
		return []string{}
	}

	taxa := make([]string, 0, len(resp.Results))
	for i := range resp.Results {
		sp := &resp.Results[i]
		// The query matches text anywhere, keep only genera in the family
		if sp.CanonicalName == "" || !strings.EqualFold(sp.Family, "Orchidaceae") {
			continue
		}
		taxa = append(taxa, sp.CanonicalName)
		if len(taxa) >= limit {
			break
		}
	}

	logger.Info("GBIF taxa discovered", "count", len(taxa), "limit", limit)
	return taxa
}

// ListAssets searches occurrences with still images for one genus.
func (a *GBIFAdapter) ListAssets(ctx context.Context, taxon string) []OrchidAsset {
	searchURL := fmt.Sprintf("%s/occurrence/search?scientificName=%s&mediaType=StillImage&limit=%d",
		a.baseURL, url.QueryEscape(taxon), gbifOccurrenceLimit)

	var resp gbifOccurrenceSearchResponse
	if !a.getJSON(ctx, searchURL, &resp) {
		return nil
	}

	var assets []OrchidAsset
	for i := range resp.Results {
		occ := &resp.Results[i]
		imageURL := firstStillImage(occ.Media)
		if imageURL == "" {
			continue
		}

		assets = append(assets, OrchidAsset{
			ImageURL:       imageURL,
			Description:    fmt.Sprintf("GBIF occurrence %d", occ.Key),
			ScientificName: occ.ScientificName,
			Genus:          occ.Genus,
			Species:        occ.Species,
			License:        occ.License,
			Metadata: map[string]string{
				"occurrence_key": fmt.Sprintf("%d", occ.Key),
			},
		})
	}

	logger.Debug("GBIF assets listed", "taxon", taxon, "count", len(assets))
	return assets
}

// FetchRecord retrieves the full occurrence behind an asset.
func (a *GBIFAdapter) FetchRecord(ctx context.Context, asset *OrchidAsset) *RawRecord {
	key := asset.Metadata["occurrence_key"]
	if key == "" {
		return nil
	}

	detailURL := fmt.Sprintf("%s/occurrence/%s", a.baseURL, key)

	var occ gbifOccurrence
	if !a.getJSON(ctx, detailURL, &occ) {
		return nil
	}

	return &RawRecord{
		ScientificName: occ.ScientificName,
		NameCertain:    occ.ScientificName != "",
		Genus:          occ.Genus,
		Species:        occ.Species,
		ImageURL:       firstNonEmpty(firstStillImage(occ.Media), asset.ImageURL),
		Description:    asset.Description,
		SourceURL:      detailURL,
		License:        occ.License,
		RightsHolder:   occ.RightsHolder,
		Country:        occ.Country,
		Locality:       occ.Locality,
		Collector:      occ.RecordedBy,
		CollectionDate: truncateEventDate(occ.EventDate),
	}
}

// getJSON fetches a URL and unmarshals its body, with a run-scoped response
// cache. Returns false on fetch or parse failure.
func (a *GBIFAdapter) getJSON(ctx context.Context, rawURL string, out any) bool {
	if cached, found := a.cache.Get(rawURL); found {
		if body, ok := cached.([]byte); ok {
			return json.Unmarshal(body, out) == nil
		}
	}

	body := a.fetcher.GetBody(ctx, rawURL)
	if body == nil {
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		logger.Warn("GBIF response did not parse", "url", rawURL, "error", err)
		return false
	}

	a.cache.Set(rawURL, body, cache.DefaultExpiration)
	return true
}

// firstStillImage returns the first still-image media identifier. Skipping
// non-image media keeps the image_url invariant meaningful.
func firstStillImage(media []gbifMedia) string {
	for i := range media {
		if strings.EqualFold(media[i].Type, "StillImage") && media[i].Identifier != "" {
			return media[i].Identifier
		}
	}
	return ""
}

// truncateEventDate reduces GBIF event dates ("2019-05-04T00:00:00" or date
// ranges) to a plain date.
func truncateEventDate(eventDate string) string {
	if eventDate == "" {
		return ""
	}
	if i := strings.IndexAny(eventDate, "T/"); i >= 0 {
		eventDate = eventDate[:i]
	}
	if len(eventDate) > len(dateLayout) {
		eventDate = eventDate[:len(dateLayout)]
	}
	return eventDate
}
