package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/verdantlab/orchidnet-go/internal/fetcher"
)

const (
	inatSourceID = "inaturalist"
	inatBaseURL  = "https://api.inaturalist.org/v1"

	inatObservationLimit = 20
)

// INaturalistAdapter queries the iNaturalist API for research-grade,
// licensed orchid observations.
type INaturalistAdapter struct {
	meta    SourceMetadata
	baseURL string
	fetcher *fetcher.Fetcher
}

// NewINaturalistAdapter creates the iNaturalist adapter sharing the given fetcher.
func NewINaturalistAdapter(f *fetcher.Fetcher) *INaturalistAdapter {
	return &INaturalistAdapter{
		meta: SourceMetadata{
			ID:           inatSourceID,
			Name:         "iNaturalist",
			BaseURL:      inatBaseURL,
			License:      "CC BY-NC 4.0",
			RightsHolder: "iNaturalist observers",
		},
		baseURL: inatBaseURL,
		fetcher: f,
	}
}

// SetBaseURL overrides the API endpoint. Intended for tests.
func (a *INaturalistAdapter) SetBaseURL(base string) {
	a.baseURL = base
}

// SourceInfo implements Adapter.
func (a *INaturalistAdapter) SourceInfo() SourceMetadata {
	return a.meta
}

// DiscoverTaxa returns up to limit Orchidaceae genus names from the taxa search.
func (a *INaturalistAdapter) DiscoverTaxa(ctx context.Context, limit int) []string {
	searchURL := fmt.Sprintf("%s/taxa?q=Orchidaceae&rank=genus&per_page=%d", a.baseURL, limit)

	root := a.getJSON(ctx, searchURL)
	if root == nil {
		return []string{}
	}

	results, err := root.GetObjectArray("results")
	if err != nil {
		logger.Warn("iNaturalist taxa response missing results", "url", searchURL, "error", err)
		return []string{}
	}

	var taxa []string
	for _, res := range results {
		name, err := res.GetString("name")
		if err != nil || name == "" {
			continue
		}
		taxa = append(taxa, name)
		if len(taxa) >= limit {
			break
		}
	}

	logger.Info("iNaturalist taxa discovered", "count", len(taxa), "limit", limit)
	return taxa
}

// ListAssets searches research-grade observations with photos for one taxon.
// Unlicensed observations are excluded at the API level so every asset
// carries usable attribution.
func (a *INaturalistAdapter) ListAssets(ctx context.Context, taxon string) []OrchidAsset {
	searchURL := fmt.Sprintf(
		"%s/observations?taxon_name=%s&photos=true&quality_grade=research&license=cc-by,cc-by-nc,cc0&per_page=%d",
		a.baseURL, url.QueryEscape(taxon), inatObservationLimit)

	root := a.getJSON(ctx, searchURL)
	if root == nil {
		return nil
	}

	results, err := root.GetObjectArray("results")
	if err != nil {
		logger.Warn("iNaturalist observations response missing results", "url", searchURL, "error", err)
		return nil
	}

	var assets []OrchidAsset
	for _, obs := range results {
		id, err := obs.GetInt64("id")
		if err != nil {
			continue
		}

		photoURL := firstObservationPhoto(obs)
		if photoURL == "" {
			continue
		}

		name, _ := obs.GetString("taxon", "name")
		if name == "" {
			name, _ = obs.GetString("species_guess")
		}
		licenseCode, _ := obs.GetString("license_code")
		description, _ := obs.GetString("description")

		assets = append(assets, OrchidAsset{
			ImageURL:       photoURL,
			Description:    description,
			ScientificName: name,
			License:        inatLicenseName(licenseCode),
			Metadata: map[string]string{
				"observation_id": fmt.Sprintf("%d", id),
			},
		})
	}

	logger.Debug("iNaturalist assets listed", "taxon", taxon, "count", len(assets))
	return assets
}

// FetchRecord retrieves the full observation behind an asset.
func (a *INaturalistAdapter) FetchRecord(ctx context.Context, asset *OrchidAsset) *RawRecord {
	id := asset.Metadata["observation_id"]
	if id == "" {
		return nil
	}

	detailURL := fmt.Sprintf("%s/observations/%s", a.baseURL, id)

	root := a.getJSON(ctx, detailURL)
	if root == nil {
		return nil
	}

	results, err := root.GetObjectArray("results")
	if err != nil || len(results) == 0 {
		logger.Warn("iNaturalist observation detail empty", "url", detailURL)
		return nil
	}
	obs := results[0]

	name, _ := obs.GetString("taxon", "name")
	if name == "" {
		name = asset.ScientificName
	}
	licenseCode, _ := obs.GetString("license_code")
	observer, _ := obs.GetString("user", "login")
	placeGuess, _ := obs.GetString("place_guess")
	observedOn, _ := obs.GetString("observed_on")
	description, _ := obs.GetString("description")

	rightsHolder := ""
	if observer != "" {
		rightsHolder = fmt.Sprintf("%s (iNaturalist)", observer)
	}

	return &RawRecord{
		ScientificName: name,
		NameCertain:    name != "",
		ImageURL:       firstNonEmpty(firstObservationPhoto(obs), asset.ImageURL),
		Description:    firstNonEmpty(description, asset.Description),
		SourceURL:      detailURL,
		License:        inatLicenseName(licenseCode),
		RightsHolder:   rightsHolder,
		Locality:       placeGuess,
		Collector:      observer,
		CollectionDate: observedOn,
	}
}

// getJSON fetches a URL and parses it as a JSON object, nil on failure.
func (a *INaturalistAdapter) getJSON(ctx context.Context, rawURL string) *jason.Object {
	body := a.fetcher.GetBody(ctx, rawURL)
	if body == nil {
		return nil
	}

	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		logger.Warn("iNaturalist response did not parse", "url", rawURL, "error", err)
		return nil
	}
	return root
}

// firstObservationPhoto returns the first photo URL of an observation,
// upgraded from the thumbnail variant to the medium one.
func firstObservationPhoto(obs *jason.Object) string {
	photos, err := obs.GetObjectArray("photos")
	if err != nil || len(photos) == 0 {
		return ""
	}
	photoURL, err := photos[0].GetString("url")
	if err != nil || photoURL == "" {
		return ""
	}
	return strings.Replace(photoURL, "square", "medium", 1)
}

// inatLicenseName maps iNaturalist license codes to display names.
func inatLicenseName(code string) string {
	switch strings.ToLower(code) {
	case "cc0":
		return "CC0 1.0"
	case "cc-by":
		return "CC BY 4.0"
	case "cc-by-nc":
		return "CC BY-NC 4.0"
	case "cc-by-sa":
		return "CC BY-SA 4.0"
	case "cc-by-nd":
		return "CC BY-ND 4.0"
	case "cc-by-nc-sa":
		return "CC BY-NC-SA 4.0"
	case "cc-by-nc-nd":
		return "CC BY-NC-ND 4.0"
	default:
		return ""
	}
}
