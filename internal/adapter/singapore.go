package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/k3a/html2text"

	"github.com/verdantlab/orchidnet-go/internal/fetcher"
)

const singaporeSourceID = "singapore_botanic"

// maxSingaporeListingPages bounds the paginated listing crawl during
// discovery so a deep result set cannot stall a run.
const maxSingaporeListingPages = 10

// SingaporeAdapter scrapes the Singapore Botanic Gardens orchid pages on
// NParks Flora & Fauna Web.
type SingaporeAdapter struct {
	meta    SourceMetadata
	fetcher *fetcher.Fetcher

	mu         sync.RWMutex
	taxonPages map[string]string
}

// NewSingaporeAdapter creates the Singapore Botanic Gardens adapter.
func NewSingaporeAdapter(f *fetcher.Fetcher) *SingaporeAdapter {
	return &SingaporeAdapter{
		meta: SourceMetadata{
			ID:           singaporeSourceID,
			Name:         "Singapore Botanic Gardens",
			BaseURL:      "https://www.nparks.gov.sg/florafaunaweb",
			License:      "© National Parks Board, Singapore",
			RightsHolder: "National Parks Board (NParks)",
			Country:      "Singapore",
			Locality:     "Singapore Botanic Gardens",
		},
		fetcher:    f,
		taxonPages: make(map[string]string),
	}
}

// SetBaseURL overrides the site root. Intended for tests.
func (a *SingaporeAdapter) SetBaseURL(base string) {
	a.meta.BaseURL = base
}

// SourceInfo implements Adapter.
func (a *SingaporeAdapter) SourceInfo() SourceMetadata {
	return a.meta
}

// DiscoverTaxa pages through the Orchidaceae plant search listing and
// returns up to limit taxon names.
func (a *SingaporeAdapter) DiscoverTaxa(ctx context.Context, limit int) []string {
	var taxa []string

	for page := 1; page <= maxSingaporeListingPages && len(taxa) < limit; page++ {
		listURL := fmt.Sprintf("%s/special-pages/plant-search?family=Orchidaceae&page=%d", a.meta.BaseURL, page)
		body := a.fetcher.GetBody(ctx, listURL)
		if body == nil {
			// A missing page ends pagination; earlier results still count
			break
		}

		doc := parseHTML(body)
		if doc == nil {
			logger.Warn("Singapore listing page did not parse", "url", listURL)
			break
		}

		found := 0
		for _, anchor := range findAll(doc, "a") {
			if len(taxa) >= limit {
				break
			}
			href := attrVal(anchor, "href")
			if href == "" || !strings.Contains(href, "/flora/") {
				continue
			}
			name, ok := ExtractScientificName(nodeText(anchor))
			if !ok {
				continue
			}

			a.mu.Lock()
			if _, seen := a.taxonPages[name]; !seen {
				a.taxonPages[name] = resolveURL(listURL, href)
				taxa = append(taxa, name)
				found++
			}
			a.mu.Unlock()
		}

		// An empty listing page means we walked off the end of the results
		if found == 0 {
			break
		}
	}

	logger.Info("Singapore taxa discovered", "count", len(taxa), "limit", limit)
	return taxa
}

// ListAssets scrapes one flora detail page for candidate images.
func (a *SingaporeAdapter) ListAssets(ctx context.Context, taxon string) []OrchidAsset {
	a.mu.RLock()
	pageURL, ok := a.taxonPages[taxon]
	a.mu.RUnlock()
	if !ok {
		logger.Debug("Singapore taxon has no known page", "taxon", taxon)
		return nil
	}

	body := a.fetcher.GetBody(ctx, pageURL)
	if body == nil {
		return nil
	}

	doc := parseHTML(body)
	if doc == nil {
		logger.Warn("Singapore flora page did not parse", "url", pageURL)
		return nil
	}

	var assets []OrchidAsset
	for _, img := range findAll(doc, "img") {
		src := attrVal(img, "src")
		if src == "" {
			continue
		}
		// Site chrome lives outside the media gallery paths
		if !strings.Contains(src, "/images/") && !strings.Contains(src, "ffwimages") {
			continue
		}

		alt := attrVal(img, "alt")
		name := taxon
		if extracted, ok := ExtractScientificName(alt); ok {
			name = extracted
		}

		assets = append(assets, OrchidAsset{
			ImageURL:       resolveURL(pageURL, src),
			Description:    alt,
			ScientificName: name,
			Metadata:       map[string]string{"page_url": pageURL},
		})
	}

	logger.Debug("Singapore assets listed", "taxon", taxon, "count", len(assets))
	return assets
}

// FetchRecord fetches the flora detail page behind an asset.
func (a *SingaporeAdapter) FetchRecord(ctx context.Context, asset *OrchidAsset) *RawRecord {
	pageURL := asset.Metadata["page_url"]
	if pageURL == "" {
		return nil
	}

	body := a.fetcher.GetBody(ctx, pageURL)
	if body == nil {
		return nil
	}

	text := html2text.HTML2Text(string(body))
	if len(text) > 4000 {
		text = text[:4000]
	}

	name := asset.ScientificName
	certain := name != ""
	if name == "" {
		name, certain = ExtractScientificName(text)
	}

	return &RawRecord{
		ScientificName: name,
		NameCertain:    certain,
		ImageURL:       asset.ImageURL,
		Description:    firstNonEmpty(asset.Description, text),
		SourceURL:      pageURL,
	}
}
