package adapter

import (
	"context"
	"strings"
	"sync"

	"github.com/k3a/html2text"

	"github.com/verdantlab/orchidnet-go/internal/fetcher"
)

const iospeSourceID = "iospe"

// iospeIndexPages are the alphabetical species index pages crawled during
// discovery. Jay Pfahl's encyclopedia splits its index by genus initial.
var iospeIndexPages = []string{
	"indexa-anat.htm",
	"indexbulb.htm",
	"indexca-cattleya.htm",
	"indexde-dendrobium.htm",
	"indexe-f.htm",
	"indexl.htm",
	"indexmasd.htm",
	"indexon-op.htm",
	"indexpa-pl.htm",
	"indexv-z.htm",
}

// IOSPEAdapter scrapes the Internet Orchid Species Photo Encyclopedia.
type IOSPEAdapter struct {
	meta    SourceMetadata
	fetcher *fetcher.Fetcher

	// taxon name -> species page URL, populated during discovery
	mu         sync.RWMutex
	taxonPages map[string]string
}

// NewIOSPEAdapter creates the IOSPE adapter sharing the given fetcher.
func NewIOSPEAdapter(f *fetcher.Fetcher) *IOSPEAdapter {
	return &IOSPEAdapter{
		meta: SourceMetadata{
			ID:           iospeSourceID,
			Name:         "Internet Orchid Species Photo Encyclopedia",
			BaseURL:      "http://www.orchidspecies.com",
			License:      "Educational use with attribution",
			RightsHolder: "Jay Pfahl / IOSPE",
			Country:      "",
		},
		fetcher:    f,
		taxonPages: make(map[string]string),
	}
}

// SetBaseURL overrides the site root. Intended for tests.
func (a *IOSPEAdapter) SetBaseURL(base string) {
	a.meta.BaseURL = base
}

// SourceInfo implements Adapter.
func (a *IOSPEAdapter) SourceInfo() SourceMetadata {
	return a.meta
}

// DiscoverTaxa crawls the alphabetical index pages and returns up to limit
// scientific names, remembering each name's species page for ListAssets.
func (a *IOSPEAdapter) DiscoverTaxa(ctx context.Context, limit int) []string {
	var taxa []string

	for _, page := range iospeIndexPages {
		if len(taxa) >= limit {
			break
		}

		indexURL := a.meta.BaseURL + "/" + page
		body := a.fetcher.GetBody(ctx, indexURL)
		if body == nil {
			logger.Warn("IOSPE index page unavailable", "url", indexURL)
			continue
		}

		doc := parseHTML(body)
		if doc == nil {
			logger.Warn("IOSPE index page did not parse", "url", indexURL)
			continue
		}

		for _, anchor := range findAll(doc, "a") {
			if len(taxa) >= limit {
				break
			}
			href := attrVal(anchor, "href")
			if href == "" || !strings.HasSuffix(strings.ToLower(href), ".htm") {
				continue
			}
			name, ok := ExtractScientificName(nodeText(anchor))
			if !ok {
				continue
			}

			a.mu.Lock()
			if _, seen := a.taxonPages[name]; !seen {
				a.taxonPages[name] = resolveURL(indexURL, href)
				taxa = append(taxa, name)
			}
			a.mu.Unlock()
		}
	}

	logger.Info("IOSPE taxa discovered", "count", len(taxa), "limit", limit)
	return taxa
}

// ListAssets scrapes one species page for candidate images. Entries missing
// a src attribute are skipped rather than failing the whole page.
func (a *IOSPEAdapter) ListAssets(ctx context.Context, taxon string) []OrchidAsset {
	a.mu.RLock()
	pageURL, ok := a.taxonPages[taxon]
	a.mu.RUnlock()
	if !ok {
		logger.Debug("IOSPE taxon has no known page", "taxon", taxon)
		return nil
	}

	body := a.fetcher.GetBody(ctx, pageURL)
	if body == nil {
		return nil
	}

	doc := parseHTML(body)
	if doc == nil {
		logger.Warn("IOSPE species page did not parse", "url", pageURL)
		return nil
	}

	var assets []OrchidAsset
	for _, img := range findAll(doc, "img") {
		src := attrVal(img, "src")
		if src == "" {
			// Malformed entry, skip it
			continue
		}
		// Navigation chrome and spacer graphics are not specimen photos
		if strings.Contains(src, "banner") || strings.Contains(src, "button") {
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

	logger.Debug("IOSPE assets listed", "taxon", taxon, "count", len(assets))
	return assets
}

// FetchRecord fetches the species page behind an asset and extracts its free
// text as the record description.
func (a *IOSPEAdapter) FetchRecord(ctx context.Context, asset *OrchidAsset) *RawRecord {
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
