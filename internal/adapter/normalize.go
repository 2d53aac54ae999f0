package adapter

import (
	"strings"
	"time"
	"unicode"

	"github.com/verdantlab/orchidnet-go/internal/errors"
)

// dateLayout is the layout for ingestion and collection dates.
const dateLayout = "2006-01-02"

// normalizeNow supplies the ingestion timestamp; replaced in tests to make
// normalization fully deterministic.
var normalizeNow = time.Now

// NormalizedRecord is the canonical Darwin-Core-like record handed to
// persistence. It is the unit produced once per successfully fetched asset.
type NormalizedRecord struct {
	SourceID       string
	SourceName     string
	SourceURL      string
	License        string
	RightsHolder   string
	Country        string
	Locality       string
	ScientificName string
	Genus          string
	Species        string
	ImageURL       string
	Description    string
	CollectionDate string
	Collector      string
	IngestionDate  string
}

// NormalizeToDarwinCore maps a source-specific raw record plus the source's
// metadata into the canonical record. Pure mapping, no I/O; given the same
// inputs it always produces the same output. Record-level fields win over
// source-level metadata.
//
// Attribution is a hard licensing requirement: the function refuses to
// produce a record whose source id, license, or rights holder would be
// empty.
func NormalizeToDarwinCore(raw *RawRecord, meta *SourceMetadata) (*NormalizedRecord, error) {
	if raw == nil {
		return nil, errors.Newf("cannot normalize nil record").
			Category(errors.CategoryValidation).
			Component("adapter").
			Build()
	}

	rec := &NormalizedRecord{
		SourceID:       meta.ID,
		SourceName:     meta.Name,
		SourceURL:      firstNonEmpty(raw.SourceURL, meta.BaseURL),
		License:        firstNonEmpty(raw.License, meta.License),
		RightsHolder:   firstNonEmpty(raw.RightsHolder, meta.RightsHolder),
		Country:        firstNonEmpty(raw.Country, meta.Country),
		Locality:       firstNonEmpty(raw.Locality, meta.Locality),
		ScientificName: strings.TrimSpace(raw.ScientificName),
		Genus:          strings.TrimSpace(raw.Genus),
		Species:        strings.TrimSpace(raw.Species),
		ImageURL:       raw.ImageURL,
		Description:    strings.TrimSpace(raw.Description),
		CollectionDate: firstNonEmpty(raw.CollectionDate, meta.CollectionDate),
		Collector:      firstNonEmpty(raw.Collector, meta.Collector),
		IngestionDate:  normalizeNow().UTC().Format(dateLayout),
	}

	// Derive genus/species from the binomial when the source didn't split them
	if rec.Genus == "" || rec.Species == "" {
		parts := strings.Fields(rec.ScientificName)
		if rec.Genus == "" && len(parts) > 0 {
			rec.Genus = parts[0]
		}
		if rec.Species == "" && len(parts) > 1 {
			rec.Species = parts[1]
		}
	}

	if rec.SourceID == "" {
		return nil, errors.Newf("record is missing source id").
			Category(errors.CategoryValidation).
			Component("adapter").
			Build()
	}
	if rec.License == "" || rec.RightsHolder == "" {
		return nil, errors.Newf("record for %q lacks attribution (license=%q rights_holder=%q)",
			rec.ScientificName, rec.License, rec.RightsHolder).
			Category(errors.CategoryValidation).
			Component("adapter").
			Context("source", rec.SourceID).
			Build()
	}

	return rec, nil
}

// ExtractScientificName applies the capitalized-binomial heuristic to free
// text: the first "Genus species" pair where the genus is a capitalized word
// and the species epithet is lowercase wins. The boolean result flags
// heuristic failure explicitly so callers never mistake a guess for a blank.
func ExtractScientificName(text string) (string, bool) {
	words := strings.Fields(text)
	for i := 0; i < len(words)-1; i++ {
		genus := strings.Trim(words[i], ",.;:()[]'\"")
		species := strings.Trim(words[i+1], ",.;:()[]'\"")
		if looksLikeGenus(genus) && looksLikeEpithet(species) {
			return genus + " " + species, true
		}
	}
	return "", false
}

// looksLikeGenus reports whether a word is shaped like a genus name:
// a capital letter followed by at least two lowercase letters.
func looksLikeGenus(word string) bool {
	if len(word) < 3 {
		return false
	}
	runes := []rune(word)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// looksLikeEpithet reports whether a word is shaped like a species epithet:
// all lowercase letters, at least three of them.
func looksLikeEpithet(word string) bool {
	if len(word) < 3 {
		return false
	}
	for _, r := range word {
		if !unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// firstNonEmpty returns the first non-empty trimmed string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
