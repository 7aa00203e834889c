// Package mediatype describes the supported optimization formats and the
// rules deciding which MIME types are excluded from migration.
package mediatype

import "strings"

// FormatConfig describes one supported target format.
type FormatConfig struct {
	Name           string
	MimeType       string
	Extension      string
	DefaultQuality float64
	SupportsSpeed  bool
}

var formats = map[string]FormatConfig{
	"avif": {Name: "avif", MimeType: "image/avif", Extension: "avif", DefaultQuality: 70, SupportsSpeed: true},
	"webp": {Name: "webp", MimeType: "image/webp", Extension: "webp", DefaultQuality: 75, SupportsSpeed: false},
	"jpeg": {Name: "jpeg", MimeType: "image/jpeg", Extension: "jpg", DefaultQuality: 80, SupportsSpeed: false},
	"png":  {Name: "png", MimeType: "image/png", Extension: "png", DefaultQuality: 100, SupportsSpeed: false},
}

// Format returns the configuration for a named format. Unknown names fall
// back to avif.
func Format(name string) FormatConfig {
	if cfg, ok := formats[strings.ToLower(strings.TrimSpace(name))]; ok {
		return cfg
	}
	return formats["avif"]
}

// FormatForMime returns the format matching a MIME type, if any.
func FormatForMime(mimeType string) (FormatConfig, bool) {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	for _, cfg := range formats {
		if cfg.MimeType == normalized {
			return cfg, true
		}
	}
	return FormatConfig{}, false
}

// Subtype extracts the subtype portion of a MIME type ("image/jpeg" -> "jpeg").
func Subtype(mimeType string) string {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(normalized, '/'); idx >= 0 {
		normalized = normalized[idx+1:]
	}
	return normalized
}

// NormalizeExtension maps a MIME subtype to the extension used for exclusion
// matching: lower-cased, structured suffixes such as "+xml" stripped, and
// "jpeg" folded to "jpg".
func NormalizeExtension(mimeType string) string {
	subtype := Subtype(mimeType)
	if idx := strings.IndexByte(subtype, '+'); idx >= 0 {
		subtype = subtype[:idx]
	}
	if subtype == "jpeg" {
		return "jpg"
	}
	return subtype
}

// ExclusionSet is a lookup of MIME subtypes and extensions that must never
// be converted.
type ExclusionSet map[string]struct{}

// NewExclusionSet builds an ExclusionSet from configured entries.
func NewExclusionSet(entries []string) ExclusionSet {
	set := make(ExclusionSet, len(entries))
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		set[entry] = struct{}{}
	}
	return set
}

// Excluded reports whether a MIME type is excluded from migration. Both the
// raw subtype and the normalized extension are checked; either match is
// sufficient cause for exclusion.
func (s ExclusionSet) Excluded(mimeType string) bool {
	if len(s) == 0 {
		return false
	}
	if _, ok := s[Subtype(mimeType)]; ok {
		return true
	}
	_, ok := s[NormalizeExtension(mimeType)]
	return ok
}
