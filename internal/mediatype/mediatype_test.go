package mediatype_test

import (
	"testing"

	"crabmigrate/internal/mediatype"
)

func TestFormatFallsBackToAvif(t *testing.T) {
	cfg := mediatype.Format("tiff")
	if cfg.Name != "avif" {
		t.Fatalf("expected avif fallback, got %q", cfg.Name)
	}
	if !cfg.SupportsSpeed {
		t.Fatal("avif should support speed")
	}
}

func TestFormatDefaults(t *testing.T) {
	cases := []struct {
		name      string
		mime      string
		extension string
		quality   float64
	}{
		{"avif", "image/avif", "avif", 70},
		{"webp", "image/webp", "webp", 75},
		{"jpeg", "image/jpeg", "jpg", 80},
		{"png", "image/png", "png", 100},
	}
	for _, tc := range cases {
		cfg := mediatype.Format(tc.name)
		if cfg.MimeType != tc.mime || cfg.Extension != tc.extension || cfg.DefaultQuality != tc.quality {
			t.Fatalf("%s: unexpected config %+v", tc.name, cfg)
		}
	}
}

func TestFormatForMime(t *testing.T) {
	cfg, ok := mediatype.FormatForMime("image/webp")
	if !ok || cfg.Name != "webp" {
		t.Fatalf("expected webp, got %+v ok=%v", cfg, ok)
	}
	if _, ok := mediatype.FormatForMime("image/tiff"); ok {
		t.Fatal("tiff should not resolve to a format")
	}
}

func TestNormalizeExtension(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"image/jpeg", "jpg"},
		{"image/svg+xml", "svg"},
		{"image/PNG", "png"},
		{"image/x-icon", "x-icon"},
	}
	for _, tc := range cases {
		if got := mediatype.NormalizeExtension(tc.mime); got != tc.want {
			t.Fatalf("NormalizeExtension(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}

func TestExclusionMatchesEitherHeuristic(t *testing.T) {
	set := mediatype.NewExclusionSet([]string{"svg", "jpg"})

	// svg+xml matches via the normalized extension.
	if !set.Excluded("image/svg+xml") {
		t.Fatal("expected svg+xml to be excluded")
	}
	// jpeg matches via the jpeg->jpg mapping.
	if !set.Excluded("image/jpeg") {
		t.Fatal("expected jpeg to be excluded via jpg entry")
	}
	if set.Excluded("image/png") {
		t.Fatal("png should not be excluded")
	}
}

func TestExclusionMatchesRawSubtype(t *testing.T) {
	set := mediatype.NewExclusionSet([]string{"svg+xml"})
	if !set.Excluded("image/svg+xml") {
		t.Fatal("expected raw subtype match to exclude")
	}
}

func TestEmptyExclusionSet(t *testing.T) {
	var set mediatype.ExclusionSet
	if set.Excluded("image/gif") {
		t.Fatal("empty set should exclude nothing")
	}
}
