package orgname

import (
	"reflect"
	"testing"
)

func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Acme Therapeutics, Inc., Boston, MA", want: "acme"},
		{raw: "Merck & Co., Inc., Rahway, NJ, USA", want: "merck"},
		{raw: "Beta Biosciences Inc", want: "beta"},
		{raw: "Gamma Pharma", want: "gamma"},
		{raw: "Delta Holdings Co. Ltd.", want: "delta"},
		{raw: "Novartis AG", want: "novartis"},
		{raw: "Vertex Pharmaceuticals Incorporated", want: "vertex"},
		{raw: "Therapeutics Inc", want: "therapeutics"},
		{raw: "Regeneron Pharmaceuticals Group Holdings", want: "regeneron"},
		{raw: "  Inc.  ", want: ""},
		{raw: "LLC, Ltd", want: ""},
		{raw: "", want: ""},
		{raw: "Rho Bio -", want: "rho bio"},
		{raw: "BioNTech SE", want: "biontech"},
		{raw: "BioNTech SE, Mainz, Germany", want: "biontech"},
		{raw: "Novo Nordisk A/S", want: "novo nordisk"},
		{raw: "Novo Nordisk AS", want: "novo nordisk"},
		{raw: "Merck KGaA, Darmstadt, Germany", want: "merck"},
		{raw: "Boehringer Ingelheim GmbH & Co. KG", want: "boehringer ingelheim"},
		{raw: "Foo, Inc. (USA)", want: "foo"},
		{raw: "Foo Pharma (UK) Ltd", want: "foo"},
		{raw: "Foo (Holdings) (Europe)", want: "foo"},
	}

	for _, tc := range tests {
		if got := Key(tc.raw); got != tc.want {
			t.Fatalf("unexpected key for %q: got %q want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Acme Therapeutics, Inc., Boston, MA": "acme therapeutics inc",
		"  Johnson   &  Johnson ":             "johnson & johnson",
		"A.B.C. Labs":                         "abc labs",
	}
	for raw, want := range tests {
		if got := Normalize(raw); got != want {
			t.Fatalf("unexpected normalized form for %q: got %q want %q", raw, got, want)
		}
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Acme Therapeutics, Inc., Boston, MA", want: "Acme Therapeutics, Inc."},
		{raw: "Merck & Co., Inc., Rahway, NJ, USA", want: "Merck & Co., Inc."},
		{raw: "NOVARTIS AG", want: "Novartis AG"},
		{raw: "ACME CORP", want: "Acme Corp"},
		{raw: "acme holdings LTD", want: "Acme Holdings Ltd"},
		{raw: "Koninklijke Philips NV", want: "Koninklijke Philips NV"},
		{raw: "BioNTech SE", want: "BioNTech SE"},
		{raw: "uni-pharma/global llc", want: "Uni-Pharma/Global Llc"},
		{raw: "Smith Bio LLC,", want: "Smith Bio LLC"},
		{raw: "CO.", want: "Co."},
		{raw: "BioNTech SE, Mainz, Germany", want: "BioNTech SE"},
		{raw: "Merck KGaA, Darmstadt, Germany", want: "Merck KGaA"},
		{raw: "Novo Nordisk A/S", want: "Novo Nordisk A/S"},
		{raw: "Foo, Inc. (USA)", want: "Foo, Inc."},
		{raw: "(Acme)", want: "(Acme)"},
	}

	for _, tc := range tests {
		if got := Display(tc.raw); got != tc.want {
			t.Fatalf("unexpected display for %q: got %q want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizationIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Acme Therapeutics, Inc., Boston, MA",
		"Merck & Co., Inc., Rahway, NJ, USA",
		"Merck & Co Pharma",
		"BioNTech SE",
		"A Therapeutics",
		"ACME-BIO / RHO Labs (USA)",
		"Smith, Jones & Co., LLC, Chicago",
		"Inc.",
		"x & y co &",
		"BioNTech SE, Mainz, Germany",
		"Merck KGaA, Darmstadt, Germany",
		"Novo Nordisk A/S",
		"Foo, Inc. (USA)",
		"Foo Pharma (UK) Ltd",
		"Foo (Bar",
	}

	for _, raw := range inputs {
		key := Key(raw)
		if again := Key(key); again != key {
			t.Fatalf("Key not idempotent for %q: %q -> %q", raw, key, again)
		}
		normalized := Normalize(raw)
		if again := Normalize(normalized); again != normalized {
			t.Fatalf("Normalize not idempotent for %q: %q -> %q", raw, normalized, again)
		}
		display := Display(raw)
		if again := Display(display); again != display {
			t.Fatalf("Display not idempotent for %q: %q -> %q", raw, display, again)
		}
	}
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	got := Keywords("Johnson & Johnson Health Inc.")
	want := []string{"johnson", "johnson"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected keywords: got %v want %v", got, want)
	}
	if got := Keywords("Inc"); len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}
}
