package slug

import "testing"

// TestGenerate exercises the slug rule on category-style names, punctuation,
// whitespace variants and edge cases.
func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// --- Category names ---
		{
			name:  "two words",
			input: "Engine Parts",
			want:  "engine-parts",
		},
		{
			name:  "single word",
			input: "Pistons",
			want:  "pistons",
		},
		{
			name:  "ampersand dropped",
			input: "Brakes & Rotors",
			want:  "brakes-rotors",
		},
		{
			name:  "apostrophe dropped",
			input: "Men's Clothing",
			want:  "mens-clothing",
		},
		{
			name:  "numbers kept",
			input: "12V Batteries",
			want:  "12v-batteries",
		},
		{
			name:  "underscore is a word character",
			input: "oem_parts",
			want:  "oem_parts",
		},

		// --- Punctuation ---
		{
			name:  "hyphen is stripped",
			input: "Off-Road",
			want:  "offroad",
		},
		{
			name:  "slash is stripped",
			input: "Filters/Oil",
			want:  "filtersoil",
		},
		{
			name:  "dots are stripped",
			input: "Version 2.0",
			want:  "version-20",
		},
		{
			name:  "brackets are stripped",
			input: "Tools (Hand) [Metric]",
			want:  "tools-hand-metric",
		},
		{
			name:  "accents are stripped",
			input: "Café Racer",
			want:  "caf-racer",
		},

		// --- Whitespace ---
		{
			name:  "leading and trailing spaces",
			input: "   engine parts  ",
			want:  "engine-parts",
		},
		{
			name:  "inner runs collapse",
			input: "engine     parts",
			want:  "engine-parts",
		},
		{
			name:  "tab and newline collapse",
			input: "engine\t\nparts",
			want:  "engine-parts",
		},
		{
			name:  "space left behind by stripped symbol",
			input: "Brakes - Rotors",
			want:  "brakes-rotors",
		},
		{
			name:  "symbol at the edge",
			input: "! Sale !",
			want:  "sale",
		},

		// --- Edge cases ---
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only spaces",
			input: "    ",
			want:  "",
		},
		{
			name:  "only symbols",
			input: "!@#$%^&*()",
			want:  "",
		},
		{
			name:  "single letter",
			input: "A",
			want:  "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.input)
			if got != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestGenerate_StripsHyphens verifies that hyphens already in a name are
// stripped like any other punctuation; only whitespace becomes a hyphen.
func TestGenerate_StripsHyphens(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"engine-parts", "engineparts"},
		{"12v-batteries", "12vbatteries"},
		{"oem_parts", "oem_parts"},
		{"engine - parts", "engine-parts"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Generate(tt.input); got != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestGenerate_CaseInsensitiveNames verifies that names differing only in case
// produce the same slug, which is what makes the global slug check catch them.
func TestGenerate_CaseInsensitiveNames(t *testing.T) {
	for _, input := range []string{"ENGINE PARTS", "Engine Parts", "eNgInE pArTs"} {
		t.Run(input, func(t *testing.T) {
			if got := Generate(input); got != "engine-parts" {
				t.Errorf("Generate(%q) = %q, want %q", input, got, "engine-parts")
			}
		})
	}
}
