package language

import (
	"errors"
	"testing"
)

// TestResolve_LegacyTable verifies the legacy mapping is total and correct
// for every supported tag.
func TestResolve_LegacyTable(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"EN", "E"},
		{"DE", "D"},
		{"PL", "L"},
		{"FR", "F"},
		{"ES", "S"},
		{"IT", "I"},
		{"RU", "R"},
		{"JA", "J"},
		{"ZH", "C"},
		{"PT", "P"},
		{"NL", "N"},
		{"DA", "K"},
		{"SV", "V"},
		{"NO", "O"},
		{"FI", "U"},
		{"CS", "Q"},
		{"HU", "H"},
		{"TR", "T"},
		{"AR", "A"},
		{"HE", "W"},
		{"TH", "B"},
		{"KO", "M"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := Resolve(tt.tag, ClassLegacy)
			if err != nil {
				t.Fatalf("Resolve(%q, legacy) error: %v", tt.tag, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q, legacy) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

// TestResolve_Deterministic verifies repeated resolution yields identical
// results.
func TestResolve_Deterministic(t *testing.T) {
	for _, tag := range Supported() {
		first, err := Resolve(tag, ClassLegacy)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", tag, err)
		}
		for i := 0; i < 10; i++ {
			again, err := Resolve(tag, ClassLegacy)
			if err != nil || again != first {
				t.Fatalf("Resolve(%q) not deterministic: %q vs %q (err %v)", tag, first, again, err)
			}
		}
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	for _, tag := range []string{"pl", "Pl", "pL", "PL"} {
		got, err := Resolve(tag, ClassLegacy)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", tag, err)
		}
		if got != "L" {
			t.Errorf("Resolve(%q) = %q, want %q", tag, got, "L")
		}
	}
}

// TestResolve_ModernIdentity verifies the modern class passes well-formed
// tags through unchanged, including tags outside the legacy table.
func TestResolve_ModernIdentity(t *testing.T) {
	for _, tag := range []string{"EN", "PL", "BG", "UK", "xx"} {
		got, err := Resolve(tag, ClassModern)
		if err != nil {
			t.Fatalf("Resolve(%q, modern) error: %v", tag, err)
		}
		want := "EN"
		switch tag {
		case "PL":
			want = "PL"
		case "BG":
			want = "BG"
		case "UK":
			want = "UK"
		case "xx":
			want = "XX"
		}
		if got != want {
			t.Errorf("Resolve(%q, modern) = %q, want %q", tag, got, want)
		}
	}
}

// TestResolve_FailClosed verifies unknown or malformed tags error instead
// of defaulting to English.
func TestResolve_FailClosed(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		class   VersionClass
		wantErr error
	}{
		{"unknown legacy tag", "XX", ClassLegacy, ErrUnsupported},
		{"legacy tag not in table", "BG", ClassLegacy, ErrUnsupported},
		{"empty", "", ClassLegacy, ErrInvalidTag},
		{"three letters", "ENG", ClassLegacy, ErrInvalidTag},
		{"one letter", "E", ClassLegacy, ErrInvalidTag},
		{"digits", "E1", ClassLegacy, ErrInvalidTag},
		{"modern malformed", "E1", ClassModern, ErrInvalidTag},
		{"modern empty", "", ClassModern, ErrInvalidTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.tag, tt.class)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve(%q, %s) error = %v, want %v", tt.tag, tt.class, err, tt.wantErr)
			}
			if got != "" {
				t.Errorf("Resolve(%q, %s) = %q, want empty on error", tt.tag, tt.class, got)
			}
		})
	}
}

func TestClassifyRelease(t *testing.T) {
	tests := []struct {
		release string
		want    VersionClass
	}{
		{"45B", ClassLegacy},
		{"46C", ClassLegacy},
		{"470", ClassLegacy},
		{"620", ClassLegacy},
		{"640", ClassLegacy},
		{"700", ClassLegacy},
		{"701", ClassLegacy},
		{"731", ClassLegacy},
		{"740", ClassLegacy},
		{"750", ClassModern},
		{"751", ClassModern},
		{"754", ClassModern},
		{"756", ClassModern},
		{"758", ClassModern},
		{"760", ClassModern},
		{"", ClassLegacy},
		{"unknown", ClassLegacy},
		{"7", ClassLegacy},
		{" 754 ", ClassModern},
	}

	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			if got := ClassifyRelease(tt.release); got != tt.want {
				t.Errorf("ClassifyRelease(%q) = %s, want %s", tt.release, got, tt.want)
			}
		})
	}
}

func TestSupported_SortedAndComplete(t *testing.T) {
	tags := Supported()
	if len(tags) != len(legacyCodes) {
		t.Fatalf("Supported() returned %d tags, want %d", len(tags), len(legacyCodes))
	}
	for i := 1; i < len(tags); i++ {
		if tags[i-1] >= tags[i] {
			t.Fatalf("Supported() not sorted: %q before %q", tags[i-1], tags[i])
		}
	}
}
