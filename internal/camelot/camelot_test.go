package camelot

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantKey Key
		wantOK  bool
	}{
		{
			name:    "simple minor key",
			label:   "8A",
			wantKey: Key{Number: 8, Mode: Minor},
			wantOK:  true,
		},
		{
			name:    "two digit major key",
			label:   "12B",
			wantKey: Key{Number: 12, Mode: Major},
			wantOK:  true,
		},
		{
			name:    "lowest position",
			label:   "1A",
			wantKey: Key{Number: 1, Mode: Minor},
			wantOK:  true,
		},
		{
			name:   "unknown placeholder",
			label:  "Unknown",
			wantOK: false,
		},
		{
			name:   "empty label",
			label:  "",
			wantOK: false,
		},
		{
			name:   "number out of range high",
			label:  "13A",
			wantOK: false,
		},
		{
			name:   "number out of range low",
			label:  "0B",
			wantOK: false,
		},
		{
			name:   "invalid mode letter",
			label:  "8C",
			wantOK: false,
		},
		{
			name:   "lowercase mode rejected",
			label:  "8a",
			wantOK: false,
		},
		{
			name:   "too long",
			label:  "112A",
			wantOK: false,
		},
		{
			name:   "non numeric prefix",
			label:  "xA",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := Parse(tt.label)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.label, ok, tt.wantOK)
			}
			if ok && key != tt.wantKey {
				t.Errorf("Parse(%q) = %v, want %v", tt.label, key, tt.wantKey)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	key, ok := Parse("11B")
	if !ok {
		t.Fatal("Parse(11B) failed")
	}
	if key.String() != "11B" {
		t.Errorf("String() = %q, want %q", key.String(), "11B")
	}
}

func TestFromMusicalKey(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Am", "8A"},
		{"A minor", "8A"},
		{"C major", "8B"},
		{"C", "8B"},
		{"C#m", "12A"},
		{"Db major", "3B"},
		{"F#", "2B"},
		{"Bb minor", "3A"},
		{"Bbm", "3A"},
		{"Bm", "10A"},
		{"G min", "6A"},
		{"E maj", "12B"},
		{"8A", "8A"},
		{"12b", "12B"},
		{"Unknown", "Unknown"},
		{"", "Unknown"},
		{"H major", "Unknown"},
		{"C dorian", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := FromMusicalKey(tt.label); got != tt.want {
				t.Errorf("FromMusicalKey(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestFromPitchClassOutOfRange(t *testing.T) {
	if got := FromPitchClass(12, true); got != "Unknown" {
		t.Errorf("FromPitchClass(12, true) = %q, want Unknown", got)
	}
	if got := FromPitchClass(-1, false); got != "Unknown" {
		t.Errorf("FromPitchClass(-1, false) = %q, want Unknown", got)
	}
}
