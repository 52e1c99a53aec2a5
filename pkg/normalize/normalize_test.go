package normalize

import "testing"

func TestNormalize_Idempotent(t *testing.T) {
	n := New(Options{}, true)

	cases := []string{
		"Shape of You (Acoustic)",
		"BOHEMIAN RHAPSODY - Remastered 2011",
		"See You Again feat. Charlie Puth",
		"Ｈｅｌｌｏ Ｗｏｒｌｄ",
		"",
		"   lots   of   space   ",
	}

	for _, c := range cases {
		once := n.Normalize(c)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize(%q) not idempotent: %q != %q", c, once, twice)
		}
	}
}

func TestNormalize_LowercaseAndWidth(t *testing.T) {
	n := New(Options{}, false)

	got := n.Normalize("ＡＢＣ")
	if got != "abc" {
		t.Errorf("Normalize(full-width ABC) = %q, want %q", got, "abc")
	}
}

func TestNormalize_StripsFeatAndRemaster(t *testing.T) {
	n := New(Options{}, false)

	got := n.Normalize("Song Title feat. Someone")
	if got != "song title someone" {
		t.Errorf("Normalize(feat.) = %q, want %q", got, "song title someone")
	}

	got = n.Normalize("Song Title Remastered")
	if got != "song title" {
		t.Errorf("Normalize(remastered) = %q, want %q", got, "song title")
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	n := New(Options{}, false)

	got := n.Normalize("  too    many   spaces  ")
	if got != "too many spaces" {
		t.Errorf("Normalize(spaces) = %q, want %q", got, "too many spaces")
	}
}

func TestNormalize_CacheReturnsSameResult(t *testing.T) {
	n := New(Options{CacheSize: 8}, true)

	first := n.Normalize("Cached Input")
	second := n.Normalize("Cached Input")
	if first != second {
		t.Errorf("cached normalize mismatch: %q != %q", first, second)
	}
}

func TestSplitMainAndBracketed(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantMain     string
		wantBrackets []string
	}{
		{
			name:         "single trailing bracket",
			input:        "shape of you (acoustic)",
			wantMain:     "shape of you",
			wantBrackets: []string{"(acoustic)"},
		},
		{
			name:         "no brackets",
			input:        "bohemian rhapsody",
			wantMain:     "bohemian rhapsody",
			wantBrackets: nil,
		},
		{
			name:         "multiple bracket groups",
			input:        "song [remix] (live)",
			wantMain:     "song",
			wantBrackets: []string{"[remix]", "(live)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, brackets := SplitMainAndBracketed(tt.input)
			if main != tt.wantMain {
				t.Errorf("main = %q, want %q", main, tt.wantMain)
			}
			if len(brackets) != len(tt.wantBrackets) {
				t.Fatalf("brackets = %v, want %v", brackets, tt.wantBrackets)
			}
			for i := range brackets {
				if brackets[i] != tt.wantBrackets[i] {
					t.Errorf("brackets[%d] = %q, want %q", i, brackets[i], tt.wantBrackets[i])
				}
			}
		})
	}
}

func TestContainsCJK(t *testing.T) {
	if !ContainsCJK("爱我别走") {
		t.Error("expected CJK text to be detected")
	}
	if ContainsCJK("Shape of You") {
		t.Error("expected non-CJK text to not be detected")
	}
}
