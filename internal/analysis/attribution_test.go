package analysis

import "testing"

func TestExtractSourceNameLabel(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"Name: Dana Whitfield\nThe export keeps failing.", "Dana Whitfield"},
		{"From: Marcus\nWe cannot finish the integration.", "Marcus"},
		{"Customer: Priya Raman\nPlease add SSO support.", "Priya Raman"},
		{"Submitted by: Elena Vasquez\nGreat improvement on search.", "Elena Vasquez"},
	}
	for _, tc := range cases {
		name, ok := ExtractSourceName(tc.content)
		if !ok {
			t.Errorf("expected attribution for %q", tc.content)
			continue
		}
		if name != tc.want {
			t.Errorf("expected %q, got %q", tc.want, name)
		}
	}
}

func TestExtractSourceNameSignature(t *testing.T) {
	content := "The new dashboard is much faster now.\n\nThanks,\nJordan Lee"
	name, ok := ExtractSourceName(content)
	if !ok || name != "Jordan Lee" {
		t.Errorf("expected Jordan Lee, got %q (ok=%v)", name, ok)
	}
}

func TestExtractSourceNameQuoteAttribution(t *testing.T) {
	content := `"The setup flow is impossible to follow" — Sam Porter`
	name, ok := ExtractSourceName(content)
	if !ok || name != "Sam Porter" {
		t.Errorf("expected Sam Porter, got %q (ok=%v)", name, ok)
	}
}

func TestExtractSourceNameSaidPattern(t *testing.T) {
	content := "During the call Maria Santos mentioned the billing page is confusing."
	name, ok := ExtractSourceName(content)
	if !ok || name != "Maria Santos" {
		t.Errorf("expected Maria Santos, got %q (ok=%v)", name, ok)
	}
}

func TestExtractSourceNameFirstLine(t *testing.T) {
	content := "Alex Morgan\nThe API rate limits are too aggressive for our use case."
	name, ok := ExtractSourceName(content)
	if !ok || name != "Alex Morgan" {
		t.Errorf("expected Alex Morgan, got %q (ok=%v)", name, ok)
	}
}

func TestPatternSourceNameRejectsStopwords(t *testing.T) {
	// "The Customer" matches the name shape but is not a name; the
	// label branch must reject it rather than attribute to it. The
	// pattern stage is checked directly so the outcome does not depend
	// on the NER fallback.
	content := "Name: The Customer\nEverything is broken."
	if name, ok := patternSourceName(content); ok {
		t.Errorf("expected no attribution, got %q", name)
	}
}
