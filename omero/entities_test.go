package omero

import "testing"

func TestIndex(t *testing.T) {
	if Unset.IsSet() {
		t.Errorf("Unset should not be set")
	}
	if Unset.String() != "" {
		t.Errorf("Unset should print blank, got %q", Unset.String())
	}
	zero := NewIndex(0)
	if !zero.IsSet() {
		t.Errorf("plane 0 must be distinct from unset")
	}
	if zero.String() != "1" {
		t.Errorf("expected 1-based output, got %q", zero.String())
	}
}

func TestParseDataType(t *testing.T) {
	for in, want := range map[string]DataType{
		"Project": ProjectType,
		"dataset": DatasetType,
		" IMAGE ": ImageType,
		"Plate":   PlateType,
	} {
		got, err := ParseDataType(in)
		if err != nil || got != want {
			t.Errorf("ParseDataType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDataType("Screen"); err == nil {
		t.Errorf("expected error for unsupported data type")
	}
}

func TestWellLabel(t *testing.T) {
	w := Well{Row: 1, Column: 2}
	if w.Label() != "B3" {
		t.Errorf("expected B3, got %s", w.Label())
	}
}

func TestSanitize(t *testing.T) {
	if got := QuoteField("a,b"); got != `"a.b"` {
		t.Errorf("bad quoted field: %s", got)
	}
	if got := SanitizeField("GFP, 488"); got != "GFP. 488" {
		t.Errorf("bad sanitized field: %s", got)
	}
}
