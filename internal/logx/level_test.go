package logx

import "testing"

func TestAcceptsMatchesOriginalThresholdFormula(t *testing.T) {
	cases := []struct {
		configured Level
		record     Level
		want       bool
	}{
		{LevelOff, LevelHigh, false},
		{LevelOff, LevelLow, false},
		{LevelLow, LevelHigh, true},
		{LevelLow, LevelMedium, false},
		{LevelLow, LevelLow, false},
		{LevelMedium, LevelHigh, true},
		{LevelMedium, LevelMedium, true},
		{LevelMedium, LevelLow, false},
		{LevelHigh, LevelHigh, true},
		{LevelHigh, LevelMedium, true},
		{LevelHigh, LevelLow, true},
	}
	for _, c := range cases {
		got := accepts(c.configured, c.record)
		if got != c.want {
			t.Errorf("accepts(configured=%s, record=%s) = %v, want %v", c.configured, c.record, got, c.want)
		}
	}
}

func TestParseLevelCaseInsensitive(t *testing.T) {
	for _, s := range []string{"high", "HIGH", " High "} {
		l, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if l != LevelHigh {
			t.Fatalf("ParseLevel(%q) = %v, want LevelHigh", s, l)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
