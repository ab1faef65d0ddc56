package config

import "testing"

func TestParseHexByteStringStripsColonsAndSpaces(t *testing.T) {
	got, err := parseHexByteString("k", "00:9f:ab")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := []byte{0x00, 0x9f, 0xab}
	if len(got) != len(want) {
		t.Fatalf("got %x", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %x, want %x", got, want)
		}
	}
}

func TestParseHexPairListRejectsEmpty(t *testing.T) {
	if _, err := parseHexPairList("k", ""); err == nil {
		t.Fatal("expected error for empty list")
	}
}

func TestParseHexPairListParsesMultiplePairs(t *testing.T) {
	got, err := parseHexPairList("k", "(0x00,0x9f),(0xC0,0x2F)")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 2 || got[0] != [2]uint8{0x00, 0x9f} || got[1] != [2]uint8{0xc0, 0x2f} {
		t.Fatalf("got %v", got)
	}
}

func TestParseDecimalPairListRejectsOutOfRange(t *testing.T) {
	if _, err := parseDecimalPairList("k", "(4,0)", 3, 6); err == nil {
		t.Fatal("expected error: signature field exceeds max 3")
	}
}

func TestParseVersionPair(t *testing.T) {
	major, minor, err := parseVersionPair("k", "(3, 4)")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if major != 3 || minor != 4 {
		t.Fatalf("got (%d,%d)", major, minor)
	}
}

func TestSplitTopLevelKeepsPairsIntact(t *testing.T) {
	got := splitTopLevel("(0x00,0x9f),(0xc0,0x2f)")
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestParseBoolRejectsGarbage(t *testing.T) {
	if _, err := parseBool("k", "yes"); err == nil {
		t.Fatal("expected error for non-true/false value")
	}
}
