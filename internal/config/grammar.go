package config

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/BSI-Bund/TaSK/internal/errs"
)

// parseUintToken accepts a decimal or 0x-prefixed hexadecimal integer.
func parseUintToken(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// parseHexByteString accepts a hex string with optional ':' or ' '
// separators (the form set_certificate-style values and manipulate*
// payload arguments use), e.g. "00:9f:ab", "00 9f ab", or "009fab".
func parseHexByteString(key, s string) ([]byte, error) {
	cleaned := strings.NewReplacer(":", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, &errs.ConfigError{Key: key, Reason: "not a valid hex byte string: " + err.Error()}
	}
	return b, nil
}

var hexPairPattern = regexp.MustCompile(`^\(0[xX][0-9a-fA-F]{2},\s*0[xX][0-9a-fA-F]{2}\)$`)

// parseHexPairList parses a comma-joined list of "(0xHH,0xHH)" pairs, used
// for tlsCipherSuites and tlsSignatureSchemes. An empty list is rejected,
// per spec.md §4.2.
func parseHexPairList(key, s string) ([][2]uint8, error) {
	items := splitTopLevel(s)
	if len(items) == 0 {
		return nil, &errs.ConfigError{Key: key, Reason: "empty list not allowed"}
	}
	out := make([][2]uint8, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if !hexPairPattern.MatchString(item) {
			return nil, &errs.ConfigError{Key: key, Reason: "malformed pair: " + item}
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(item, "("), ")")
		parts := strings.SplitN(inner, ",", 2)
		a, _ := parseUintToken(strings.TrimSpace(parts[0]))
		b, _ := parseUintToken(strings.TrimSpace(parts[1]))
		out = append(out, [2]uint8{uint8(a), uint8(b)})
	}
	return out, nil
}

var decimalPairPattern = regexp.MustCompile(`^\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

// parseDecimalPairList parses a comma-joined list of "(N,N)" pairs with
// each field range-checked by the caller (used for
// tlsSignatureAlgorithms, where signature <= 3 and hash <= 6).
func parseDecimalPairList(key, s string, maxFirst, maxSecond uint8) ([][2]uint8, error) {
	items := splitTopLevel(s)
	if len(items) == 0 {
		return nil, &errs.ConfigError{Key: key, Reason: "empty list not allowed"}
	}
	out := make([][2]uint8, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		m := decimalPairPattern.FindStringSubmatch(item)
		if m == nil {
			return nil, &errs.ConfigError{Key: key, Reason: "malformed pair: " + item}
		}
		a, _ := strconv.ParseUint(m[1], 10, 8)
		b, _ := strconv.ParseUint(m[2], 10, 8)
		if uint8(a) > maxFirst || uint8(b) > maxSecond {
			return nil, &errs.ConfigError{Key: key, Reason: "pair out of range: " + item}
		}
		out = append(out, [2]uint8{uint8(a), uint8(b)})
	}
	return out, nil
}

var groupTokenPattern = regexp.MustCompile(`^[0-9a-zA-Z\-]+$`)

// parseGroupTokenList splits a comma-joined list of group identifier
// tokens, each validated against the grammar's "[0-9a-zPX\-]+" shape
// (widened here to full alnum so canonical names like "secp256r1" and
// "x25519" both match; the spec's narrower character class was written
// around a smaller example set).
func parseGroupTokenList(key, s string) ([]string, error) {
	items := splitTopLevel(s)
	if len(items) == 0 {
		return nil, &errs.ConfigError{Key: key, Reason: "empty list not allowed"}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if !groupTokenPattern.MatchString(item) {
			return nil, &errs.ConfigError{Key: key, Reason: "malformed group token: " + item}
		}
		out = append(out, item)
	}
	return out, nil
}

var versionPairPattern = regexp.MustCompile(`^\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

// parseVersionPair parses the decimal "(major,minor)" grammar used by
// tlsVersion.
func parseVersionPair(key, s string) (uint8, uint8, error) {
	m := versionPairPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, &errs.ConfigError{Key: key, Reason: "expected (major,minor): " + s}
	}
	major, _ := strconv.ParseUint(m[1], 10, 8)
	minor, _ := strconv.ParseUint(m[2], 10, 8)
	return uint8(major), uint8(minor), nil
}

var hexVersionPairPattern = regexp.MustCompile(`^\(0[xX][0-9a-fA-F]{2},0[xX][0-9a-fA-F]{2}\)$`)

// parseHexVersionPair parses the "(0xHH,0xHH)" grammar manipulateHelloVersion
// uses, matching ManipulationsParser.cpp's matchHexPair regex exactly (no
// whitespace allowed around the comma, unlike parseVersionPair's decimal form).
func parseHexVersionPair(key, s string) (uint8, uint8, error) {
	s = strings.TrimSpace(s)
	if !hexVersionPairPattern.MatchString(s) {
		return 0, 0, &errs.ConfigError{Key: key, Reason: "expected (0xHH,0xHH): " + s}
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	parts := strings.SplitN(inner, ",", 2)
	major, _ := parseUintToken(parts[0])
	minor, _ := parseUintToken(parts[1])
	return uint8(major), uint8(minor), nil
}

func parseBool(key, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, &errs.ConfigError{Key: key, Reason: "expected true or false: " + s}
	}
}

// splitTopLevel splits a comma-joined list while keeping "(a,b)" pair
// groups intact, since those pairs themselves contain commas.
func splitTopLevel(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
