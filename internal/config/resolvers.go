package config

import (
	"strings"

	"github.com/BSI-Bund/TaSK/internal/errs"
)

// supportedGroup names one IANA "TLS Supported Groups" registry entry,
// grounded on TlsSupportedGroup::getPredefined (original_source), which
// accepts both the canonical name and a documented alias (P-256 for
// secp256r1, etc.).
type supportedGroup struct {
	id      uint16
	names   []string // canonical name first, then aliases
	rejected bool    // "arbitrary_explicit_*" curves: recognised but unusable
}

var supportedGroupTable = []supportedGroup{
	{id: 1, names: []string{"sect163k1"}},
	{id: 2, names: []string{"sect163r1"}},
	{id: 3, names: []string{"sect163r2"}},
	{id: 4, names: []string{"sect193r1"}},
	{id: 5, names: []string{"sect193r2"}},
	{id: 6, names: []string{"sect233k1"}},
	{id: 7, names: []string{"sect233r1"}},
	{id: 8, names: []string{"sect239k1"}},
	{id: 9, names: []string{"sect283k1"}},
	{id: 10, names: []string{"sect283r1"}},
	{id: 11, names: []string{"sect409k1"}},
	{id: 12, names: []string{"sect409r1"}},
	{id: 13, names: []string{"sect571k1"}},
	{id: 14, names: []string{"sect571r1"}},
	{id: 15, names: []string{"secp160k1"}},
	{id: 16, names: []string{"secp160r1"}},
	{id: 17, names: []string{"secp160r2"}},
	{id: 18, names: []string{"secp192k1"}},
	{id: 19, names: []string{"secp192r1", "P-192"}},
	{id: 20, names: []string{"secp224k1"}},
	{id: 21, names: []string{"secp224r1", "P-224"}},
	{id: 22, names: []string{"secp256k1"}},
	{id: 23, names: []string{"secp256r1", "P-256"}},
	{id: 24, names: []string{"secp384r1", "P-384"}},
	{id: 25, names: []string{"secp521r1", "P-521"}},
	{id: 26, names: []string{"brainpoolP256r1"}},
	{id: 27, names: []string{"brainpoolP384r1"}},
	{id: 28, names: []string{"brainpoolP512r1"}},
	{id: 29, names: []string{"x25519", "X25519"}},
	{id: 30, names: []string{"x448", "X448"}},
	{id: 31, names: []string{"brainpoolP256r1tls13"}},
	{id: 32, names: []string{"brainpoolP384r1tls13"}},
	{id: 33, names: []string{"brainpoolP512r1tls13"}},
	{id: 256, names: []string{"ffdhe2048"}},
	{id: 257, names: []string{"ffdhe3072"}},
	{id: 258, names: []string{"ffdhe4096"}},
	{id: 259, names: []string{"ffdhe6144"}},
	{id: 260, names: []string{"ffdhe8192"}},
	{id: 65281, names: []string{"arbitrary_explicit_prime_curves"}, rejected: true},
	{id: 65282, names: []string{"arbitrary_explicit_char2_curves"}, rejected: true},
}

// resolveSupportedGroup looks up a single tlsSupportedGroups token, which
// may be the canonical registry name, a documented alias, or a bare
// numeric identifier (decimal or 0x-prefixed hex).
func resolveSupportedGroup(token string) (uint16, error) {
	for _, g := range supportedGroupTable {
		for _, n := range g.names {
			if strings.EqualFold(n, token) {
				if g.rejected {
					return 0, errUnsupportedGroup(token)
				}
				return g.id, nil
			}
		}
	}
	if n, err := parseUintToken(token); err == nil {
		return uint16(n), nil
	}
	return 0, errUnsupportedGroup(token)
}

func errUnsupportedGroup(token string) error {
	return &errs.ConfigError{Key: "tlsSupportedGroups", Reason: "unknown or unsupported group: " + token}
}

// dhGroupTable holds the predefined server-side DH groups: the RFC 3526
// MODP groups of 1536 and 2048 bits, keyed by bit size, with the
// modp1536/modp2048 aliases below. No other RFC 3526 size and no RFC 5114
// pair is present, so any other token is rejected; see DESIGN.md for why
// the larger RFC 3526 groups (3072 and up) are absent rather than risk a
// fabricated constant.
var dhGroupTable = map[string]struct {
	name     string
	primeHex string
	genHex   string
}{
	"1536": {
		name: "modp1536",
		primeHex: "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
			"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
			"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
			"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
			"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
			"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
			"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
			"670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF",
		genHex: "02",
	},
	"2048": {
		name: "modp2048",
		primeHex: "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
			"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
			"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
			"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
			"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
			"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
			"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
			"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
			"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
			"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
			"15728E5A8AACAA68FFFFFFFFFFFFFFFF",
		genHex: "02",
	},
}

var dhGroupAliases = map[string]string{
	"modp1536": "1536",
	"modp2048": "2048",
}

func resolveDHGroup(token string) (primeHex, genHex, canonicalName string, err error) {
	key := token
	if alias, ok := dhGroupAliases[strings.ToLower(token)]; ok {
		key = alias
	}
	if g, ok := dhGroupTable[key]; ok {
		return g.primeHex, g.genHex, g.name, nil
	}
	return "", "", "", &errs.ConfigError{Key: "tlsServerDHParams", Reason: "unknown or unsupported DH group: " + token}
}
