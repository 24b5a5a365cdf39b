package crypto

import "math/big"

// dhGroupParams holds a named MODP group's prime modulus and generator.
type dhGroupParams struct {
	p *big.Int
	g *big.Int
}

// dhGroup is the RFC 3526 1536-bit MODP group (group 5), the group WSC
// uses for its Diffie-Hellman exchange.
var dhGroup = mustGroup(
	"FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1"+
		"29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD"+
		"EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245"+
		"E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED"+
		"EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D"+
		"C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F"+
		"83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D"+
		"670C354E 4ABC9804 F1746C08 CA237327 FFFFFFFF FFFFFFFF",
	2,
)

func mustGroup(hexModulus string, generator int64) dhGroupParams {
	p := new(big.Int)
	if _, ok := p.SetString(stripSpaces(hexModulus), 16); !ok {
		panic("crypto: invalid RFC 3526 modulus literal")
	}
	return dhGroupParams{p: p, g: big.NewInt(generator)}
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
