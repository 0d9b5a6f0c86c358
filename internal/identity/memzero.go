package identity

import (
	"crypto/rsa"
	"crypto/subtle"
	"math/big"
)

// wipe overwrites b with zeros.
func wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// zeroInt overwrites the limbs backing n and then sets it to zero.
func zeroInt(n *big.Int) {
	if n == nil {
		return
	}
	limbs := n.Bits()
	for i := range limbs {
		limbs[i] = 0
	}
	n.SetInt64(0)
}

// zeroPrivate wipes the secret components of priv.  The modulus and
// exponent are public and left alone.
func zeroPrivate(priv *rsa.PrivateKey) {
	zeroInt(priv.D)
	for _, p := range priv.Primes {
		zeroInt(p)
	}
	zeroInt(priv.Precomputed.Dp)
	zeroInt(priv.Precomputed.Dq)
	zeroInt(priv.Precomputed.Qinv)
	for i := range priv.Precomputed.CRTValues {
		zeroInt(priv.Precomputed.CRTValues[i].Exp)
		zeroInt(priv.Precomputed.CRTValues[i].Coeff)
		zeroInt(priv.Precomputed.CRTValues[i].R)
	}
}
