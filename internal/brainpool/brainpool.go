// Package brainpool defines the BrainpoolP256r1 elliptic curve (RFC 5639)
// as a full crypto/elliptic.Curve implementation. The standard library only
// special-cases the NIST curves, and no dependency in the module's stack
// ships Brainpool curve parameters, so the domain primitive is hand-built
// here directly.
//
// Brainpool's Weierstrass coefficient a is not -3 (RFC 5639 §3.4), so the
// generic elliptic.CurveParams point arithmetic — which hardcodes a = -3 in
// its Add/Double/IsOnCurve formulas — cannot represent this curve: its own
// base point fails CurveParams' IsOnCurve. curve below carries its own a and
// implements Jacobian point doubling/addition with the general-a formulas
// (Bernstein-Lange "dbl-2007-bl" for doubling; the standard a-independent
// "add-2007-bl" for addition), so IsOnCurve and every Add/Double/ScalarMult/
// ScalarBaseMult call operates on the real Brainpool curve.
package brainpool

import (
	"crypto/elliptic"
	"math/big"
	"sync"
)

var (
	p256r1     *curve
	initP256r1 sync.Once
)

// P256r1 returns the BrainpoolP256r1 curve.
func P256r1() elliptic.Curve {
	initP256r1.Do(initBrainpoolP256r1)
	return p256r1
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("brainpool: invalid curve constant")
	}
	return v
}

func initBrainpoolP256r1() {
	// RFC 5639 section 3.4, brainpoolP256r1.
	params := &elliptic.CurveParams{Name: "brainpoolP256r1"}
	params.P = mustHex("A9FB57DBA1EEA9BC3E660A909D838D726E3BF623D52620282013481D1F6E5377")
	params.N = mustHex("A9FB57DBA1EEA9BC3E660A909D838D718C397AA3B561A6F7901E0E82974856A7")
	params.B = mustHex("26DC5C6CE94A4B44F330B5D9BBD77CBF958416295CF7E1CE6BCCDC18FF8C07B6")
	params.Gx = mustHex("8BD2AEB9CB7E57CB2C4B482FFC81B7AFB9DE27E1E3BD23C23A4453BD9ACE3262")
	params.Gy = mustHex("547EF835C3DAC4FD97F8461A14611DC9C27745132DED8E545C1D54C72F046997")
	params.BitSize = 256
	a := mustHex("7D5A0975FC2C3057EEF67530417AFFE7FB8055C126DC5C6CE94A4B44F330B5D9")
	p256r1 = &curve{params: params, a: a}
}
