package brainpool

import (
	"math/big"
	"testing"
)

func TestP256r1Params(t *testing.T) {
	c := P256r1()
	params := c.Params()

	if params.BitSize != 256 {
		t.Fatalf("expected 256-bit curve, got %d", params.BitSize)
	}
	if params.Name != "brainpoolP256r1" {
		t.Fatalf("unexpected curve name %q", params.Name)
	}
	if params.P.Sign() == 0 || params.N.Sign() == 0 {
		t.Fatalf("expected non-zero field modulus and order")
	}
	if params.Gx.Sign() == 0 || params.Gy.Sign() == 0 {
		t.Fatalf("expected non-zero base point")
	}
}

func TestP256r1Singleton(t *testing.T) {
	if P256r1() != P256r1() {
		t.Fatalf("expected P256r1() to return the same curve instance")
	}
}

// TestP256r1BasePointIsOnCurve is the assertion that would have caught a
// curve defined with the wrong Weierstrass a: Brainpool's a is not -3, so a
// curve built on bare elliptic.CurveParams (whose generic arithmetic
// hardcodes a = -3) fails this check on its own published base point.
func TestP256r1BasePointIsOnCurve(t *testing.T) {
	c := P256r1()
	params := c.Params()
	if !c.IsOnCurve(params.Gx, params.Gy) {
		t.Fatalf("base point (Gx, Gy) does not satisfy y^2 = x^3 + a*x + b mod P")
	}
}

func TestP256r1DoubleMatchesAddToSelf(t *testing.T) {
	c := P256r1()
	params := c.Params()

	dx, dy := c.Double(params.Gx, params.Gy)
	if !c.IsOnCurve(dx, dy) {
		t.Fatalf("2*G is not on the curve")
	}
	ax, ay := c.Add(params.Gx, params.Gy, params.Gx, params.Gy)
	if dx.Cmp(ax) != 0 || dy.Cmp(ay) != 0 {
		t.Fatalf("Add(G, G) != Double(G): got (%x,%x) want (%x,%x)", ax, ay, dx, dy)
	}
}

func TestP256r1ScalarBaseMultMatchesRepeatedAddition(t *testing.T) {
	c := P256r1()
	params := c.Params()

	threeX, threeY := c.ScalarBaseMult(big.NewInt(3).Bytes())
	if !c.IsOnCurve(threeX, threeY) {
		t.Fatalf("3*G is not on the curve")
	}

	dx, dy := c.Double(params.Gx, params.Gy)
	sumX, sumY := c.Add(dx, dy, params.Gx, params.Gy)
	if threeX.Cmp(sumX) != 0 || threeY.Cmp(sumY) != 0 {
		t.Fatalf("ScalarBaseMult(3) != Double(G)+G: got (%x,%x) want (%x,%x)", threeX, threeY, sumX, sumY)
	}
}

func TestP256r1ScalarMultByOrderIsInfinity(t *testing.T) {
	c := P256r1()
	params := c.Params()

	x, y := c.ScalarMult(params.Gx, params.Gy, params.N.Bytes())
	if x.Sign() != 0 || y.Sign() != 0 {
		t.Fatalf("N*G should be the point at infinity, got (%x,%x)", x, y)
	}
}
