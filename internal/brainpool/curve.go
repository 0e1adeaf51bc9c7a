package brainpool

import (
	"crypto/elliptic"
	"math/big"
)

// curve is a short Weierstrass curve y^2 = x^3 + a*x + b (mod P) with an
// arbitrary a, implementing crypto/elliptic.Curve directly rather than
// through elliptic.CurveParams (whose built-in Add/Double/IsOnCurve assume
// a = -3). Point arithmetic is done in Jacobian coordinates (X, Y, Z)
// representing the affine point (X/Z^2, Y/Z^3); Z = 0 represents the point
// at infinity, consistent with the affine (0, 0) convention
// crypto/elliptic and crypto/ecdsa use for the identity element.
type curve struct {
	params *elliptic.CurveParams
	a      *big.Int
}

func (c *curve) Params() *elliptic.CurveParams { return c.params }

// IsOnCurve reports whether (x, y) satisfies y^2 = x^3 + a*x + b (mod P).
func (c *curve) IsOnCurve(x, y *big.Int) bool {
	p := c.params.P

	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, p)

	x3 := new(big.Int).Mul(x, x)
	x3.Mul(x3, x)
	ax := new(big.Int).Mul(c.a, x)
	x3.Add(x3, ax)
	x3.Add(x3, c.params.B)
	x3.Mod(x3, p)

	return y2.Cmp(x3) == 0
}

func isInfinity(x, y *big.Int) bool {
	return x.Sign() == 0 && y.Sign() == 0
}

// affineFromJacobian converts a Jacobian point back to affine coordinates,
// returning (0, 0) for the point at infinity.
func (c *curve) affineFromJacobian(x, y, z *big.Int) (*big.Int, *big.Int) {
	if z.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	p := c.params.P
	zinv := new(big.Int).ModInverse(z, p)
	zinv2 := new(big.Int).Mul(zinv, zinv)

	xOut := new(big.Int).Mul(x, zinv2)
	xOut.Mod(xOut, p)

	zinv3 := new(big.Int).Mul(zinv2, zinv)
	yOut := new(big.Int).Mul(y, zinv3)
	yOut.Mod(yOut, p)

	return xOut, yOut
}

// doubleJacobian doubles the Jacobian point (x, y, z) using the
// Bernstein-Lange "dbl-2007-bl" formulas, which hold for a general
// Weierstrass a rather than assuming a = -3.
func (c *curve) doubleJacobian(x, y, z *big.Int) (*big.Int, *big.Int, *big.Int) {
	p := c.params.P
	if z.Sign() == 0 || y.Sign() == 0 {
		return new(big.Int), new(big.Int), new(big.Int)
	}

	xx := new(big.Int).Mul(x, x)
	xx.Mod(xx, p)
	yy := new(big.Int).Mul(y, y)
	yy.Mod(yy, p)
	yyyy := new(big.Int).Mul(yy, yy)
	yyyy.Mod(yyyy, p)
	zz := new(big.Int).Mul(z, z)
	zz.Mod(zz, p)

	s := new(big.Int).Add(x, yy)
	s.Mul(s, s)
	s.Sub(s, xx)
	s.Sub(s, yyyy)
	s.Lsh(s, 1)
	s.Mod(s, p)

	m := new(big.Int).Mul(xx, big.NewInt(3))
	zz2 := new(big.Int).Mul(zz, zz)
	azz2 := new(big.Int).Mul(c.a, zz2)
	m.Add(m, azz2)
	m.Mod(m, p)

	t := new(big.Int).Mul(m, m)
	twoS := new(big.Int).Lsh(s, 1)
	t.Sub(t, twoS)
	t.Mod(t, p)

	x3 := new(big.Int).Set(t)

	y3 := new(big.Int).Sub(s, t)
	y3.Mul(y3, m)
	eightYYYY := new(big.Int).Lsh(yyyy, 3)
	y3.Sub(y3, eightYYYY)
	y3.Mod(y3, p)

	z3 := new(big.Int).Add(y, z)
	z3.Mul(z3, z3)
	z3.Sub(z3, yy)
	z3.Sub(z3, zz)
	z3.Mod(z3, p)

	return x3, y3, z3
}

// addJacobian adds two Jacobian points using the standard "add-2007-bl"
// formulas. These do not depend on a, so they hold for any Weierstrass
// curve.
func (c *curve) addJacobian(x1, y1, z1, x2, y2, z2 *big.Int) (*big.Int, *big.Int, *big.Int) {
	p := c.params.P
	if z1.Sign() == 0 {
		return new(big.Int).Set(x2), new(big.Int).Set(y2), new(big.Int).Set(z2)
	}
	if z2.Sign() == 0 {
		return new(big.Int).Set(x1), new(big.Int).Set(y1), new(big.Int).Set(z1)
	}

	z1z1 := new(big.Int).Mul(z1, z1)
	z1z1.Mod(z1z1, p)
	z2z2 := new(big.Int).Mul(z2, z2)
	z2z2.Mod(z2z2, p)

	u1 := new(big.Int).Mul(x1, z2z2)
	u1.Mod(u1, p)
	u2 := new(big.Int).Mul(x2, z1z1)
	u2.Mod(u2, p)

	z1z1z1 := new(big.Int).Mul(z1z1, z1)
	z2z2z2 := new(big.Int).Mul(z2z2, z2)
	s1 := new(big.Int).Mul(y1, z2z2z2)
	s1.Mod(s1, p)
	s2 := new(big.Int).Mul(y2, z1z1z1)
	s2.Mod(s2, p)

	h := new(big.Int).Sub(u2, u1)
	h.Mod(h, p)
	rDiff := new(big.Int).Sub(s2, s1)
	rDiff.Mod(rDiff, p)

	if h.Sign() == 0 {
		if rDiff.Sign() == 0 {
			// Same point: fall back to doubling.
			return c.doubleJacobian(x1, y1, z1)
		}
		// Opposite points: result is the point at infinity.
		return new(big.Int), new(big.Int), new(big.Int)
	}

	i := new(big.Int).Lsh(h, 1)
	i.Mul(i, i)
	i.Mod(i, p)
	j := new(big.Int).Mul(h, i)
	j.Mod(j, p)
	r := new(big.Int).Lsh(rDiff, 1)
	r.Mod(r, p)
	v := new(big.Int).Mul(u1, i)
	v.Mod(v, p)

	x3 := new(big.Int).Mul(r, r)
	twoV := new(big.Int).Lsh(v, 1)
	x3.Sub(x3, j)
	x3.Sub(x3, twoV)
	x3.Mod(x3, p)

	y3 := new(big.Int).Sub(v, x3)
	y3.Mul(y3, r)
	twoS1J := new(big.Int).Mul(s1, j)
	twoS1J.Lsh(twoS1J, 1)
	y3.Sub(y3, twoS1J)
	y3.Mod(y3, p)

	z3 := new(big.Int).Add(z1, z2)
	z3.Mul(z3, z3)
	z3.Sub(z3, z1z1)
	z3.Sub(z3, z2z2)
	z3.Mul(z3, h)
	z3.Mod(z3, p)

	return x3, y3, z3
}

// Add returns P1 + P2 in affine coordinates.
func (c *curve) Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	z1 := big.NewInt(1)
	if isInfinity(x1, y1) {
		z1 = big.NewInt(0)
	}
	z2 := big.NewInt(1)
	if isInfinity(x2, y2) {
		z2 = big.NewInt(0)
	}
	x3, y3, z3 := c.addJacobian(x1, y1, z1, x2, y2, z2)
	return c.affineFromJacobian(x3, y3, z3)
}

// Double returns 2*P1 in affine coordinates.
func (c *curve) Double(x1, y1 *big.Int) (*big.Int, *big.Int) {
	z1 := big.NewInt(1)
	if isInfinity(x1, y1) {
		z1 = big.NewInt(0)
	}
	x3, y3, z3 := c.doubleJacobian(x1, y1, z1)
	return c.affineFromJacobian(x3, y3, z3)
}

// ScalarMult returns k*(Bx, By) via left-to-right double-and-add over
// Jacobian coordinates, general-a throughout.
func (c *curve) ScalarMult(Bx, By *big.Int, k []byte) (*big.Int, *big.Int) {
	bz := big.NewInt(1)
	x, y, z := new(big.Int), new(big.Int), new(big.Int)

	for _, b := range k {
		for bit := 0; bit < 8; bit++ {
			x, y, z = c.doubleJacobian(x, y, z)
			if b&0x80 != 0 {
				x, y, z = c.addJacobian(x, y, z, Bx, By, bz)
			}
			b <<= 1
		}
	}
	return c.affineFromJacobian(x, y, z)
}

// ScalarBaseMult returns k*G in affine coordinates.
func (c *curve) ScalarBaseMult(k []byte) (*big.Int, *big.Int) {
	return c.ScalarMult(c.params.Gx, c.params.Gy, k)
}
