package reverse

import "github.com/johnrsibert/adcomp/internal/tape"

// The trigonometric, hyperbolic and inverse-trigonometric kinds record two
// coupled variable slots: the result plus an auxiliary (cos for sin, z*z
// for tan, sqrt(1-x*x) for asin, ...). Their forward recursions advance
// both rows together, so the reverse rules accumulate through both partial
// rows, consuming them as scratch.

// reverseSinCos handles Sin and Cos records. sIdx and cIdx name the sine
// and cosine coefficient rows; which of the two is the operation's result
// does not matter to the recursion, the forward coupling is
//
//	s[j] =  (1/j) * sum_{k=1..j} k*x[k]*c[j-k]
//	c[j] = -(1/j) * sum_{k=1..j} k*x[k]*s[j-k]
func reverseSinCos(d, sIdx, cIdx, ix int, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	s := taylor.Row(sIdx)
	c := taylor.Row(cIdx)
	ps := partial.Row(sIdx)
	pc := partial.Row(cIdx)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		ps[j] /= float64(j)
		pc[j] /= float64(j)
		for k := 1; k <= j; k++ {
			fk := float64(k)
			px[k] += ps[j]*fk*c[j-k] - pc[j]*fk*s[j-k]
			ps[j-k] -= pc[j] * fk * x[k]
			pc[j-k] += ps[j] * fk * x[k]
		}
	}
	px[0] += ps[0]*c[0] - pc[0]*s[0]
}

// reverseSinhCosh handles Sinh and Cosh records; same shape as
// reverseSinCos with the hyperbolic (all-positive) coupling.
func reverseSinhCosh(d, sIdx, cIdx, ix int, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	s := taylor.Row(sIdx)
	c := taylor.Row(cIdx)
	ps := partial.Row(sIdx)
	pc := partial.Row(cIdx)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		ps[j] /= float64(j)
		pc[j] /= float64(j)
		for k := 1; k <= j; k++ {
			fk := float64(k)
			px[k] += ps[j]*fk*c[j-k] + pc[j]*fk*s[j-k]
			ps[j-k] += pc[j] * fk * x[k]
			pc[j-k] += ps[j] * fk * x[k]
		}
	}
	px[0] += ps[0]*c[0] + pc[0]*s[0]
}

// reverseTanFamily handles Tan (sign +1) and Tanh (sign -1): result z at
// iz, auxiliary y = z*z at iz-1, forward coupling
//
//	z[j] = x[j] + sign*(1/j) * sum_{k=1..j} k*x[k]*y[j-k]
//	y[j] = sum_{k=0..j} z[k]*z[j-k]
func reverseTanFamily(d, iz, ix int, sign float64, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	z := taylor.Row(iz)
	y := taylor.Row(iz - 1)
	pz := partial.Row(iz)
	py := partial.Row(iz - 1)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		// y[j] is computed after z[j] in the forward order, so its
		// adjoint flows into the result row first.
		for k := 0; k <= j; k++ {
			pz[k] += py[j] * 2 * z[j-k]
		}
		px[j] += pz[j]
		a := pz[j] / float64(j)
		for k := 1; k <= j; k++ {
			px[k] += sign * a * float64(k) * y[j-k]
			py[j-k] += sign * a * float64(k) * x[k]
		}
	}
	pz[0] += py[0] * 2 * z[0]
	px[0] += pz[0] * (1 + sign*y[0])
}

// reverseAsinFamily handles Asin (sgn +1) and Acos (sgn -1): result z at
// iz, auxiliary b = sqrt(1-x*x) at iz-1, forward coupling
//
//	z[j] = (sgn*x[j] - (1/j) * sum_{k=1..j-1} k*z[k]*b[j-k]) / b[0]
//	b[j] = (u[j] - sum_{k=1..j-1} b[k]*b[j-k]) / (2*b[0])
//	u[j] = -sum_{k=0..j} x[k]*x[j-k]
func reverseAsinFamily(d, iz, ix int, sgn float64, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	z := taylor.Row(iz)
	b := taylor.Row(iz - 1)
	pz := partial.Row(iz)
	pb := partial.Row(iz - 1)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		a := pz[j] / b[0]
		px[j] += sgn * a
		for k := 1; k < j; k++ {
			pz[k] -= a * float64(k) * b[j-k] / float64(j)
			pb[j-k] -= a * float64(k) * z[k] / float64(j)
		}
		pb[0] -= a * z[j]

		c := pb[j] / (2 * b[0])
		for k := 1; k < j; k++ {
			pb[k] -= 2 * c * b[j-k]
		}
		pb[0] -= 2 * c * b[j]
		for k := 0; k <= j; k++ {
			px[k] -= 2 * c * x[j-k]
		}
	}
	px[0] += sgn * pz[0] / b[0]
	px[0] -= pb[0] * x[0] / b[0]
}

// reverseAtan handles Atan: result z at iz, auxiliary b = 1+x*x at iz-1,
// forward coupling
//
//	z[j] = (x[j] - (1/j) * sum_{k=1..j-1} k*z[k]*b[j-k]) / b[0]
//	b[j] = sum_{k=0..j} x[k]*x[j-k]        (j >= 1)
func reverseAtan(d, iz, ix int, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	z := taylor.Row(iz)
	b := taylor.Row(iz - 1)
	pz := partial.Row(iz)
	pb := partial.Row(iz - 1)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		a := pz[j] / b[0]
		px[j] += a
		for k := 1; k < j; k++ {
			pz[k] -= a * float64(k) * b[j-k] / float64(j)
			pb[j-k] -= a * float64(k) * z[k] / float64(j)
		}
		pb[0] -= a * z[j]
		for k := 0; k <= j; k++ {
			px[k] += pb[j] * 2 * x[j-k]
		}
	}
	px[0] += pz[0] / b[0]
	px[0] += pb[0] * 2 * x[0]
}
