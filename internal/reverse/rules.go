package reverse

import "github.com/johnrsibert/adcomp/internal/tape"

// Operator derivative library: one rule per primitive kind, each a pure
// in-place accumulation into the operand rows of the partial matrix. Every
// rule is the exact adjoint of the order-d Taylor recursion the forward
// sweep uses for that kind, so the two sides agree coefficient for
// coefficient.
//
// Rules may consume the result's own partial row as scratch (division,
// power, the auxiliary-slot kinds); those rows are not part of the sweep's
// output contract.

// reverseAddvv handles z = x + y.
func reverseAddvv(d, iz int, arg []int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	px := partial.Row(arg[0])
	py := partial.Row(arg[1])
	for k := 0; k <= d; k++ {
		px[k] += pz[k]
		py[k] += pz[k]
	}
}

// reverseAddpv handles z = p + y.
func reverseAddpv(d, iz int, arg []int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	py := partial.Row(arg[1])
	for k := 0; k <= d; k++ {
		py[k] += pz[k]
	}
}

// reverseSubvv handles z = x - y.
func reverseSubvv(d, iz int, arg []int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	px := partial.Row(arg[0])
	py := partial.Row(arg[1])
	for k := 0; k <= d; k++ {
		px[k] += pz[k]
		py[k] -= pz[k]
	}
}

// reverseSubpv handles z = p - y.
func reverseSubpv(d, iz int, arg []int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	py := partial.Row(arg[1])
	for k := 0; k <= d; k++ {
		py[k] -= pz[k]
	}
}

// reverseSubvp handles z = x - p.
func reverseSubvp(d, iz int, arg []int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	px := partial.Row(arg[0])
	for k := 0; k <= d; k++ {
		px[k] += pz[k]
	}
}

// reverseMulvv handles z = x * y via the convolution
// z[j] = sum_{k<=j} x[k]*y[j-k].
func reverseMulvv(d, iz int, arg []int, taylor, partial tape.Coeffs) {
	x := taylor.Row(arg[0])
	y := taylor.Row(arg[1])
	pz := partial.Row(iz)
	px := partial.Row(arg[0])
	py := partial.Row(arg[1])
	for j := d; j >= 0; j-- {
		for k := 0; k <= j; k++ {
			px[k] += pz[j] * y[j-k]
			py[k] += pz[j] * x[j-k]
		}
	}
}

// reverseMulpv handles z = p * y.
func reverseMulpv(d, iz int, p float64, iy int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	py := partial.Row(iy)
	for k := 0; k <= d; k++ {
		py[k] += pz[k] * p
	}
}

// reverseDivvv handles z = x / y, forward recursion
// z[j] = (x[j] - sum_{k=1..j} y[k]*z[j-k]) / y[0].
// The result row pz is consumed as scratch.
func reverseDivvv(d, iz int, arg []int, taylor, partial tape.Coeffs) {
	y := taylor.Row(arg[1])
	z := taylor.Row(iz)
	pz := partial.Row(iz)
	px := partial.Row(arg[0])
	py := partial.Row(arg[1])
	for j := d; j >= 0; j-- {
		pz[j] /= y[0]
		px[j] += pz[j]
		for k := 1; k <= j; k++ {
			pz[j-k] -= pz[j] * y[k]
			py[k] -= pz[j] * z[j-k]
		}
		py[0] -= pz[j] * z[j]
	}
}

// reverseDivpv handles z = p / y; same as divvv minus the numerator row.
func reverseDivpv(d, iz int, arg []int, taylor, partial tape.Coeffs) {
	y := taylor.Row(arg[1])
	z := taylor.Row(iz)
	pz := partial.Row(iz)
	py := partial.Row(arg[1])
	for j := d; j >= 0; j-- {
		pz[j] /= y[0]
		for k := 1; k <= j; k++ {
			pz[j-k] -= pz[j] * y[k]
			py[k] -= pz[j] * z[j-k]
		}
		py[0] -= pz[j] * z[j]
	}
}

// reverseDivvp handles z = x / p.
func reverseDivvp(d, iz int, ix int, p float64, partial tape.Coeffs) {
	pz := partial.Row(iz)
	px := partial.Row(ix)
	for k := 0; k <= d; k++ {
		px[k] += pz[k] / p
	}
}

// reverseExp handles z = exp(x), forward recursion
// z[j] = (1/j) * sum_{k=1..j} k*x[k]*z[j-k].
func reverseExp(d, iz, ix int, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	z := taylor.Row(iz)
	pz := partial.Row(iz)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		pz[j] /= float64(j)
		for k := 1; k <= j; k++ {
			px[k] += pz[j] * float64(k) * z[j-k]
			pz[j-k] += pz[j] * float64(k) * x[k]
		}
	}
	px[0] += pz[0] * z[0]
}

// reverseLog handles z = log(x), forward recursion
// z[j] = (x[j] - (1/j) * sum_{k=1..j-1} k*z[k]*x[j-k]) / x[0].
func reverseLog(d, iz, ix int, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	z := taylor.Row(iz)
	pz := partial.Row(iz)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		pz[j] /= x[0]
		px[j] += pz[j]
		for k := 1; k < j; k++ {
			pz[k] -= pz[j] * float64(k) * x[j-k] / float64(j)
			px[j-k] -= pz[j] * float64(k) * z[k] / float64(j)
		}
		px[0] -= pz[j] * z[j]
	}
	px[0] += pz[0] / x[0]
}

// reverseSqrt handles z = sqrt(x), forward recursion
// z[j] = (x[j] - sum_{k=1..j-1} z[k]*z[j-k]) / (2*z[0]).
func reverseSqrt(d, iz, ix int, taylor, partial tape.Coeffs) {
	z := taylor.Row(iz)
	pz := partial.Row(iz)
	px := partial.Row(ix)
	for j := d; j >= 1; j-- {
		pz[j] /= z[0]
		pz[0] -= pz[j] * z[j]
		px[j] += pz[j] / 2
		for k := 1; k < j; k++ {
			pz[k] -= pz[j] * z[j-k]
		}
	}
	px[0] += pz[0] / (2 * z[0])
}

// reverseAbs handles z = |x|. The sign is decided by the first nonzero
// Taylor coefficient; if all orders vanish the derivative contributes
// nothing.
func reverseAbs(d, iz, ix int, taylor, partial tape.Coeffs) {
	x := taylor.Row(ix)
	sign := 0.0
	for k := 0; k <= d; k++ {
		if x[k] > 0 {
			sign = 1
			break
		}
		if x[k] < 0 {
			sign = -1
			break
		}
	}
	if sign == 0 {
		return
	}
	pz := partial.Row(iz)
	px := partial.Row(ix)
	for k := 0; k <= d; k++ {
		px[k] += sign * pz[k]
	}
}

// reversePowvv handles z = pow(x, y), recorded as the three-slot composite
// log, product, exp. The sub-rules run in backward tape order.
func reversePowvv(d, iz int, arg []int, taylor, partial tape.Coeffs) {
	base := iz - 2 // log(x) slot; product slot is iz-1
	reverseExp(d, iz, iz-1, taylor, partial)
	reverseMulvv(d, iz-1, []int{base, arg[1]}, taylor, partial)
	reverseLog(d, base, arg[0], taylor, partial)
}

// reversePowvp handles z = pow(x, p).
func reversePowvp(d, iz int, ix int, p float64, taylor, partial tape.Coeffs) {
	base := iz - 2
	reverseExp(d, iz, iz-1, taylor, partial)
	reverseMulpv(d, iz-1, p, base, partial)
	reverseLog(d, base, ix, taylor, partial)
}

// reversePowpv handles z = pow(p, y). The log slot holds the constant
// log(p); its adjoint has nowhere to flow.
func reversePowpv(d, iz int, iy int, taylor, partial tape.Coeffs) {
	base := iz - 2
	reverseExp(d, iz, iz-1, taylor, partial)
	reverseMulvv(d, iz-1, []int{base, iy}, taylor, partial)
}

// reverseCSum handles a cumulative summation record: order-wise
// pass-through to the added variables, negated for the subtracted ones.
func reverseCSum(d, iz int, arg []int, partial tape.Coeffs) {
	pz := partial.Row(iz)
	nAdd, nSub := arg[1], arg[2]
	for i := 0; i < nAdd; i++ {
		px := partial.Row(arg[3+i])
		for k := 0; k <= d; k++ {
			px[k] += pz[k]
		}
	}
	for i := 0; i < nSub; i++ {
		px := partial.Row(arg[3+nAdd+i])
		for k := 0; k <= d; k++ {
			px[k] -= pz[k]
		}
	}
}

// reverseLoad handles an indexed load, resolved through the load-alias
// table to the variable the forward sweep actually read. Parameter loads
// (alias 0) receive no adjoint.
func reverseLoad(d, iz, aliasVar int, partial tape.Coeffs) {
	if aliasVar <= 0 {
		return
	}
	pz := partial.Row(iz)
	px := partial.Row(aliasVar)
	for k := 0; k <= d; k++ {
		px[k] += pz[k]
	}
}

// compareHolds evaluates a recorded comparison at order zero.
func compareHolds(cmp int, left, right float64) (bool, bool) {
	switch cmp {
	case tape.CmpLt:
		return left < right, true
	case tape.CmpLe:
		return left <= right, true
	case tape.CmpEq:
		return left == right, true
	case tape.CmpGe:
		return left >= right, true
	case tape.CmpGt:
		return left > right, true
	case tape.CmpNe:
		return left != right, true
	}
	return false, false
}

// reverseCondExp routes the whole adjoint vector to whichever branch the
// order-zero comparison selected at forward time; the inactive branch and
// parameter operands receive nothing.
func reverseCondExp(d, iz int, arg []int, params []float64, taylor, partial tape.Coeffs) bool {
	flags := arg[1]
	left := operandValue(arg[2], flags&tape.FlagLeftVar != 0, params, taylor)
	right := operandValue(arg[3], flags&tape.FlagRightVar != 0, params, taylor)
	holds, known := compareHolds(arg[0], left, right)
	if !known {
		return false
	}
	pz := partial.Row(iz)
	if holds && flags&tape.FlagTrueVar != 0 {
		px := partial.Row(arg[4])
		for k := 0; k <= d; k++ {
			px[k] += pz[k]
		}
	}
	if !holds && flags&tape.FlagFalseVar != 0 {
		px := partial.Row(arg[5])
		for k := 0; k <= d; k++ {
			px[k] += pz[k]
		}
	}
	return true
}

// operandValue reads the order-zero value of a variable or parameter operand.
func operandValue(index int, isVar bool, params []float64, taylor tape.Coeffs) float64 {
	if isVar {
		return taylor.At(index, 0)
	}
	return params[index]
}
