package reverse

import (
	"math"
	"testing"

	"github.com/johnrsibert/adcomp/internal/tape"
)

// forwardOptions supplies the collaborators a forward sweep would resolve
// at replay time: load aliases, discrete functions and atomic forward
// callbacks.
type forwardOptions struct {
	loadVar  []int
	discrete map[int]func(float64) float64
	atomics  map[int]func(d int, argTaylor []float64, m int) []float64
}

// forwardTaylor propagates Taylor coefficients of orders 0..d through rec,
// given one coefficient row per independent variable. It stands in for the
// forward sweep, which the reverse engine treats as an external
// collaborator, and implements the same per-operator recursions the
// derivative rules invert. Load records with alias zero produce a zero
// row.
func forwardTaylor(t *testing.T, rec *tape.Recording, d int, indep [][]float64, fo forwardOptions) tape.Coeffs {
	t.Helper()
	if len(indep) != rec.NumInd() {
		t.Fatalf("forwardTaylor: %d independent rows, recording has %d", len(indep), rec.NumInd())
	}
	k1 := d + 1
	ty := tape.NewCoeffs(rec.NumVar(), k1)
	par := rec.Parameters()

	constRow := func(p float64) []float64 {
		row := make([]float64, k1)
		row[0] = p
		return row
	}
	row := func(o int, isVar bool) []float64 {
		if isVar {
			return ty.Row(o)
		}
		return constRow(par[o])
	}

	for i := 0; i < rec.NumOp(); i++ {
		op := rec.Op(i)
		iz := rec.ResVar(i)
		arg := rec.Args(i)
		z := ty.Row(iz)

		switch op {
		case tape.OpBegin, tape.OpEnd, tape.OpCom, tape.OpCSkip, tape.OpPri,
			tape.OpStpp, tape.OpStpv, tape.OpStvp, tape.OpStvv,
			tape.OpUsrap, tape.OpUsrav, tape.OpUsrrp, tape.OpUsrrv:
			// Markers and records resolved elsewhere.

		case tape.OpInv:
			copy(z, indep[iz-1])

		case tape.OpPar:
			z[0] = par[arg[0]]

		case tape.OpAddvv, tape.OpAddpv:
			x := row(arg[0], op == tape.OpAddvv)
			y := ty.Row(arg[1])
			for k := 0; k <= d; k++ {
				z[k] = x[k] + y[k]
			}

		case tape.OpSubvv, tape.OpSubpv, tape.OpSubvp:
			x := row(arg[0], op != tape.OpSubpv)
			y := row(arg[1], op != tape.OpSubvp)
			for k := 0; k <= d; k++ {
				z[k] = x[k] - y[k]
			}

		case tape.OpMulvv, tape.OpMulpv:
			x := row(arg[0], op == tape.OpMulvv)
			y := ty.Row(arg[1])
			fwdMul(d, x, y, z)

		case tape.OpDivvv, tape.OpDivpv, tape.OpDivvp:
			x := row(arg[0], op != tape.OpDivpv)
			y := row(arg[1], op != tape.OpDivvp)
			fwdDiv(d, x, y, z)

		case tape.OpExp:
			fwdExp(d, ty.Row(arg[0]), z)

		case tape.OpLog:
			fwdLog(d, ty.Row(arg[0]), z)

		case tape.OpSqrt:
			fwdSqrt(d, ty.Row(arg[0]), z)

		case tape.OpAbs:
			x := ty.Row(arg[0])
			s := 0.0
			for k := 0; k <= d && s == 0; k++ {
				if x[k] > 0 {
					s = 1
				} else if x[k] < 0 {
					s = -1
				}
			}
			for k := 0; k <= d; k++ {
				z[k] = s * x[k]
			}

		case tape.OpSign:
			x := ty.Row(arg[0])
			if x[0] > 0 {
				z[0] = 1
			} else if x[0] < 0 {
				z[0] = -1
			}

		case tape.OpSin:
			fwdSinCos(d, ty.Row(arg[0]), z, ty.Row(iz-1), -1)

		case tape.OpCos:
			fwdSinCos(d, ty.Row(arg[0]), ty.Row(iz-1), z, -1)

		case tape.OpSinh:
			fwdSinCos(d, ty.Row(arg[0]), z, ty.Row(iz-1), 1)

		case tape.OpCosh:
			fwdSinCos(d, ty.Row(arg[0]), ty.Row(iz-1), z, 1)

		case tape.OpTan:
			fwdTan(d, ty.Row(arg[0]), z, ty.Row(iz-1), 1)

		case tape.OpTanh:
			fwdTan(d, ty.Row(arg[0]), z, ty.Row(iz-1), -1)

		case tape.OpAsin:
			fwdAsinAcos(d, ty.Row(arg[0]), z, ty.Row(iz-1), 1)

		case tape.OpAcos:
			fwdAsinAcos(d, ty.Row(arg[0]), z, ty.Row(iz-1), -1)

		case tape.OpAtan:
			fwdAtan(d, ty.Row(arg[0]), z, ty.Row(iz-1))

		case tape.OpPowvv, tape.OpPowpv, tape.OpPowvp:
			x := row(arg[0], op != tape.OpPowpv)
			y := row(arg[1], op != tape.OpPowvp)
			l := ty.Row(iz - 2)
			w := ty.Row(iz - 1)
			fwdLog(d, x, l)
			fwdMul(d, l, y, w)
			fwdExp(d, w, z)

		case tape.OpCSum:
			z[0] = par[arg[0]]
			nAdd, nSub := arg[1], arg[2]
			for j := 0; j < nAdd; j++ {
				x := ty.Row(arg[3+j])
				for k := 0; k <= d; k++ {
					z[k] += x[k]
				}
			}
			for j := 0; j < nSub; j++ {
				x := ty.Row(arg[3+nAdd+j])
				for k := 0; k <= d; k++ {
					z[k] -= x[k]
				}
			}

		case tape.OpCExp:
			flags := arg[1]
			left := row(arg[2], flags&tape.FlagLeftVar != 0)[0]
			right := row(arg[3], flags&tape.FlagRightVar != 0)[0]
			holds, known := compareHolds(arg[0], left, right)
			if !known {
				t.Fatalf("forwardTaylor: CExp at %d has comparison code %d", i, arg[0])
			}
			if holds {
				copy(z, row(arg[4], flags&tape.FlagTrueVar != 0))
			} else {
				copy(z, row(arg[5], flags&tape.FlagFalseVar != 0))
			}

		case tape.OpDis:
			fn, ok := fo.discrete[arg[0]]
			if !ok {
				t.Fatalf("forwardTaylor: no discrete function %d", arg[0])
			}
			z[0] = fn(ty.At(arg[1], 0))

		case tape.OpLdp, tape.OpLdv:
			if v := fo.loadVar[arg[2]]; v > 0 {
				copy(z, ty.Row(v))
			}

		case tape.OpUser:
			if rec.UserBlockOpen(i) != i {
				break // closing marker
			}
			fn, ok := fo.atomics[arg[0]]
			if !ok {
				t.Fatalf("forwardTaylor: no atomic function %d", arg[0])
			}
			n, m := arg[2], arg[3]
			tx := make([]float64, n*k1)
			for j := 0; j < n; j++ {
				a := rec.Args(i + 1 + j)
				copy(tx[j*k1:(j+1)*k1], row(a[0], rec.Op(i+1+j) == tape.OpUsrav))
			}
			res := fn(d, tx, m)
			for j := 0; j < m; j++ {
				if rec.Op(i+1+n+j) == tape.OpUsrrv {
					copy(ty.Row(rec.ResVar(i+1+n+j)), res[j*k1:(j+1)*k1])
				}
			}

		default:
			t.Fatalf("forwardTaylor: unhandled operator %s at %d", op, i)
		}
	}
	return ty
}

func fwdMul(d int, x, y, z []float64) {
	for j := d; j >= 0; j-- {
		s := 0.0
		for k := 0; k <= j; k++ {
			s += x[k] * y[j-k]
		}
		z[j] = s
	}
}

func fwdDiv(d int, x, y, z []float64) {
	for j := 0; j <= d; j++ {
		s := x[j]
		for k := 1; k <= j; k++ {
			s -= y[k] * z[j-k]
		}
		z[j] = s / y[0]
	}
}

func fwdExp(d int, x, z []float64) {
	z[0] = math.Exp(x[0])
	for j := 1; j <= d; j++ {
		s := 0.0
		for k := 1; k <= j; k++ {
			s += float64(k) * x[k] * z[j-k]
		}
		z[j] = s / float64(j)
	}
}

func fwdLog(d int, x, z []float64) {
	z[0] = math.Log(x[0])
	for j := 1; j <= d; j++ {
		s := x[j]
		for k := 1; k < j; k++ {
			s -= float64(k) * z[k] * x[j-k] / float64(j)
		}
		z[j] = s / x[0]
	}
}

func fwdSqrt(d int, x, z []float64) {
	z[0] = math.Sqrt(x[0])
	for j := 1; j <= d; j++ {
		s := x[j]
		for k := 1; k < j; k++ {
			s -= z[k] * z[j-k]
		}
		z[j] = s / (2 * z[0])
	}
}

// fwdSinCos advances the coupled sine and cosine rows; hyper selects the
// sign of the cosine recursion (-1 circular, +1 hyperbolic).
func fwdSinCos(d int, x, s, c []float64, hyper float64) {
	if hyper > 0 {
		s[0], c[0] = math.Sinh(x[0]), math.Cosh(x[0])
	} else {
		s[0], c[0] = math.Sin(x[0]), math.Cos(x[0])
	}
	for j := 1; j <= d; j++ {
		sj, cj := 0.0, 0.0
		for k := 1; k <= j; k++ {
			sj += float64(k) * x[k] * c[j-k]
			cj += float64(k) * x[k] * s[j-k]
		}
		s[j] = sj / float64(j)
		c[j] = hyper * cj / float64(j)
	}
}

// fwdTan advances z = tan(x) (sign +1) or tanh(x) (sign -1) together with
// the auxiliary y = z*z.
func fwdTan(d int, x, z, y []float64, sign float64) {
	if sign > 0 {
		z[0] = math.Tan(x[0])
	} else {
		z[0] = math.Tanh(x[0])
	}
	y[0] = z[0] * z[0]
	for j := 1; j <= d; j++ {
		s := 0.0
		for k := 1; k <= j; k++ {
			s += float64(k) * x[k] * y[j-k]
		}
		z[j] = x[j] + sign*s/float64(j)
		s = 0.0
		for k := 0; k <= j; k++ {
			s += z[k] * z[j-k]
		}
		y[j] = s
	}
}

// fwdAsinAcos advances z = asin(x) (sgn +1) or acos(x) (sgn -1) together
// with the auxiliary b = sqrt(1 - x*x).
func fwdAsinAcos(d int, x, z, b []float64, sgn float64) {
	u := make([]float64, d+1)
	u[0] = 1 - x[0]*x[0]
	for j := 1; j <= d; j++ {
		for k := 0; k <= j; k++ {
			u[j] -= x[k] * x[j-k]
		}
	}
	fwdSqrt(d, u, b)
	if sgn > 0 {
		z[0] = math.Asin(x[0])
	} else {
		z[0] = math.Acos(x[0])
	}
	for j := 1; j <= d; j++ {
		s := sgn * x[j]
		for k := 1; k < j; k++ {
			s -= float64(k) * z[k] * b[j-k] / float64(j)
		}
		z[j] = s / b[0]
	}
}

// fwdAtan advances z = atan(x) together with the auxiliary b = 1 + x*x.
func fwdAtan(d int, x, z, b []float64) {
	b[0] = 1 + x[0]*x[0]
	for j := 1; j <= d; j++ {
		b[j] = 0
		for k := 0; k <= j; k++ {
			b[j] += x[k] * x[j-k]
		}
	}
	z[0] = math.Atan(x[0])
	for j := 1; j <= d; j++ {
		s := x[j]
		for k := 1; k < j; k++ {
			s -= float64(k) * z[k] * b[j-k] / float64(j)
		}
		z[j] = s / b[0]
	}
}

// Coupled-row identities pin the forward scaffolding itself down before it
// is trusted as the finite-difference baseline.
func TestForwardTaylorIdentities(t *testing.T) {
	const d = 4
	x := []float64{0.7, 1.3, -0.4, 0.2, 0.9}

	s := make([]float64, d+1)
	c := make([]float64, d+1)
	fwdSinCos(d, x, s, c, -1)
	// sin^2 + cos^2 = 1 order by order.
	for j := 0; j <= d; j++ {
		sum := 0.0
		for k := 0; k <= j; k++ {
			sum += s[k]*s[j-k] + c[k]*c[j-k]
		}
		want := 0.0
		if j == 0 {
			want = 1
		}
		if math.Abs(sum-want) > 1e-12 {
			t.Errorf("order %d: sin^2+cos^2 = %g, want %g", j, sum, want)
		}
	}

	// exp(log(x)) = x order by order.
	l := make([]float64, d+1)
	e := make([]float64, d+1)
	fwdLog(d, x, l)
	fwdExp(d, l, e)
	for j := 0; j <= d; j++ {
		if math.Abs(e[j]-x[j]) > 1e-12 {
			t.Errorf("order %d: exp(log(x)) = %g, want %g", j, e[j], x[j])
		}
	}
}
