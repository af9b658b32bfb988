package reverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrsibert/adcomp/internal/tape"
)

func TestSweepOutputMatchesFullSweep(t *testing.T) {
	const d = 2
	b := tape.NewBuilder()
	x0 := b.Independent()
	x1 := b.Independent()
	prod := b.Mul(tape.Var(x0), tape.Var(x1))
	y1 := b.Add(tape.Var(prod), tape.Var(b.Sin(x0)))
	y2 := b.Exp(x1)
	rec, err := b.Build()
	require.NoError(t, err)

	base := [][]float64{{0.9, 0.4, -0.2}, {1.3, -0.7, 0.1}}
	taylor := forwardTaylor(t, rec, d, base, forwardOptions{})

	for _, out := range []int{y1, y2} {
		full := tape.NewCoeffs(rec.NumVar(), d+1)
		full.Set(out, d, 1)
		require.NoError(t, Sweep(rec, taylor, full, Options{Order: d}))

		sub := tape.NewCoeffs(rec.NumVar(), d+1)
		require.NoError(t, SweepOutput(rec, taylor, sub, out, Options{Order: d}))

		for _, v := range []int{x0, x1} {
			for k := 0; k <= d; k++ {
				assert.InDelta(t, full.At(v, k), sub.At(v, k), 1e-12,
					"output %d variable %d order %d", out, v, k)
			}
		}
	}
}

func TestDependentOps(t *testing.T) {
	b := tape.NewBuilder()
	x0 := b.Independent()
	x1 := b.Independent()
	prod := b.Mul(tape.Var(x0), tape.Var(x1))
	y1 := b.Add(tape.Var(prod), tape.Var(b.Sin(x0)))
	y2 := b.Exp(x1)
	rec, err := b.Build()
	require.NoError(t, err)

	ops, err := DependentOps(rec, y1, nil)
	require.NoError(t, err)

	for i := 1; i < len(ops); i++ {
		assert.Less(t, ops[i], ops[i-1], "positions must decrease")
	}
	assert.Contains(t, ops, rec.OpOfVar(y1))
	assert.Contains(t, ops, rec.OpOfVar(prod))
	assert.Contains(t, ops, rec.OpOfVar(x0))
	assert.NotContains(t, ops, rec.OpOfVar(y2), "the unrelated exp must not be replayed")

	ops, err = DependentOps(rec, y2, nil)
	require.NoError(t, err)
	assert.NotContains(t, ops, rec.OpOfVar(prod))
	assert.Contains(t, ops, rec.OpOfVar(x1))

	_, err = DependentOps(rec, 0, nil)
	assert.ErrorContains(t, err, "outside range")
	_, err = DependentOps(rec, rec.NumVar(), nil)
	assert.ErrorContains(t, err, "outside range")
}

func TestDependentOpsAtomicBlock(t *testing.T) {
	rec, _, _, y := squareTape(t)
	ops, err := DependentOps(rec, y, nil)
	require.NoError(t, err)

	// Any dependence on an atomic result pulls in the whole call block.
	open := -1
	for i := 0; i < rec.NumOp(); i++ {
		if rec.Op(i) == tape.OpUser {
			open = i
			break
		}
	}
	require.GreaterOrEqual(t, open, 0)
	n, m := rec.Args(open)[2], rec.Args(open)[3]
	for i := open; i <= open+n+m+1; i++ {
		assert.Contains(t, ops, i, "call block position %d", i)
	}
}

func TestDependentOpsFollowsLoadAlias(t *testing.T) {
	b := tape.NewBuilder()
	x0 := b.Independent()
	x1 := b.Independent()
	sq := b.Mul(tape.Var(x0), tape.Var(x0))
	v, ell := b.LoadP(0, b.Parameter(0))
	y := b.Add(tape.Var(v), tape.Var(x1))
	rec, err := b.Build()
	require.NoError(t, err)

	loadVar := make([]int, rec.NumLoad())
	loadVar[ell] = sq

	ops, err := DependentOps(rec, y, loadVar)
	require.NoError(t, err)
	assert.Contains(t, ops, rec.OpOfVar(sq), "aliased load must pull in the stored computation")

	// Without the alias table the load is treated as a parameter read.
	ops, err = DependentOps(rec, y, nil)
	require.NoError(t, err)
	assert.NotContains(t, ops, rec.OpOfVar(sq))
}
