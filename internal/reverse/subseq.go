package reverse

import (
	"github.com/pkg/errors"

	"github.com/johnrsibert/adcomp/internal/tape"
)

// SweepOutput computes the gradient of the single dependent variable
// depVar: a pre-pass marks every operation reachable backward from its
// defining record, then the engine replays only those positions. The
// independent rows of partial come out identical to a full sweep seeded
// with a one-hot weight on depVar, at lower cost when gradients of many
// individual outputs are needed.
//
// On entry partial must be all zero; SweepOutput seeds depVar's row itself
// (weight one at order d). opts.Filter is ignored.
func SweepOutput(rec *tape.Recording, taylor, partial tape.Coeffs, depVar int, opts Options) error {
	filter, err := DependentOps(rec, depVar, opts.LoadVar)
	if err != nil {
		return err
	}
	if opts.Order < 0 {
		return errors.Errorf("reverse sweep: negative order %d", opts.Order)
	}
	if partial.Stride() < opts.Order+1 || partial.NumRows() < rec.NumVar() {
		return errors.New("reverse sweep: partial matrix too small for recording")
	}
	row := partial.Row(depVar)
	for k := 0; k < opts.Order; k++ {
		row[k] = 0
	}
	row[opts.Order] = 1
	opts.Filter = filter
	return Sweep(rec, taylor, partial, opts)
}

// DependentOps returns, in decreasing order, the tape positions of every
// operation that transitively feeds the given variable through argument
// references. Indexed loads follow the load-alias table when one is
// supplied; any marked record inside an atomic call block pulls in the
// whole block, since the call protocol needs every record of the block to
// reconstruct the call.
func DependentOps(rec *tape.Recording, depVar int, loadVar []int) ([]int, error) {
	if depVar <= 0 || depVar >= rec.NumVar() {
		return nil, errors.Errorf("reverse sweep: dependent variable %d outside range [1, %d)",
			depVar, rec.NumVar())
	}
	marked := make([]bool, rec.NumOp())
	stack := []int{rec.OpOfVar(depVar)}
	scratch := make([]int, 0, 8)

	markOne := func(iOp int) {
		marked[iOp] = true
		scratch = rec.VarArgs(scratch[:0], iOp)
		for _, v := range scratch {
			stack = append(stack, rec.OpOfVar(v))
		}
		op := rec.Op(iOp)
		if (op == tape.OpLdp || op == tape.OpLdv) && loadVar != nil {
			if v := loadVar[rec.Args(iOp)[2]]; v > 0 {
				stack = append(stack, rec.OpOfVar(v))
			}
		}
	}

	for len(stack) > 0 {
		iOp := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if marked[iOp] {
			continue
		}
		open := rec.UserBlockOpen(iOp)
		if open < 0 {
			markOne(iOp)
			continue
		}
		// Atomic call blocks travel as a unit.
		n, m := rec.Args(open)[2], rec.Args(open)[3]
		for j := open; j <= open+n+m+1; j++ {
			if !marked[j] {
				markOne(j)
			}
		}
	}

	out := make([]int, 0, rec.NumOp())
	for i := rec.NumOp() - 1; i >= 0; i-- {
		if marked[i] {
			out = append(out, i)
		}
	}
	return out, nil
}
