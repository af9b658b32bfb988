// Package reverse implements the reverse-mode replay engine: given a
// recorded tape and the forward Taylor coefficients of every variable, it
// walks the tape backward and accumulates the adjoints of the independent
// variables for all orders 0..d.
//
// The engine is a straight-line backward replay, not a graph search:
// because the tape is in creation order, every use of a variable has
// already contributed its adjoint by the time the variable's defining
// operation is dispatched. One engine serves both sweep forms — a full
// walk from the end marker to the begin marker, and a replay of a
// precomputed decreasing position list covering the operations that feed a
// single chosen output.
//
// Failures are fatal and indicate a defect upstream (a corrupted tape or a
// failing atomic callback), never bad user data; the sweep produces either
// a fully populated gradient or an error, nothing in between. NaN and Inf
// propagate silently as ordinary floating-point values.
package reverse

import (
	"github.com/pkg/errors"

	"github.com/johnrsibert/adcomp/internal/tape"
)

// Options configures one sweep.
type Options struct {
	// Order is the highest Taylor order d being differentiated.
	Order int

	// Skip marks dead operations (one flag per tape position) that cannot
	// affect the seeded outputs and are bypassed. Nil means none.
	Skip []bool

	// LoadVar maps each indexed-load record (by load ordinal) to the
	// variable the forward sweep resolved it to, zero for parameters.
	// Required when the tape contains load records.
	LoadVar []int

	// Atomics resolves external atomic functions. Required when the tape
	// contains atomic call blocks.
	Atomics *Registry

	// Filter restricts the sweep to the given tape positions, which must
	// be strictly decreasing. Nil means a full sweep.
	Filter []int
}

// Sweep replays the recording backward, accumulating into partial the
// derivative of the weighted output sum G defined by the caller's seeds.
//
// On entry the last m rows of partial carry the output seeds (weight at
// order d, zero below) and every other row is zero; taylor holds the
// forward coefficients of all variables and is read-only. On return, rows
// 1..NumInd of partial hold dG/du for orders 0..d; all other rows are
// scratch with unspecified contents.
func Sweep(rec *tape.Recording, taylor, partial tape.Coeffs, opts Options) error {
	s, err := newSweeper(rec, taylor, partial, opts)
	if err != nil {
		return err
	}
	if opts.Filter != nil {
		return s.runFiltered(opts.Filter)
	}
	return s.run()
}

type sweeper struct {
	rec     *tape.Recording
	taylor  tape.Coeffs
	partial tape.Coeffs
	d       int
	par     []float64
	skip    []bool
	loadVar []int
	reg     *Registry
	frame   callFrame
}

func newSweeper(rec *tape.Recording, taylor, partial tape.Coeffs, opts Options) (*sweeper, error) {
	d := opts.Order
	switch {
	case d < 0:
		return nil, errors.Errorf("reverse sweep: negative order %d", d)
	case rec.NumVar() == 0:
		return nil, errors.New("reverse sweep: empty recording")
	case taylor.Stride() < d+1:
		return nil, errors.Errorf("reverse sweep: taylor stride %d < order+1 = %d", taylor.Stride(), d+1)
	case partial.Stride() < d+1:
		return nil, errors.Errorf("reverse sweep: partial stride %d < order+1 = %d", partial.Stride(), d+1)
	case taylor.NumRows() < rec.NumVar():
		return nil, errors.Errorf("reverse sweep: taylor has %d rows, recording has %d variables",
			taylor.NumRows(), rec.NumVar())
	case partial.NumRows() < rec.NumVar():
		return nil, errors.Errorf("reverse sweep: partial has %d rows, recording has %d variables",
			partial.NumRows(), rec.NumVar())
	case opts.Skip != nil && len(opts.Skip) != rec.NumOp():
		return nil, errors.Errorf("reverse sweep: skip mask has %d entries, recording has %d operations",
			len(opts.Skip), rec.NumOp())
	case rec.NumLoad() > 0 && len(opts.LoadVar) != rec.NumLoad():
		return nil, errors.Errorf("reverse sweep: load table has %d entries, recording has %d loads",
			len(opts.LoadVar), rec.NumLoad())
	}
	return &sweeper{
		rec:     rec,
		taylor:  taylor,
		partial: partial,
		d:       d,
		par:     rec.Parameters(),
		skip:    opts.Skip,
		loadVar: opts.LoadVar,
		reg:     opts.Atomics,
	}, nil
}

func (s *sweeper) skipped(iOp int) bool {
	return s.skip != nil && s.skip[iOp]
}

// run walks the whole tape from the end marker to the begin marker.
func (s *sweeper) run() error {
	it := s.rec.ReverseStart()
	for {
		op, arg, iOp, iVar := it.Prev()

		// Masked operations are bypassed without dispatch. The two
		// variable-arity kinds still need their explicit extra advance
		// or the argument cursor falls out of step.
		for s.skipped(iOp) && op != tape.OpBegin {
			switch op {
			case tape.OpCSum:
				it.CSumArgs()
			case tape.OpCSkip:
				it.CSkipArgs()
			}
			op, arg, iOp, iVar = it.Prev()
		}

		switch op {
		case tape.OpBegin:
			if !s.frame.drained() {
				return errors.New("reverse sweep: begin marker inside an atomic call block")
			}
			return nil
		case tape.OpCSum:
			arg = it.CSumArgs()
		case tape.OpCSkip:
			it.CSkipArgs()
			continue
		}
		if err := s.dispatch(op, arg, iOp, iVar); err != nil {
			return err
		}
	}
}

// runFiltered replays a precomputed decreasing position list directly via
// the recording's random-access tables, bypassing the iterator's skip and
// arity bookkeeping; every listed position is relevant by construction.
func (s *sweeper) runFiltered(filter []int) error {
	prev := s.rec.NumOp()
	for _, iOp := range filter {
		if iOp < 0 || iOp >= s.rec.NumOp() {
			return errors.Errorf("reverse sweep: filter position %d outside recording of %d operations",
				iOp, s.rec.NumOp())
		}
		if iOp >= prev {
			return errors.Errorf("reverse sweep: filter positions not strictly decreasing at %d", iOp)
		}
		prev = iOp
		if s.skipped(iOp) {
			continue
		}
		op := s.rec.Op(iOp)
		if op == tape.OpBegin || op == tape.OpEnd || op == tape.OpCSkip {
			continue
		}
		if err := s.dispatch(op, s.rec.Args(iOp), iOp, s.rec.ResVar(iOp)); err != nil {
			return err
		}
	}
	if !s.frame.drained() {
		return errors.New("reverse sweep: filter ends inside an atomic call block")
	}
	return nil
}

// checkPar guards a parameter argument slot; violation means the recorder
// and this engine disagree about the tape layout.
func (s *sweeper) checkPar(op tape.OpCode, iOp, index int) error {
	if index < 0 || index >= len(s.par) {
		return errors.Errorf("reverse sweep: %s at position %d references parameter %d of %d",
			op, iOp, index, len(s.par))
	}
	return nil
}

// dispatch applies the derivative rule for one operation record.
func (s *sweeper) dispatch(op tape.OpCode, arg []int, iOp, iVar int) error {
	switch op {
	case tape.OpAbs:
		reverseAbs(s.d, iVar, arg[0], s.taylor, s.partial)

	case tape.OpAcos:
		reverseAsinFamily(s.d, iVar, arg[0], -1, s.taylor, s.partial)

	case tape.OpAddpv:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		reverseAddpv(s.d, iVar, arg, s.partial)

	case tape.OpAddvv:
		reverseAddvv(s.d, iVar, arg, s.partial)

	case tape.OpAsin:
		reverseAsinFamily(s.d, iVar, arg[0], 1, s.taylor, s.partial)

	case tape.OpAtan:
		reverseAtan(s.d, iVar, arg[0], s.taylor, s.partial)

	case tape.OpCExp:
		flags := arg[1]
		if flags&tape.FlagLeftVar == 0 {
			if err := s.checkPar(op, iOp, arg[2]); err != nil {
				return err
			}
		}
		if flags&tape.FlagRightVar == 0 {
			if err := s.checkPar(op, iOp, arg[3]); err != nil {
				return err
			}
		}
		if !reverseCondExp(s.d, iVar, arg, s.par, s.taylor, s.partial) {
			return errors.Errorf("reverse sweep: CExp at position %d has unknown comparison code %d",
				iOp, arg[0])
		}

	case tape.OpCom, tape.OpDis, tape.OpInv, tape.OpPar, tape.OpPri, tape.OpSign,
		tape.OpStpp, tape.OpStpv, tape.OpStvp, tape.OpStvv:
		// Pure markers and zero-derivative kinds: nothing flows through.

	case tape.OpCos:
		reverseSinCos(s.d, iVar-1, iVar, arg[0], s.taylor, s.partial)

	case tape.OpCosh:
		reverseSinhCosh(s.d, iVar-1, iVar, arg[0], s.taylor, s.partial)

	case tape.OpCSum:
		reverseCSum(s.d, iVar, arg, s.partial)

	case tape.OpDivpv:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		reverseDivpv(s.d, iVar, arg, s.taylor, s.partial)

	case tape.OpDivvp:
		if err := s.checkPar(op, iOp, arg[1]); err != nil {
			return err
		}
		reverseDivvp(s.d, iVar, arg[0], s.par[arg[1]], s.partial)

	case tape.OpDivvv:
		reverseDivvv(s.d, iVar, arg, s.taylor, s.partial)

	case tape.OpExp:
		reverseExp(s.d, iVar, arg[0], s.taylor, s.partial)

	case tape.OpLdp, tape.OpLdv:
		if arg[2] < 0 || arg[2] >= len(s.loadVar) {
			return errors.Errorf("reverse sweep: %s at position %d references load %d of %d",
				op, iOp, arg[2], len(s.loadVar))
		}
		reverseLoad(s.d, iVar, s.loadVar[arg[2]], s.partial)

	case tape.OpLog:
		reverseLog(s.d, iVar, arg[0], s.taylor, s.partial)

	case tape.OpMulpv:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		reverseMulpv(s.d, iVar, s.par[arg[0]], arg[1], s.partial)

	case tape.OpMulvv:
		reverseMulvv(s.d, iVar, arg, s.taylor, s.partial)

	case tape.OpPowpv:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		reversePowpv(s.d, iVar, arg[1], s.taylor, s.partial)

	case tape.OpPowvp:
		if err := s.checkPar(op, iOp, arg[1]); err != nil {
			return err
		}
		reversePowvp(s.d, iVar, arg[0], s.par[arg[1]], s.taylor, s.partial)

	case tape.OpPowvv:
		reversePowvv(s.d, iVar, arg, s.taylor, s.partial)

	case tape.OpSin:
		reverseSinCos(s.d, iVar, iVar-1, arg[0], s.taylor, s.partial)

	case tape.OpSinh:
		reverseSinhCosh(s.d, iVar, iVar-1, arg[0], s.taylor, s.partial)

	case tape.OpSqrt:
		reverseSqrt(s.d, iVar, arg[0], s.taylor, s.partial)

	case tape.OpSubpv:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		reverseSubpv(s.d, iVar, arg, s.partial)

	case tape.OpSubvp:
		if err := s.checkPar(op, iOp, arg[1]); err != nil {
			return err
		}
		reverseSubvp(s.d, iVar, arg, s.partial)

	case tape.OpSubvv:
		reverseSubvv(s.d, iVar, arg, s.partial)

	case tape.OpTan:
		reverseTanFamily(s.d, iVar, arg[0], 1, s.taylor, s.partial)

	case tape.OpTanh:
		reverseTanFamily(s.d, iVar, arg[0], -1, s.taylor, s.partial)

	case tape.OpUser:
		if s.frame.drained() {
			return s.frame.open(arg, s.d)
		}
		return s.frame.finish(arg, s.reg, s.partial)

	case tape.OpUsrap:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		return s.frame.argPar(s.par[arg[0]])

	case tape.OpUsrav:
		return s.frame.argVar(arg[0], s.taylor)

	case tape.OpUsrrp:
		if err := s.checkPar(op, iOp, arg[0]); err != nil {
			return err
		}
		return s.frame.retPar(s.par[arg[0]])

	case tape.OpUsrrv:
		return s.frame.retVar(iVar, s.taylor, s.partial)

	default:
		return errors.Errorf("reverse sweep: no derivative rule for operator kind %s at position %d",
			op, iOp)
	}
	return nil
}
