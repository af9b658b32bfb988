package tape

import (
	"github.com/pkg/errors"
)

// Operand addresses one input of a recorded operation: either an existing
// variable slot or an entry of the parameter table.
type Operand struct {
	index int
	isVar bool
}

// Var addresses the variable slot at index i.
func Var(i int) Operand { return Operand{index: i, isVar: true} }

// Param addresses the parameter table entry at index i.
func Param(i int) Operand { return Operand{index: i} }

// IsVar reports whether the operand is a variable reference.
func (o Operand) IsVar() bool { return o.isVar }

// Index returns the variable slot or parameter index.
func (o Operand) Index() int { return o.index }

// Builder assembles a Recording. Operations are appended in forward
// (creation) order; Build finalizes the index tables and validates the
// topological and structural invariants before handing out the immutable
// Recording.
//
// The begin marker is emitted on construction and reserves variable slot 0,
// so the first independent variable gets slot 1.
type Builder struct {
	ops      []OpCode
	arg      []int
	argStart []int
	params   []float64
	numVar   int
	numInd   int
	numLoad  int
	sealed   bool // independents must precede all other operations
}

// NewBuilder returns a Builder holding only the begin marker.
func NewBuilder() *Builder {
	b := &Builder{
		ops:      make([]OpCode, 0, 64),
		argStart: make([]int, 0, 65),
	}
	b.emit(OpBegin)
	return b
}

// emit appends an operation record and returns its result variable index.
func (b *Builder) emit(op OpCode, arg ...int) int {
	b.argStart = append(b.argStart, len(b.arg))
	b.ops = append(b.ops, op)
	b.arg = append(b.arg, arg...)
	b.numVar += op.NumRes()
	return b.numVar - 1
}

// Parameter interns v in the parameter table and returns its index.
func (b *Builder) Parameter(v float64) int {
	for i, p := range b.params {
		if p == v {
			return i
		}
	}
	b.params = append(b.params, v)
	return len(b.params) - 1
}

// Independent reserves the next independent variable slot.
// All independents must be declared before any other operation.
func (b *Builder) Independent() int {
	if !b.sealed {
		b.numInd++
	}
	return b.emit(OpInv)
}

// Constant records a parameter-valued variable.
func (b *Builder) Constant(v float64) int {
	b.sealed = true
	return b.emit(OpPar, b.Parameter(v))
}

// unary emits a single-argument operation.
func (b *Builder) unary(op OpCode, x int) int {
	b.sealed = true
	return b.emit(op, x)
}

// Abs records |x|.
func (b *Builder) Abs(x int) int { return b.unary(OpAbs, x) }

// Sign records sign(x).
func (b *Builder) Sign(x int) int { return b.unary(OpSign, x) }

// Exp records exp(x).
func (b *Builder) Exp(x int) int { return b.unary(OpExp, x) }

// Log records log(x).
func (b *Builder) Log(x int) int { return b.unary(OpLog, x) }

// Sqrt records sqrt(x).
func (b *Builder) Sqrt(x int) int { return b.unary(OpSqrt, x) }

// Sin records sin(x). The auxiliary cosine occupies the preceding slot.
func (b *Builder) Sin(x int) int { return b.unary(OpSin, x) }

// Cos records cos(x). The auxiliary sine occupies the preceding slot.
func (b *Builder) Cos(x int) int { return b.unary(OpCos, x) }

// Tan records tan(x). The auxiliary tan(x)^2 occupies the preceding slot.
func (b *Builder) Tan(x int) int { return b.unary(OpTan, x) }

// Tanh records tanh(x). The auxiliary tanh(x)^2 occupies the preceding slot.
func (b *Builder) Tanh(x int) int { return b.unary(OpTanh, x) }

// Sinh records sinh(x). The auxiliary cosh occupies the preceding slot.
func (b *Builder) Sinh(x int) int { return b.unary(OpSinh, x) }

// Cosh records cosh(x). The auxiliary sinh occupies the preceding slot.
func (b *Builder) Cosh(x int) int { return b.unary(OpCosh, x) }

// Asin records asin(x). The auxiliary sqrt(1-x*x) occupies the preceding slot.
func (b *Builder) Asin(x int) int { return b.unary(OpAsin, x) }

// Acos records acos(x). The auxiliary sqrt(1-x*x) occupies the preceding slot.
func (b *Builder) Acos(x int) int { return b.unary(OpAcos, x) }

// Atan records atan(x). The auxiliary 1+x*x occupies the preceding slot.
func (b *Builder) Atan(x int) int { return b.unary(OpAtan, x) }

// binary emits a two-operand operation, selecting the vv/pv/vp kind from
// the operand kinds. Two parameter operands never reach the tape; the
// caller should fold them instead.
func (b *Builder) binary(vv, pv, vp OpCode, x, y Operand) int {
	b.sealed = true
	switch {
	case x.isVar && y.isVar:
		return b.emit(vv, x.index, y.index)
	case y.isVar:
		return b.emit(pv, x.index, y.index)
	default:
		return b.emit(vp, x.index, y.index)
	}
}

// Add records x + y.
func (b *Builder) Add(x, y Operand) int {
	if !y.isVar { // addition commutes, vp folds into pv
		x, y = y, x
	}
	return b.binary(OpAddvv, OpAddpv, OpAddpv, x, y)
}

// Sub records x - y.
func (b *Builder) Sub(x, y Operand) int {
	return b.binary(OpSubvv, OpSubpv, OpSubvp, x, y)
}

// Mul records x * y.
func (b *Builder) Mul(x, y Operand) int {
	if !y.isVar { // multiplication commutes, vp folds into pv
		x, y = y, x
	}
	return b.binary(OpMulvv, OpMulpv, OpMulpv, x, y)
}

// Div records x / y.
func (b *Builder) Div(x, y Operand) int {
	return b.binary(OpDivvv, OpDivpv, OpDivvp, x, y)
}

// Pow records pow(x, y). Two auxiliary slots (log and product) precede the
// result slot.
func (b *Builder) Pow(x, y Operand) int {
	return b.binary(OpPowvv, OpPowpv, OpPowvp, x, y)
}

// CondExp records the conditional expression
// "if compare(left, right) then ifTrue else ifFalse".
func (b *Builder) CondExp(cmp int, left, right, ifTrue, ifFalse Operand) int {
	b.sealed = true
	flags := 0
	if left.isVar {
		flags |= FlagLeftVar
	}
	if right.isVar {
		flags |= FlagRightVar
	}
	if ifTrue.isVar {
		flags |= FlagTrueVar
	}
	if ifFalse.isVar {
		flags |= FlagFalseVar
	}
	return b.emit(OpCExp, cmp, flags, left.index, right.index, ifTrue.index, ifFalse.index)
}

// Compare records a comparison with no result slot.
func (b *Builder) Compare(cmp int, left, right Operand) {
	b.sealed = true
	flags := 0
	if left.isVar {
		flags |= FlagLeftVar
	}
	if right.isVar {
		flags |= FlagRightVar
	}
	b.emit(OpCom, cmp, flags, left.index, right.index)
}

// CSum records offset + sum(add) - sum(sub) as a single cumulative
// summation over the listed variable slots.
func (b *Builder) CSum(offset float64, add, sub []int) int {
	b.sealed = true
	arg := make([]int, 0, 4+len(add)+len(sub))
	arg = append(arg, b.Parameter(offset), len(add), len(sub))
	arg = append(arg, add...)
	arg = append(arg, sub...)
	arg = append(arg, len(arg)) // trailing slot count for reverse scans
	return b.emit(OpCSum, arg...)
}

// CSkip records a conditional-skip marker: depending on compare(left,
// right) at forward time, the listed operation positions are marked dead.
func (b *Builder) CSkip(cmp int, left, right Operand, skipTrue, skipFalse []int) {
	b.sealed = true
	flags := 0
	if left.isVar {
		flags |= FlagLeftVar
	}
	if right.isVar {
		flags |= FlagRightVar
	}
	arg := make([]int, 0, 7+len(skipTrue)+len(skipFalse))
	arg = append(arg, cmp, flags, left.index, right.index, len(skipTrue), len(skipFalse))
	arg = append(arg, skipTrue...)
	arg = append(arg, skipFalse...)
	arg = append(arg, len(arg))
	b.emit(OpCSkip, arg...)
}

// Discrete records a user discrete function application; its derivative
// is identically zero.
func (b *Builder) Discrete(fnID, x int) int {
	b.sealed = true
	return b.emit(OpDis, fnID, x)
}

// LoadP records an indexed load with a constant index. The returned load
// ordinal indexes the caller's load-alias table.
func (b *Builder) LoadP(vecStart, paramIdx int) (resVar, loadIdx int) {
	b.sealed = true
	loadIdx = b.numLoad
	b.numLoad++
	return b.emit(OpLdp, vecStart, paramIdx, loadIdx), loadIdx
}

// LoadV records an indexed load with a variable index.
func (b *Builder) LoadV(vecStart, idxVar int) (resVar, loadIdx int) {
	b.sealed = true
	loadIdx = b.numLoad
	b.numLoad++
	return b.emit(OpLdv, vecStart, idxVar, loadIdx), loadIdx
}

// Store records an indexed store marker (one of the four St kinds).
// Stores are resolved by the forward sweep and carry no adjoint.
func (b *Builder) Store(vecStart int, idx, val Operand) {
	b.sealed = true
	op := OpStpp
	switch {
	case idx.isVar && val.isVar:
		op = OpStvv
	case idx.isVar:
		op = OpStvp
	case val.isVar:
		op = OpStpv
	}
	b.emit(op, vecStart, idx.index, val.index)
}

// Print records a print marker; it contributes nothing to derivatives.
func (b *Builder) Print(value Operand) {
	b.sealed = true
	flag := 0
	if value.isVar {
		flag = 1
	}
	b.emit(OpPri, flag, value.index, 0, 0, 0)
}

// AtomicCall records the full operation block of an external atomic
// function: opening marker, one record per argument, one record per result,
// closing marker. Variable results reserve fresh slots; the returned slice
// holds their indices (0 for parameter results).
func (b *Builder) AtomicCall(fnIndex, callID int, args, results []Operand) []int {
	b.sealed = true
	b.emit(OpUser, fnIndex, callID, len(args), len(results))
	for _, a := range args {
		if a.isVar {
			b.emit(OpUsrav, a.index)
		} else {
			b.emit(OpUsrap, a.index)
		}
	}
	out := make([]int, len(results))
	for i, r := range results {
		if r.isVar {
			out[i] = b.emit(OpUsrrv)
		} else {
			b.emit(OpUsrrp, r.index)
		}
	}
	b.emit(OpUser, fnIndex, callID, len(args), len(results))
	return out
}

// NumOp returns the number of records emitted so far.
func (b *Builder) NumOp() int { return len(b.ops) }

// NumVar returns the number of variable slots reserved so far.
func (b *Builder) NumVar() int { return b.numVar }

// Build appends the end marker, finalizes the index tables, and validates
// the recording. The Builder must not be used afterwards.
func (b *Builder) Build() (*Recording, error) {
	b.emit(OpEnd)
	b.argStart = append(b.argStart, len(b.arg))

	r := &Recording{
		ops:      b.ops,
		arg:      b.arg,
		argStart: b.argStart,
		resVar:   make([]int, len(b.ops)),
		varOp:    make([]int, b.numVar),
		userOpen: make([]int, len(b.ops)),
		params:   b.params,
		numVar:   b.numVar,
		numInd:   b.numInd,
		numLoad:  b.numLoad,
	}

	v := -1
	open := -1
	for i, op := range r.ops {
		for k := 0; k < op.NumRes(); k++ {
			v++
			r.varOp[v] = i
		}
		r.resVar[i] = v

		r.userOpen[i] = open
		switch op {
		case OpUser:
			if open < 0 {
				open = i
				r.userOpen[i] = i
			} else {
				open = -1 // closing marker, userOpen already set
			}
		case OpUsrap, OpUsrav, OpUsrrp, OpUsrrv:
			if open < 0 {
				return nil, errors.Errorf(
					"tape: %s record at position %d outside an atomic call block", op, i)
			}
		}
	}
	if open >= 0 {
		return nil, errors.Errorf("tape: atomic call block opened at position %d never closed", open)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// validate checks the structural invariants: known kinds, the begin/Inv
// prefix, in-range parameter indices, and topological operand references.
func (r *Recording) validate() error {
	if r.ops[0] != OpBegin {
		return errors.New("tape: record 0 is not the begin marker")
	}
	for i := 1; i <= r.numInd; i++ {
		if r.ops[i] != OpInv {
			return errors.Errorf("tape: record %d is %s, want Inv", i, r.ops[i])
		}
	}
	scratch := make([]int, 0, 8)
	for i, op := range r.ops {
		if !op.Valid() {
			return errors.Errorf("tape: unknown operator kind %d at position %d", op, i)
		}
		limit := r.resVar[i] - op.NumRes() // last slot assigned before this op
		scratch = varArgs(scratch[:0], op, r.Args(i))
		for _, v := range scratch {
			if v <= 0 || v > limit {
				return errors.Errorf(
					"tape: %s at position %d references variable %d, want range [1, %d]",
					op, i, v, limit)
			}
		}
	}
	return nil
}
