// Package tape defines the recorded operation sequence consumed by the
// reverse sweep: operator kinds, the immutable Recording, reverse traversal,
// and the flat (variable, order) coefficient matrices shared with the
// forward sweep.
//
// A Recording is a topologically ordered sequence of operation records.
// Record 0 is the begin marker, records 1..n are the independent variables,
// and every operand references a strictly earlier variable slot. Once built,
// a Recording is immutable and may be shared read-only across concurrently
// executing sweeps; only iterator state changes during traversal.
package tape

// Recording is the immutable tape: one operation record per entry, with a
// flat argument-slot array, a parameter (constant) table, and precomputed
// index tables for random access.
type Recording struct {
	ops      []OpCode
	arg      []int
	argStart []int // per-op offset into arg, len(ops)+1 entries
	resVar   []int // last variable slot assigned at or before each op
	varOp    []int // defining operation per variable slot
	userOpen []int // open-marker op index for records inside a User block, else -1
	params   []float64
	numVar   int
	numInd   int
	numLoad  int
}

// NumOp returns the number of operation records, including Begin and End.
func (r *Recording) NumOp() int { return len(r.ops) }

// NumVar returns the total number of variable slots on the tape.
func (r *Recording) NumVar() int { return r.numVar }

// NumInd returns the number of independent variables.
func (r *Recording) NumInd() int { return r.numInd }

// NumLoad returns the number of indexed-load records.
func (r *Recording) NumLoad() int { return r.numLoad }

// NumPar returns the size of the parameter table.
func (r *Recording) NumPar() int { return len(r.params) }

// Op returns the operator kind at position i.
func (r *Recording) Op(i int) OpCode { return r.ops[i] }

// Args returns the argument slots of the operation at position i.
// For the variable-arity kinds this includes the full recorded block
// without the trailing slot count.
func (r *Recording) Args(i int) []int {
	lo, hi := r.argStart[i], r.argStart[i+1]
	if r.ops[i].VariableArity() {
		hi-- // drop the trailing slot count
	}
	return r.arg[lo:hi]
}

// ResVar returns the result variable index of the operation at position i.
// For kinds reserving no slot it returns the last slot assigned before i.
func (r *Recording) ResVar(i int) int { return r.resVar[i] }

// OpOfVar returns the position of the operation that assigned variable v.
// Auxiliary slots map to the operation that reserved them.
func (r *Recording) OpOfVar(v int) int { return r.varOp[v] }

// Par returns the parameter value at index i.
func (r *Recording) Par(i int) float64 { return r.params[i] }

// Parameters returns the parameter table. Callers must not modify it.
func (r *Recording) Parameters() []float64 { return r.params }

// UserBlockOpen returns the position of the opening User marker for an
// operation inside an atomic call block, or -1 when i is outside any block.
func (r *Recording) UserBlockOpen(i int) int { return r.userOpen[i] }

// VarArgs appends to dst the variable indices referenced by the argument
// slots of the operation at position i.
func (r *Recording) VarArgs(dst []int, i int) []int {
	return varArgs(dst, r.ops[i], r.Args(i))
}

// varArgs appends to dst the variable indices referenced by the argument
// slots of op. The flags conventions of CExp/Com/CSkip and the list layout
// of CSum are resolved here so that traversal, validation and dependency
// marking all agree on what counts as a variable reference.
func varArgs(dst []int, op OpCode, arg []int) []int {
	switch op {
	case OpAbs, OpAcos, OpAsin, OpAtan, OpCos, OpCosh, OpExp, OpLog,
		OpSign, OpSin, OpSinh, OpSqrt, OpTan, OpTanh:
		dst = append(dst, arg[0])
	case OpAddvv, OpDivvv, OpMulvv, OpPowvv, OpSubvv:
		dst = append(dst, arg[0], arg[1])
	case OpAddpv, OpDivpv, OpMulpv, OpPowpv, OpSubpv:
		dst = append(dst, arg[1])
	case OpDivvp, OpPowvp, OpSubvp:
		dst = append(dst, arg[0])
	case OpCExp:
		flags := arg[1]
		if flags&FlagLeftVar != 0 {
			dst = append(dst, arg[2])
		}
		if flags&FlagRightVar != 0 {
			dst = append(dst, arg[3])
		}
		if flags&FlagTrueVar != 0 {
			dst = append(dst, arg[4])
		}
		if flags&FlagFalseVar != 0 {
			dst = append(dst, arg[5])
		}
	case OpCom, OpCSkip:
		flags := arg[1]
		if flags&FlagLeftVar != 0 {
			dst = append(dst, arg[2])
		}
		if flags&FlagRightVar != 0 {
			dst = append(dst, arg[3])
		}
	case OpCSum:
		nAdd, nSub := arg[1], arg[2]
		dst = append(dst, arg[3:3+nAdd+nSub]...)
	case OpDis:
		dst = append(dst, arg[1])
	case OpLdv:
		dst = append(dst, arg[1])
	case OpStpv:
		dst = append(dst, arg[2])
	case OpStvp:
		dst = append(dst, arg[1])
	case OpStvv:
		dst = append(dst, arg[1], arg[2])
	case OpUsrav:
		dst = append(dst, arg[0])
	}
	return dst
}
