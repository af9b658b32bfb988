package tape

// ReverseIterator walks a Recording from the end marker back to the begin
// marker, maintaining the operation, argument and variable cursors
// incrementally.
//
// The two variable-arity kinds need help: Prev returns them with an empty
// argument slice, and the caller must invoke CSumArgs or CSkipArgs exactly
// once for each, even when the operation is being skipped, so the argument
// cursor stays consistent with the tape.
type ReverseIterator struct {
	rec       *Recording
	opIndex   int
	argCursor int // start of the args of the op at opIndex
	varIndex  int // last variable slot assigned by ops[0..opIndex]
}

// ReverseStart returns an iterator positioned on the end marker.
func (r *Recording) ReverseStart() *ReverseIterator {
	last := len(r.ops) - 1
	return &ReverseIterator{
		rec:       r,
		opIndex:   last,
		argCursor: r.argStart[last],
		varIndex:  r.numVar - 1,
	}
}

// Prev steps to the previous operation record and returns its kind,
// fixed argument slots, tape position, and result variable index.
func (it *ReverseIterator) Prev() (op OpCode, arg []int, opIndex, resVar int) {
	it.varIndex -= it.rec.ops[it.opIndex].NumRes()
	it.opIndex--
	op = it.rec.ops[it.opIndex]
	n := op.NumArg()
	it.argCursor -= n
	arg = it.rec.arg[it.argCursor : it.argCursor+n]
	return op, arg, it.opIndex, it.varIndex
}

// OpIndex returns the position of the current operation.
func (it *ReverseIterator) OpIndex() int { return it.opIndex }

// CSumArgs consumes the variable-length argument block of the current CSum
// record and returns it (offset parameter, add count, subtract count, then
// the listed variable indices). Must be called exactly once per CSum
// returned by Prev.
func (it *ReverseIterator) CSumArgs() []int {
	return it.variableArgs()
}

// CSkipArgs consumes the variable-length argument block of the current
// CSkip record and returns it. Must be called exactly once per CSkip
// returned by Prev.
func (it *ReverseIterator) CSkipArgs() []int {
	return it.variableArgs()
}

// variableArgs rewinds the argument cursor over a variable-length block
// using the trailing slot count written by the recorder.
func (it *ReverseIterator) variableArgs() []int {
	count := it.rec.arg[it.argCursor-1]
	it.argCursor -= count + 1
	return it.rec.arg[it.argCursor : it.argCursor+count]
}
