package tape

// OpCode identifies the kind of an operation record on the tape.
//
// The set is closed: every kind the recorder can emit is listed here, and the
// reverse sweep dispatches exhaustively over it. The pv/vp/vv suffixes name
// the operand kinds of binary operators (parameter or variable); the
// degenerate parameter-parameter case is folded into a constant by the
// recorder and never appears as an operation.
type OpCode uint8

// Operator kinds, in alphabetical order.
const (
	OpAbs   OpCode = iota // abs(x)
	OpAcos                // acos(x), auxiliary result sqrt(1-x*x)
	OpAddpv               // parameter + variable
	OpAddvv               // variable + variable
	OpAsin                // asin(x), auxiliary result sqrt(1-x*x)
	OpAtan                // atan(x), auxiliary result 1+x*x
	OpBegin               // begin marker, reserves variable slot 0
	OpCExp                // conditional expression
	OpCom                 // comparison with no result
	OpCos                 // cos(x), auxiliary result sin(x)
	OpCosh                // cosh(x), auxiliary result sinh(x)
	OpCSkip               // conditional skip marker (variable arity)
	OpCSum                // cumulative summation (variable arity)
	OpDis                 // discrete user function, zero derivative
	OpDivpv               // parameter / variable
	OpDivvp               // variable / parameter
	OpDivvv               // variable / variable
	OpEnd                 // end marker
	OpExp                 // exp(x)
	OpInv                 // independent variable
	OpLdp                 // indexed load with parameter index
	OpLdv                 // indexed load with variable index
	OpLog                 // log(x)
	OpMulpv               // parameter * variable
	OpMulvv               // variable * variable
	OpPar                 // parameter valued variable
	OpPowpv               // pow(parameter, variable), three result slots
	OpPowvp               // pow(variable, parameter), three result slots
	OpPowvv               // pow(variable, variable), three result slots
	OpPri                 // print marker
	OpSign                // sign(x)
	OpSin                 // sin(x), auxiliary result cos(x)
	OpSinh                // sinh(x), auxiliary result cosh(x)
	OpSqrt                // sqrt(x)
	OpStpp                // indexed store, parameter index and value
	OpStpv                // indexed store, parameter index, variable value
	OpStvp                // indexed store, variable index, parameter value
	OpStvv                // indexed store, variable index and value
	OpSubpv               // parameter - variable
	OpSubvp               // variable - parameter
	OpSubvv               // variable - variable
	OpTan                 // tan(x), auxiliary result tan(x)*tan(x)
	OpTanh                // tanh(x), auxiliary result tanh(x)*tanh(x)
	OpUser                // atomic call open/close marker
	OpUsrap               // atomic call parameter argument
	OpUsrav               // atomic call variable argument
	OpUsrrp               // atomic call parameter result
	OpUsrrv               // atomic call variable result

	numOpCodes // sentinel, keep last
)

var opName = [numOpCodes]string{
	OpAbs:   "Abs",
	OpAcos:  "Acos",
	OpAddpv: "Addpv",
	OpAddvv: "Addvv",
	OpAsin:  "Asin",
	OpAtan:  "Atan",
	OpBegin: "Begin",
	OpCExp:  "CExp",
	OpCom:   "Com",
	OpCos:   "Cos",
	OpCosh:  "Cosh",
	OpCSkip: "CSkip",
	OpCSum:  "CSum",
	OpDis:   "Dis",
	OpDivpv: "Divpv",
	OpDivvp: "Divvp",
	OpDivvv: "Divvv",
	OpEnd:   "End",
	OpExp:   "Exp",
	OpInv:   "Inv",
	OpLdp:   "Ldp",
	OpLdv:   "Ldv",
	OpLog:   "Log",
	OpMulpv: "Mulpv",
	OpMulvv: "Mulvv",
	OpPar:   "Par",
	OpPowpv: "Powpv",
	OpPowvp: "Powvp",
	OpPowvv: "Powvv",
	OpPri:   "Pri",
	OpSign:  "Sign",
	OpSin:   "Sin",
	OpSinh:  "Sinh",
	OpSqrt:  "Sqrt",
	OpStpp:  "Stpp",
	OpStpv:  "Stpv",
	OpStvp:  "Stvp",
	OpStvv:  "Stvv",
	OpSubpv: "Subpv",
	OpSubvp: "Subvp",
	OpSubvv: "Subvv",
	OpTan:   "Tan",
	OpTanh:  "Tanh",
	OpUser:  "User",
	OpUsrap: "Usrap",
	OpUsrav: "Usrav",
	OpUsrrp: "Usrrp",
	OpUsrrv: "Usrrv",
}

// numArg holds the fixed argument-slot count per kind. The two
// variable-arity kinds (CSkip, CSum) report zero; their slots are reached
// through the iterator's explicit extra advance.
var numArg = [numOpCodes]uint8{
	OpAbs:   1,
	OpAcos:  1,
	OpAddpv: 2,
	OpAddvv: 2,
	OpAsin:  1,
	OpAtan:  1,
	OpBegin: 0,
	OpCExp:  6,
	OpCom:   4,
	OpCos:   1,
	OpCosh:  1,
	OpCSkip: 0,
	OpCSum:  0,
	OpDis:   2,
	OpDivpv: 2,
	OpDivvp: 2,
	OpDivvv: 2,
	OpEnd:   0,
	OpExp:   1,
	OpInv:   0,
	OpLdp:   3,
	OpLdv:   3,
	OpLog:   1,
	OpMulpv: 2,
	OpMulvv: 2,
	OpPar:   1,
	OpPowpv: 2,
	OpPowvp: 2,
	OpPowvv: 2,
	OpPri:   5,
	OpSign:  1,
	OpSin:   1,
	OpSinh:  1,
	OpSqrt:  1,
	OpStpp:  3,
	OpStpv:  3,
	OpStvp:  3,
	OpStvv:  3,
	OpSubpv: 2,
	OpSubvp: 2,
	OpSubvv: 2,
	OpTan:   1,
	OpTanh:  1,
	OpUser:  4,
	OpUsrap: 1,
	OpUsrav: 1,
	OpUsrrp: 1,
	OpUsrrv: 0,
}

// numRes holds the variable slots each kind reserves. Trigonometric and
// hyperbolic kinds reserve a second slot for the paired auxiliary
// coefficients (cos for sin, z*z for tan, ...); the pow kinds reserve three
// (log, product, exp).
var numRes = [numOpCodes]uint8{
	OpAbs:   1,
	OpAcos:  2,
	OpAddpv: 1,
	OpAddvv: 1,
	OpAsin:  2,
	OpAtan:  2,
	OpBegin: 1,
	OpCExp:  1,
	OpCom:   0,
	OpCos:   2,
	OpCosh:  2,
	OpCSkip: 0,
	OpCSum:  1,
	OpDis:   1,
	OpDivpv: 1,
	OpDivvp: 1,
	OpDivvv: 1,
	OpEnd:   0,
	OpExp:   1,
	OpInv:   1,
	OpLdp:   1,
	OpLdv:   1,
	OpLog:   1,
	OpMulpv: 1,
	OpMulvv: 1,
	OpPar:   1,
	OpPowpv: 3,
	OpPowvp: 3,
	OpPowvv: 3,
	OpPri:   0,
	OpSign:  1,
	OpSin:   2,
	OpSinh:  2,
	OpSqrt:  1,
	OpStpp:  0,
	OpStpv:  0,
	OpStvp:  0,
	OpStvv:  0,
	OpSubpv: 1,
	OpSubvp: 1,
	OpSubvv: 1,
	OpTan:   2,
	OpTanh:  2,
	OpUser:  0,
	OpUsrap: 0,
	OpUsrav: 0,
	OpUsrrp: 0,
	OpUsrrv: 1,
}

// String returns the operator kind name.
func (op OpCode) String() string {
	if op >= numOpCodes {
		return "Unknown"
	}
	return opName[op]
}

// NumArg returns the fixed argument-slot count for op.
// Variable-arity kinds (CSkip, CSum) report zero.
func (op OpCode) NumArg() int { return int(numArg[op]) }

// NumRes returns the number of variable slots op reserves.
func (op OpCode) NumRes() int { return int(numRes[op]) }

// VariableArity reports whether op has a tape-dependent argument count.
func (op OpCode) VariableArity() bool { return op == OpCSkip || op == OpCSum }

// Valid reports whether op is a known operator kind.
func (op OpCode) Valid() bool { return op < numOpCodes }

// Comparison codes used by the CExp, Com and CSkip argument layouts.
const (
	CmpLt = iota // left <  right
	CmpLe        // left <= right
	CmpEq        // left == right
	CmpGe        // left >= right
	CmpGt        // left >  right
	CmpNe        // left != right
)

// Flag bits stored in the second argument slot of CExp, Com and CSkip,
// marking which operands are variables (unset bits mean parameters).
const (
	FlagLeftVar  = 1 << iota // left operand is a variable
	FlagRightVar             // right operand is a variable
	FlagTrueVar              // if-true operand is a variable
	FlagFalseVar             // if-false operand is a variable
)
