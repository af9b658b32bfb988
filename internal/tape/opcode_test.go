package tape

import "testing"

func TestOpCodeTables(t *testing.T) {
	for op := OpCode(0); op < numOpCodes; op++ {
		if !op.Valid() {
			t.Errorf("op %d: Valid() = false", op)
		}
		if op.String() == "" || op.String() == "Unknown" {
			t.Errorf("op %d: missing name", op)
		}
		if op.VariableArity() && op.NumArg() != 0 {
			t.Errorf("%s: variable arity but fixed argument count %d", op, op.NumArg())
		}
	}
	if OpCode(255).Valid() {
		t.Error("OpCode(255).Valid() = true")
	}
	if got := OpCode(255).String(); got != "Unknown" {
		t.Errorf("OpCode(255).String() = %q", got)
	}
}

func TestOpCodeArity(t *testing.T) {
	cases := []struct {
		op            OpCode
		nArg, nRes    int
		variableArity bool
	}{
		{OpAddvv, 2, 1, false},
		{OpSin, 1, 2, false},
		{OpTanh, 1, 2, false},
		{OpPowvv, 2, 3, false},
		{OpCom, 4, 0, false},
		{OpCSum, 0, 1, true},
		{OpCSkip, 0, 0, true},
		{OpUser, 4, 0, false},
		{OpUsrrv, 0, 1, false},
		{OpBegin, 0, 1, false},
		{OpEnd, 0, 0, false},
	}
	for _, tc := range cases {
		if got := tc.op.NumArg(); got != tc.nArg {
			t.Errorf("%s.NumArg() = %d, want %d", tc.op, got, tc.nArg)
		}
		if got := tc.op.NumRes(); got != tc.nRes {
			t.Errorf("%s.NumRes() = %d, want %d", tc.op, got, tc.nRes)
		}
		if got := tc.op.VariableArity(); got != tc.variableArity {
			t.Errorf("%s.VariableArity() = %v", tc.op, got)
		}
	}
}
