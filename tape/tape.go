// Copyright 2026 the adcomp authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tape exposes the recorded operation sequence consumed by the
// reverse sweep.
//
// A Recording is an immutable, topologically ordered list of elementary
// operation records representing a traced computation. Record 0 is the
// begin marker and records 1..n declare the independent variables, so
// variable slots and record positions share one index space. Use a Builder
// to assemble recordings:
//
//	b := tape.NewBuilder()
//	x0 := b.Independent()
//	x1 := b.Independent()
//	prod := b.Mul(tape.Var(x0), tape.Var(x1))
//	y := b.Add(tape.Var(prod), tape.Var(b.Sin(x0)))
//	rec, err := b.Build()
//
// Coefficient matrices (forward Taylor coefficients and reverse partials)
// use the flat Coeffs layout: one row per variable slot, one column per
// Taylor order, with a caller-chosen row stride of at least order+1.
package tape

import "github.com/johnrsibert/adcomp/internal/tape"

// Recording is the immutable tape of operation records.
type Recording = tape.Recording

// Builder assembles a Recording in forward (creation) order.
type Builder = tape.Builder

// NewBuilder returns a Builder holding only the begin marker.
func NewBuilder() *Builder { return tape.NewBuilder() }

// OpCode identifies the kind of an operation record.
type OpCode = tape.OpCode

// Operand addresses one input of a recorded operation.
type Operand = tape.Operand

// Var addresses the variable slot at index i.
func Var(i int) Operand { return tape.Var(i) }

// Param addresses the parameter table entry at index i.
func Param(i int) Operand { return tape.Param(i) }

// Coeffs is a (variable, order) matrix over a flat float64 buffer.
type Coeffs = tape.Coeffs

// NewCoeffs allocates a zeroed matrix for numVar rows of the given stride.
func NewCoeffs(numVar, stride int) Coeffs { return tape.NewCoeffs(numVar, stride) }

// CoeffsOver wraps a caller-owned flat buffer without copying.
func CoeffsOver(data []float64, stride int) Coeffs { return tape.CoeffsOver(data, stride) }

// Comparison codes for conditional expressions, comparisons and
// conditional skips.
const (
	CmpLt = tape.CmpLt
	CmpLe = tape.CmpLe
	CmpEq = tape.CmpEq
	CmpGe = tape.CmpGe
	CmpGt = tape.CmpGt
	CmpNe = tape.CmpNe
)
