// Copyright 2026 the adcomp authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package reverse provides reverse-mode automatic differentiation over a
// recorded tape: given the forward Taylor coefficients of every variable,
// a backward replay accumulates the adjoints of the independent variables
// for all orders 0..d.
//
// Example, gradient of f(x0, x1) = x0*x1 + sin(x0) at order zero:
//
//	b := tape.NewBuilder()
//	x0 := b.Independent()
//	x1 := b.Independent()
//	y := b.Add(tape.Var(b.Mul(tape.Var(x0), tape.Var(x1))), tape.Var(b.Sin(x0)))
//	rec, _ := b.Build()
//
//	taylor := tape.NewCoeffs(rec.NumVar(), 1) // filled by the forward sweep
//	partial := tape.NewCoeffs(rec.NumVar(), 1)
//	partial.Set(y, 0, 1.0) // seed the output weight
//	err := reverse.Sweep(rec, taylor, partial, reverse.Options{Order: 0})
//	// partial.At(x0, 0) == x1 + cos(x0), partial.At(x1, 0) == x0
//
// Sweeps are deterministic, single-threaded and run to completion or fail
// fatally; a Recording and its skip/load tables may be shared read-only by
// concurrent sweeps as long as each sweep owns its own coefficient
// matrices.
package reverse

import (
	"github.com/johnrsibert/adcomp/internal/reverse"
	"github.com/johnrsibert/adcomp/internal/tape"
)

// Options configures one sweep.
type Options = reverse.Options

// Atomic is the reverse-mode callback contract for an externally defined
// operation embedded in the tape.
type Atomic = reverse.Atomic

// Registry resolves the atomic-function indices recorded on a tape.
type Registry = reverse.Registry

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return reverse.NewRegistry() }

// Sweep replays the recording backward, accumulating into partial the
// gradient of the weighted output sum defined by the caller's seeds.
func Sweep(rec *tape.Recording, taylor, partial tape.Coeffs, opts Options) error {
	return reverse.Sweep(rec, taylor, partial, opts)
}

// SweepOutput computes the gradient of one chosen dependent variable by
// replaying only the operations that transitively feed it.
func SweepOutput(rec *tape.Recording, taylor, partial tape.Coeffs, depVar int, opts Options) error {
	return reverse.SweepOutput(rec, taylor, partial, depVar, opts)
}

// DependentOps returns, in decreasing order, the tape positions of every
// operation that transitively feeds the given variable.
func DependentOps(rec *tape.Recording, depVar int, loadVar []int) ([]int, error) {
	return reverse.DependentOps(rec, depVar, loadVar)
}
