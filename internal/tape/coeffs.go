package tape

// Coeffs is a (variable, order) matrix over a flat float64 buffer with a
// fixed row stride. Both the forward Taylor coefficients and the partial
// derivatives of the reverse sweep use this layout: entry (i, k) lives at
// data[i*stride+k], with stride at least order+1.
//
// Coeffs is a view: copies share the underlying buffer. The buffer is owned
// by whoever allocated it; the sweep treats the Taylor matrix as read-only
// and the Partial matrix as exclusively its own for the duration of a sweep.
type Coeffs struct {
	data   []float64
	stride int
}

// NewCoeffs allocates a zeroed matrix for numVar rows of the given stride.
func NewCoeffs(numVar, stride int) Coeffs {
	return Coeffs{data: make([]float64, numVar*stride), stride: stride}
}

// CoeffsOver wraps a caller-owned buffer without copying.
// len(data) must be a multiple of stride.
func CoeffsOver(data []float64, stride int) Coeffs {
	return Coeffs{data: data, stride: stride}
}

// Stride returns the row stride.
func (c Coeffs) Stride() int { return c.stride }

// NumRows returns the number of complete rows in the buffer.
func (c Coeffs) NumRows() int { return len(c.data) / c.stride }

// Row returns the coefficient row of variable i.
func (c Coeffs) Row(i int) []float64 {
	return c.data[i*c.stride : (i+1)*c.stride]
}

// At returns entry (i, k).
func (c Coeffs) At(i, k int) float64 { return c.data[i*c.stride+k] }

// Set assigns entry (i, k).
func (c Coeffs) Set(i, k int, v float64) { c.data[i*c.stride+k] = v }

// Add accumulates v into entry (i, k).
func (c Coeffs) Add(i, k int, v float64) { c.data[i*c.stride+k] += v }

// Data returns the underlying flat buffer.
func (c Coeffs) Data() []float64 { return c.data }
