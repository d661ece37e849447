package l5doa

import (
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Covariance returns (1/K) Σ x_k x_kᴴ over the given snapshots, which must
// share one length.
func Covariance(snaps ...[]complex128) *mat.CDense {
	if len(snaps) == 0 || len(snaps[0]) == 0 {
		return nil
	}
	m := len(snaps[0])
	r := mat.NewCDense(m, m, nil)
	scale := complex(1/float64(len(snaps)), 0)
	for _, x := range snaps {
		for i := 0; i < m; i++ {
			xi := x[i] * scale
			for j := 0; j < m; j++ {
				r.Set(i, j, r.At(i, j)+xi*cmplx.Conj(x[j]))
			}
		}
	}
	return r
}

// Decomposition is the eigen-analysis of a Hermitian covariance matrix.
//
// The matrix R = A + iB is factorised through its real symmetric embedding
// [[A, −B], [B, A]], whose spectrum is R's spectrum with every eigenvalue
// doubled and whose eigenvector pairs [p; q], [−q; p] span the same
// subspace as R's eigenvector p + iq.
type Decomposition struct {
	// Values holds R's eigenvalues in descending order.
	Values []float64

	dim     int
	order   []int // embedding eigenvector columns, descending by value
	vectors *mat.Dense
}

// Decompose factorises the Hermitian matrix r.
func Decompose(r *mat.CDense) (*Decomposition, error) {
	if r == nil {
		return nil, fmt.Errorf("nil covariance")
	}
	m, c := r.Dims()
	if m != c || m == 0 {
		return nil, fmt.Errorf("covariance must be square and non-empty, got %d×%d", m, c)
	}
	n := 2 * m
	data := make([]float64, n*n)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			v := r.At(i, j)
			a, b := real(v), imag(v)
			data[i*n+j] = a
			data[i*n+j+m] = -b
			data[(i+m)*n+j] = b
			data[(i+m)*n+j+m] = a
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(n, data), true); !ok {
		return nil, fmt.Errorf("eigendecomposition did not converge")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return vals[order[i]] > vals[order[j]] })

	d := &Decomposition{dim: m, order: order, vectors: &vecs, Values: make([]float64, m)}
	for i := range d.Values {
		d.Values[i] = vals[order[2*i]]
	}
	return d, nil
}

// Rank counts eigenvalues above tol relative to the largest.
func (d *Decomposition) Rank(tol float64) int {
	if len(d.Values) == 0 || d.Values[0] <= 0 {
		return 0
	}
	n := 0
	for _, v := range d.Values {
		if v > tol*d.Values[0] {
			n++
		}
	}
	return n
}

// NoiseProjection returns ‖E_nᴴ a‖², the energy of steering vector a in
// the noise subspace left after removing the top signal eigenvectors.
func (d *Decomposition) NoiseProjection(a []complex128, signal int) float64 {
	var sum float64
	for _, col := range d.order[2*signal:] {
		var dot float64
		for i, v := range a {
			dot += real(v)*d.vectors.At(i, col) + imag(v)*d.vectors.At(i+d.dim, col)
		}
		sum += dot * dot
	}
	return sum
}
