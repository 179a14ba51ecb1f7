package hashing

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

const (
	phashGrid = 32
	phashBits = 64
	// highest frequency reached by phashPairs, plus one
	phashBand = 16
)

// phashPairs lists the low frequency (u, v) pairs with u <= v in zigzag
// order, skipping the DC term.
var phashPairs = func() [][2]int {
	var pairs [][2]int
	for s := 1; len(pairs) < phashBits; s++ {
		for u := 0; u <= s/2 && len(pairs) < phashBits; u++ {
			pairs = append(pairs, [2]int{u, s - u})
		}
	}
	return pairs
}()

// phashCos[u][x] = cos(pi*(2x+1)*u / 2N) for the first half of the samples
var phashCos = func() (table [phashBand][phashGrid / 2]float64) {
	for u := 0; u < phashBand; u++ {
		for x := 0; x < phashGrid/2; x++ {
			table[u][x] = math.Cos(math.Pi * float64((2*x+1)*u) / (2 * phashGrid))
		}
	}
	return table
}()

type cellWeight struct {
	cell, weight int
}

// axisWeights spreads each of n source pixels over phashGrid cells,
// weighted by the overlap of the pixel and the cell.
func axisWeights(n int) [][]cellWeight {
	out := make([][]cellWeight, n)
	for p := 0; p < n; p++ {
		lo, hi := p*phashGrid, (p+1)*phashGrid
		for c := lo / n; c < phashGrid && c*n < hi; c++ {
			if w := min(hi, (c+1)*n) - max(lo, c*n); w > 0 {
				out[p] = append(out[p], cellWeight{cell: c, weight: w})
			}
		}
	}
	return out
}

// lumaGrid area-averages the luma of img onto a phashGrid square. Sums are
// integers, so a quarter turn of the image turns the grid exactly.
func lumaGrid(img image.Image) [phashGrid][phashGrid]float64 {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	xs, ys := axisWeights(w), axisWeights(h)

	var sums [phashGrid][phashGrid]int64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			luma := (19595*int64(src.Pix[i]) + 38470*int64(src.Pix[i+1]) + 7471*int64(src.Pix[i+2]) + 1<<15) >> 16
			for _, cy := range ys[y] {
				for _, cx := range xs[x] {
					sums[cy.cell][cx.cell] += int64(cy.weight*cx.weight) * luma
				}
			}
		}
	}

	var grid [phashGrid][phashGrid]float64
	for y := range sums {
		for x := range sums[y] {
			grid[y][x] = float64(sums[y][x])
		}
	}
	return grid
}

// pairSum is the one dimensional DCT term u of h. Mirrored samples are
// combined before multiplying, so mirroring h only flips the sign.
func pairSum(u int, h *[phashGrid]float64) float64 {
	var sum float64
	for x := 0; x < phashGrid/2; x++ {
		var t float64
		if u%2 == 0 {
			t = h[x] + h[phashGrid-1-x]
		} else {
			t = h[x] - h[phashGrid-1-x]
		}
		sum += float64(phashCos[u][x] * t)
	}
	return sum
}

// perceptualHash fingerprints the low frequencies of the luma DCT. Each bit
// tells whether |C(u,v)|+|C(v,u)| is above the median of the 64 features,
// which does not change when the picture is turned by a quarter.
func perceptualHash(img image.Image) string {
	grid := lumaGrid(img)

	var columns [phashGrid][phashGrid]float64
	for y := range grid {
		for x := range grid[y] {
			columns[x][y] = grid[y][x]
		}
	}

	// the 2D term is computed rows first and columns first and summed, which
	// keeps it exact under transposition
	var rowInner, colInner [phashBand][phashGrid]float64
	for u := 0; u < phashBand; u++ {
		for i := 0; i < phashGrid; i++ {
			rowInner[u][i] = pairSum(u, &grid[i])
			colInner[u][i] = pairSum(u, &columns[i])
		}
	}
	coefficient := func(u, v int) float64 {
		return pairSum(v, &rowInner[u]) + pairSum(u, &colInner[v])
	}

	features := make([]float64, len(phashPairs))
	for i, p := range phashPairs {
		features[i] = math.Abs(coefficient(p[0], p[1])) + math.Abs(coefficient(p[1], p[0]))
	}
	sorted := append([]float64(nil), features...)
	sort.Float64s(sorted)
	median := (sorted[phashBits/2-1] + sorted[phashBits/2]) / 2

	var hash uint64
	for _, f := range features {
		hash <<= 1
		if f > median {
			hash |= 1
		}
	}
	return fmt.Sprintf("%016x", hash)
}
