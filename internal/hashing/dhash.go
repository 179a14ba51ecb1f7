package hashing

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// differenceHash compares horizontally adjacent pixels of a 9x8 grayscale thumbnail
func differenceHash(img image.Image) string {
	small := imaging.Resize(imaging.Grayscale(img), 9, 8, imaging.Lanczos)

	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			left := small.Pix[small.PixOffset(x, y)]
			right := small.Pix[small.PixOffset(x+1, y)]
			hash <<= 1
			if left > right {
				hash |= 1
			}
		}
	}
	return fmt.Sprintf("%016x", hash)
}
