// Package hashing computes the fingerprints used to recognise identical and
// similar images.
package hashing

import "fmt"

// Algorithm identifies a fingerprint function
type Algorithm int

const (
	PHash Algorithm = iota
	DHash
	MD5
	SHA512
)

// Priority orders the algorithms from most to least preferred
var Priority = []Algorithm{PHash, DHash, MD5, SHA512}

func (a Algorithm) String() string {
	switch a {
	case PHash:
		return "phash"
	case DHash:
		return "dhash"
	case MD5:
		return "md5"
	case SHA512:
		return "sha512"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// Perceptual reports whether the algorithm fingerprints decoded pixels
func (a Algorithm) Perceptual() bool {
	return a == PHash || a == DHash
}

// Selection is the set of enabled algorithms. SHA512 is always enabled.
type Selection struct {
	enabled map[Algorithm]bool
}

// NewSelection builds a selection from the hashing configuration flags
func NewSelection(usePHash, useDHash, useMD5 bool) Selection {
	return Selection{enabled: map[Algorithm]bool{
		PHash:  usePHash,
		DHash:  useDHash,
		MD5:    useMD5,
		SHA512: true,
	}}
}

// Enabled reports whether a is part of the selection
func (s Selection) Enabled(a Algorithm) bool {
	return a == SHA512 || s.enabled[a]
}

// Primary returns the highest priority enabled algorithm
func (s Selection) Primary() Algorithm {
	for _, a := range Priority {
		if s.Enabled(a) {
			return a
		}
	}
	return SHA512
}
