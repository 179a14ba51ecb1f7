package hashing

import (
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/media"
	"github.com/victor/stormcatalog/internal/models"
)

// CorruptedFingerprint replaces a perceptual hash when the file cannot be decoded.
// Assets carrying it are never grouped as duplicates.
const CorruptedFingerprint = "corrupted"

// Calculator computes the fingerprint of an asset with the primary algorithm
type Calculator struct {
	fs        afero.Fs
	selection Selection
	decoder   media.Decoder
}

func NewCalculator(fs afero.Fs, selection Selection, decoder media.Decoder) *Calculator {
	return &Calculator{fs: fs, selection: selection, decoder: decoder}
}

// Algorithm returns the algorithm used by CalculateHash
func (c *Calculator) Algorithm() Algorithm {
	return c.selection.Primary()
}

// CalculateHash fingerprints an asset. Digests use data, perceptual hashes
// decode the file at path.
func (c *Calculator) CalculateHash(data []byte, path string) (string, error) {
	return c.Hash(c.selection.Primary(), data, path)
}

// Hash fingerprints an asset with an explicit algorithm
func (c *Calculator) Hash(algorithm Algorithm, data []byte, path string) (string, error) {
	if data == nil {
		return "", fmt.Errorf("image data: %w", apperr.ErrMissingArgument)
	}

	switch algorithm {
	case SHA512:
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:]), nil
	case MD5:
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case PHash, DHash:
		return c.perceptual(algorithm, path)
	default:
		return "", fmt.Errorf("unknown hash algorithm %v", algorithm)
	}
}

func (c *Calculator) perceptual(algorithm Algorithm, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("image path: %w", apperr.ErrMissingArgument)
	}
	content, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := c.decoder.Decode(content, models.Rotate0)
	if err != nil {
		return CorruptedFingerprint, nil
	}
	if algorithm == PHash {
		return perceptualHash(img), nil
	}
	return differenceHash(img), nil
}

// Distance counts the differing bits of two hexadecimal fingerprints.
// Fingerprints of different length or that are not hexadecimal are maximally distant.
func Distance(a, b string) int {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if len(a) != len(b) {
		return longest * 4
	}

	distance := 0
	for i := 0; i < len(a); i++ {
		x, errA := strconv.ParseUint(a[i:i+1], 16, 8)
		y, errB := strconv.ParseUint(b[i:i+1], 16, 8)
		if errA != nil || errB != nil {
			return longest * 4
		}
		distance += bits.OnesCount64(x ^ y)
	}
	return distance
}
