package hashing

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/victor/stormcatalog/internal/apperr"
	"github.com/victor/stormcatalog/internal/media"
	"github.com/victor/stormcatalog/internal/testutil"
)

const (
	emptySHA512 = "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"
	abcSHA512   = "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"
	emptyMD5    = "d41d8cd98f00b204e9800998ecf8427e"
	abcMD5      = "900150983cd24fb0d6963f7d28e17f72"
)

func setupTestCalculator(t *testing.T, selection Selection) (*Calculator, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewCalculator(fs, selection, media.NewProcessor()), fs
}

func TestSelection_Primary(t *testing.T) {
	tests := []struct {
		name                    string
		usePHash, useDHash, md5 bool
		want                    Algorithm
	}{
		{"default", false, false, false, SHA512},
		{"md5 only", false, false, true, MD5},
		{"dhash over md5", false, true, true, DHash},
		{"phash over everything", true, true, true, PHash},
		{"phash alone", true, false, false, PHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSelection(tt.usePHash, tt.useDHash, tt.md5).Primary(); got != tt.want {
				t.Errorf("Primary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateHash_Digests(t *testing.T) {
	calc, _ := setupTestCalculator(t, NewSelection(false, false, false))

	got, err := calc.CalculateHash([]byte{}, "")
	if err != nil || got != emptySHA512 {
		t.Errorf("SHA512 of empty input = %q, %v", got, err)
	}
	got, _ = calc.CalculateHash([]byte("abc"), "")
	if got != abcSHA512 {
		t.Errorf("SHA512 of abc = %q", got)
	}

	calc, _ = setupTestCalculator(t, NewSelection(false, false, true))
	got, _ = calc.CalculateHash([]byte{}, "")
	if got != emptyMD5 {
		t.Errorf("MD5 of empty input = %q", got)
	}
	got, _ = calc.CalculateHash([]byte("abc"), "")
	if got != abcMD5 {
		t.Errorf("MD5 of abc = %q", got)
	}
}

func TestCalculateHash_NilData(t *testing.T) {
	calc, _ := setupTestCalculator(t, NewSelection(false, false, false))
	if _, err := calc.CalculateHash(nil, "/a.jpg"); !errors.Is(err, apperr.ErrMissingArgument) {
		t.Errorf("Expected ErrMissingArgument, got %v", err)
	}
}

func TestCalculateHash_Deterministic(t *testing.T) {
	for _, sel := range []Selection{
		NewSelection(true, false, false),
		NewSelection(false, true, false),
		NewSelection(false, false, true),
		NewSelection(false, false, false),
	} {
		calc, fs := setupTestCalculator(t, sel)
		data := testutil.PNG(t, testutil.PatternImage(64, 48, 5))
		testutil.WriteFile(t, fs, "/photos/a.png", data)

		first, err := calc.CalculateHash(data, "/photos/a.png")
		if err != nil {
			t.Fatalf("%v: CalculateHash failed: %v", calc.Algorithm(), err)
		}
		second, _ := calc.CalculateHash(data, "/photos/a.png")
		if first != second {
			t.Errorf("%v: hash is not deterministic", calc.Algorithm())
		}
	}
}

func TestPHash_Format(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(true, false, false))
	data := testutil.PNG(t, testutil.PatternImage(80, 60, 1))
	testutil.WriteFile(t, fs, "/a.png", data)

	hash, err := calc.CalculateHash(data, "/a.png")
	if err != nil {
		t.Fatalf("CalculateHash failed: %v", err)
	}
	if len(hash) != 16 {
		t.Errorf("Expected 16 hex digits, got %d", len(hash))
	}
	if strings.Trim(hash, "0123456789abcdef") != "" {
		t.Errorf("Expected lowercase hex, got %q", hash)
	}
}

func TestPHash_RotationInvariant(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(true, false, false))
	src := testutil.PatternImage(90, 60, 7)

	variants := map[string][]byte{
		"/r0.png":   testutil.PNG(t, src),
		"/r90.png":  testutil.PNG(t, imaging.Rotate90(src)),
		"/r180.png": testutil.PNG(t, imaging.Rotate180(src)),
		"/r270.png": testutil.PNG(t, imaging.Rotate270(src)),
	}
	for path, data := range variants {
		testutil.WriteFile(t, fs, path, data)
	}

	want, err := calc.CalculateHash(variants["/r0.png"], "/r0.png")
	if err != nil {
		t.Fatalf("CalculateHash failed: %v", err)
	}
	for path, data := range variants {
		got, err := calc.CalculateHash(data, path)
		if err != nil {
			t.Fatalf("CalculateHash(%s) failed: %v", path, err)
		}
		if got != want {
			t.Errorf("Expected %s to hash like the original", path)
		}
	}
}

func TestPHash_JPEGRotationsWithinThreshold(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(true, false, false))
	src := testutil.PatternImage(192, 128, 7)

	variants := map[string][]byte{
		"/r0.jpg":   testutil.JPEG(t, src),
		"/r90.jpg":  testutil.JPEG(t, imaging.Rotate90(src)),
		"/r180.jpg": testutil.JPEG(t, imaging.Rotate180(src)),
		"/r270.jpg": testutil.JPEG(t, imaging.Rotate270(src)),
	}
	for path, data := range variants {
		testutil.WriteFile(t, fs, path, data)
	}

	want, err := calc.CalculateHash(variants["/r0.jpg"], "/r0.jpg")
	if err != nil {
		t.Fatalf("CalculateHash failed: %v", err)
	}
	for path, data := range variants {
		got, err := calc.CalculateHash(data, path)
		if err != nil {
			t.Fatalf("CalculateHash(%s) failed: %v", path, err)
		}
		if d := Distance(want, got); d > 10 {
			t.Errorf("Expected %s within 10 bits of the original, got %d", path, d)
		}
	}
}

func TestPHash_DecodedJPEGRotationIsExact(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(true, false, false))
	jpegData := testutil.JPEG(t, testutil.PatternImage(192, 128, 3))
	decoded, err := imaging.Decode(bytes.NewReader(jpegData))
	if err != nil {
		t.Fatalf("Failed to decode jpeg: %v", err)
	}
	rotated := testutil.PNG(t, imaging.Rotate90(decoded))
	testutil.WriteFile(t, fs, "/a.jpg", jpegData)
	testutil.WriteFile(t, fs, "/a_rotated.png", rotated)

	want, _ := calc.CalculateHash(jpegData, "/a.jpg")
	got, _ := calc.CalculateHash(rotated, "/a_rotated.png")
	if got != want {
		t.Errorf("Expected a lossless rotation of the decoded pixels to hash identically, got %s and %s", want, got)
	}
}

func TestPHash_DistinguishesImages(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(true, false, false))
	a := testutil.PNG(t, testutil.PatternImage(64, 64, 1))
	b := testutil.PNG(t, testutil.PatternImage(64, 64, 90))
	testutil.WriteFile(t, fs, "/a.png", a)
	testutil.WriteFile(t, fs, "/b.png", b)

	ha, _ := calc.CalculateHash(a, "/a.png")
	hb, _ := calc.CalculateHash(b, "/b.png")
	if ha == hb {
		t.Error("Expected different fingerprints for different images")
	}
}

func TestPerceptual_Errors(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(false, true, false))

	if _, err := calc.CalculateHash([]byte("x"), ""); !errors.Is(err, apperr.ErrMissingArgument) {
		t.Errorf("Expected ErrMissingArgument for empty path, got %v", err)
	}
	if _, err := calc.CalculateHash([]byte("x"), "/missing.jpg"); err == nil {
		t.Error("Expected error for missing file")
	}

	testutil.WriteFile(t, fs, "/broken.jpg", []byte("definitely not a jpeg"))
	got, err := calc.CalculateHash([]byte("definitely not a jpeg"), "/broken.jpg")
	if err != nil {
		t.Fatalf("Expected sentinel, got error %v", err)
	}
	if got != CorruptedFingerprint {
		t.Errorf("Expected %q, got %q", CorruptedFingerprint, got)
	}
}

func TestDHash_Format(t *testing.T) {
	calc, fs := setupTestCalculator(t, NewSelection(false, true, false))
	data := testutil.PNG(t, testutil.PatternImage(120, 80, 3))
	testutil.WriteFile(t, fs, "/a.png", data)

	hash, err := calc.CalculateHash(data, "/a.png")
	if err != nil {
		t.Fatalf("CalculateHash failed: %v", err)
	}
	if len(hash) != 16 {
		t.Errorf("Expected 16 hex digits, got %q", hash)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"00", "00", 0},
		{"0f", "00", 4},
		{"ff", "00", 8},
		{"a", "5", 4},
		{"abc", "ab", 12},
		{"zz", "00", 8},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
