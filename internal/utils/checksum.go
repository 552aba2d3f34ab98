package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Checksum identifies a file's content across machines. Both signing phases
// log it for the input bundle so an operator can confirm that the bundle fed
// to signbundle is byte-identical to the one genbin recorded digests for.
type Checksum struct {
	SHA256 string
	Size   int64
}

// CalculateChecksum streams a file through SHA-256 in a single pass
func CalculateChecksum(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return &Checksum{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   info.Size(),
	}, nil
}
