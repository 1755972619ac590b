// Package hash wraps xxHash64 for file fingerprinting.
package hash

import (
	"io"

	"github.com/cespare/xxhash/v2"
)

// Bytes returns the xxHash64 digest of data.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Stream returns the xxHash64 digest of everything readable from r.
func Stream(r io.Reader) (uint64, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return 0, err
	}

	return d.Sum64(), nil
}
