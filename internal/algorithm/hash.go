package algorithm

import (
	"crypto/md5"
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	rerrors "github.com/devrev/chashring/internal/errors"
)

// HashFunc maps a key onto the 32-bit ring space
type HashFunc func(data []byte) uint32

// Hash algorithm names accepted by HashFuncByName
const (
	HashAlgorithmMD5    = "md5"
	HashAlgorithmXXHash = "xxhash"
)

// MD5Hash folds the md5 digest of data into 32 bits by summing its four
// little-endian words modulo 2^32.
func MD5Hash(data []byte) uint32 {
	digest := md5.Sum(data)

	var hash uint32
	for i := 0; i < 4; i++ {
		hash += binary.LittleEndian.Uint32(digest[i*4 : i*4+4])
	}
	return hash
}

// XXHash folds the 64-bit xxhash of data into 32 bits
func XXHash(data []byte) uint32 {
	sum := xxhash.Sum64(data)
	return uint32(sum>>32) ^ uint32(sum)
}

// HashFuncByName resolves a configured hash algorithm name
func HashFuncByName(name string) (HashFunc, error) {
	switch strings.ToLower(name) {
	case "", HashAlgorithmMD5:
		return MD5Hash, nil
	case HashAlgorithmXXHash:
		return XXHash, nil
	default:
		return nil, rerrors.InvalidArgument("unknown hash algorithm: "+name, nil).
			WithDetail("hash_algorithm", name)
	}
}
