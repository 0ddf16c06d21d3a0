// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package plumbing

import (
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/zeebo/blake3"
)

const (
	HASH_DIGEST_SIZE = 32
	HASH_HEX_SIZE    = 64
)

const (
	ZERO_OID = "0000000000000000000000000000000000000000000000000000000000000000"
)

// Hash BLAKE3 hashed content
type Hash [HASH_DIGEST_SIZE]byte

// ZeroHash is Hash with value zero
var ZeroHash Hash

// NewHash return a new Hash from a hexadecimal hash representation
func NewHash(s string) Hash {
	b, _ := hex.DecodeString(s)

	var h Hash
	copy(h[:], b)

	return h
}

// NewHashEx parses a hexadecimal hash representation, rejecting text that is
// not exactly HASH_HEX_SIZE valid hex characters.
func NewHashEx(s string) (Hash, error) {
	if len(s) != HASH_HEX_SIZE {
		return ZeroHash, fmt.Errorf("mistake hash text '%s'", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, fmt.Errorf("mistake hash text '%s'", s)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func (h Hash) IsZero() bool {
	var empty Hash
	return h == empty
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Shorten() int {
	i := HASH_DIGEST_SIZE - 1
	for ; i >= 4; i-- {
		if h[i] != 0 {
			return i + 1
		}
	}
	return i + 1
}

func (h Hash) Prefix() string {
	return hex.EncodeToString(h[:h.Shorten()])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	hashBytes, _ := hex.DecodeString(string(text))
	copy(h[:], hashBytes)
	return nil
}

// HashesSort sorts a slice of Hashes in increasing order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

// HashSlice attaches the methods of sort.Interface to []Hash, sorting in
// increasing order.
type HashSlice []Hash

func (p HashSlice) Len() int { return len(p) }
func (p HashSlice) Less(i, j int) bool {
	for k := 0; k < HASH_DIGEST_SIZE; k++ {
		if p[i][k] != p[j][k] {
			return p[i][k] < p[j][k]
		}
	}
	return false
}
func (p HashSlice) Swap(i, j int) { p[i], p[j] = p[j], p[i] }

type Hasher struct {
	hash.Hash
}

func NewHasher() Hasher {
	return Hasher{Hash: blake3.New()}
}

func (h Hasher) Sum() (oid Hash) {
	copy(oid[:], h.Hash.Sum(nil))
	return
}
