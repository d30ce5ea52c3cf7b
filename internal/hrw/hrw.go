// Package hrw assigns keys to owners by rendezvous (highest random weight)
// hashing. Adding or removing an owner only moves the keys it wins or owned.
package hrw

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Score returns the weight of node for key. seed namespaces the scores so
// that independent pools do not place keys identically.
func Score(key, node, seed string) uint64 {
	// 8-byte digest => uint64 score
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(node))
	return binary.BigEndian.Uint64(h.Sum(nil))
}

// Pick returns the index of the node with the highest score for key, or -1
// if nodes is empty. Ties go to the lower index.
func Pick(key string, nodes []string, seed string) int {
	best, bestScore := -1, uint64(0)
	for i, n := range nodes {
		if s := Score(key, n, seed); best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
