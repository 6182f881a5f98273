// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

// LCG returns the 30-bit output of the linear congruential generator
// (1103515245*seed + 12345) mod 2^31. It is not a random number
// source; it maps a seed to a reproducible pseudo-random value, and
// its exact output is part of the cursor-movement behavior.
//
// Negative seeds reduce to the non-negative residue: unsigned 64-bit
// wraparound keeps the low 31 bits of the true product, which is all
// the modulus looks at.
func LCG(seed int64) uint32 {
	const (
		multiplier = 1103515245
		increment  = 12345
		mask30     = 1<<30 - 1
	)
	return uint32((multiplier*uint64(seed) + increment) & mask30)
}

// cursorDelta maps a seed into [-MaxMouseMove, MaxMouseMove).
func cursorDelta(seed int64) int {
	return int(LCG(seed)%(2*MaxMouseMove)) - MaxMouseMove
}
