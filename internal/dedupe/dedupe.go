// Package dedupe collapses near-duplicate text entries before formatting.
// Consolidation output must be near-unique; this is the safety net behind
// the LLM's own deduplication instructions.
package dedupe

import (
	"regexp"
	"strings"
)

// DefaultThreshold is the token-overlap ratio at or above which two entries
// are considered the same point.
const DefaultThreshold = 0.8

var nonWordRe = regexp.MustCompile(`[^a-z0-9\s]+`)

// Strings removes entries whose normalized token overlap with an earlier
// entry is at least threshold. The first occurrence wins and input order is
// preserved.
func Strings(entries []string, threshold float64) []string {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	var out []string
	var kept [][]string
	for _, e := range entries {
		tokens := normalize(e)
		if len(tokens) == 0 {
			continue
		}
		dup := false
		for _, prev := range kept {
			if Overlap(tokens, prev) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, e)
			kept = append(kept, tokens)
		}
	}
	return out
}

// Overlap computes the overlap coefficient of two token lists: shared tokens
// divided by the smaller set's size. Two entries sharing 80% of their tokens
// score at least 0.8 regardless of which one is longer.
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(inter) / float64(smaller)
}

func normalize(s string) []string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.Fields(s)
}
