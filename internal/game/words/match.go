package words

import "strings"

// MatchOptions controls guess matching behavior.
type MatchOptions struct {
	// CaseSensitive disables case folding before comparison.
	CaseSensitive bool
	// AllowPartial additionally accepts a guess that is a substring of the
	// target and at least minPartialLen characters long.
	AllowPartial bool
}

// minPartialLen is the shortest guess accepted as a partial match.
const minPartialLen = 3

// suffixes that may be stripped when comparing word roots, longest first so
// "ing" wins over a bare "g"-less strip order ambiguity.
var suffixes = []string{"ing", "est", "ed", "er", "s"}

// Match reports whether guess should count as a correct guess for target.
//
// Both strings are trimmed and, unless opts.CaseSensitive, lowercased. An
// exact match wins immediately. Otherwise the words match when they share a
// morphological root: common suffixes are stripped from either side, a root
// ending in a doubled letter drops one ("runn" → "run"), and "ed" forms
// restore a trailing "i" to "y" ("tried" → "try"). With opts.AllowPartial, a
// guess that is a substring of the target and at least minPartialLen
// characters long is also accepted.
//
// Postcondition: Returns false for empty guess or target; never mutates input.
func Match(guess, target string, opts MatchOptions) bool {
	guess = strings.TrimSpace(guess)
	target = strings.TrimSpace(target)
	if !opts.CaseSensitive {
		guess = strings.ToLower(guess)
		target = strings.ToLower(target)
	}
	if guess == "" || target == "" {
		return false
	}
	if guess == target {
		return true
	}

	guessRoots := roots(guess)
	for root := range roots(target) {
		if guessRoots[root] {
			return true
		}
	}

	if opts.AllowPartial && len(guess) >= minPartialLen && strings.Contains(target, guess) {
		return true
	}
	return false
}

// roots returns the set of morphological roots for s, always including s
// itself. A stripped base shorter than two characters is discarded.
func roots(s string) map[string]bool {
	out := map[string]bool{s: true}
	for _, suffix := range suffixes {
		if !strings.HasSuffix(s, suffix) {
			continue
		}
		base := strings.TrimSuffix(s, suffix)
		if len(base) < 2 {
			continue
		}
		out[base] = true

		n := len(base)
		if n >= 3 && base[n-1] == base[n-2] {
			out[base[:n-1]] = true
		}
		if suffix == "ed" && base[n-1] == 'i' {
			out[base[:n-1]+"y"] = true
		}
	}
	return out
}
