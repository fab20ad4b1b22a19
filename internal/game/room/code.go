package room

import (
	"strings"

	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/rng"
)

// CodeAlphabet is the 32-symbol alphabet for join codes. Visually ambiguous
// characters (0, O, I, 1) are excluded.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a join code.
const CodeLength = 6

// generateCode produces one candidate join code. Uniqueness among live rooms
// is the registry's responsibility.
func generateCode(src rng.Source) string {
	var sb strings.Builder
	sb.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		sb.WriteByte(CodeAlphabet[src.Intn(len(CodeAlphabet))])
	}
	return sb.String()
}

// NormalizeCode uppercases and validates a user-supplied join code.
//
// Postcondition: Returns the canonical uppercase code, or a validation error
// if the input has the wrong length or characters outside the alphabet.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", fault.Validation("room code must be %d characters", CodeLength)
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(CodeAlphabet, rune(code[i])) {
			return "", fault.Validation("room code contains invalid character %q", code[i])
		}
	}
	return code, nil
}
