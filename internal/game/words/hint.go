package words

import (
	"strings"

	"github.com/cory-johannsen/sketchparty/internal/game/rng"
)

// Hint describes what guessers are allowed to know about the current word.
type Hint struct {
	// Level is the hint level the fields were built for (1-3).
	Level int
	// Length is the number of characters in the word.
	Length int
	// Category is the corpus category, empty below level 2 or for unknown words.
	Category string
	// Pattern is the masked word (e.g. "e_e__a_t"), empty below level 3.
	Pattern string
}

// maskWord produces a pattern revealing roughly 30% of letter positions,
// chosen uniformly at random. Spaces are always shown; at least one letter is
// revealed for non-empty words.
func maskWord(word string, src rng.Source) string {
	letters := make([]int, 0, len(word))
	for i, r := range word {
		if r != ' ' {
			letters = append(letters, i)
		}
	}
	reveal := len(letters) * 3 / 10
	if reveal == 0 && len(letters) > 0 {
		reveal = 1
	}

	revealed := make(map[int]bool, reveal)
	for len(revealed) < reveal {
		revealed[letters[src.Intn(len(letters))]] = true
	}

	var sb strings.Builder
	for i, r := range word {
		switch {
		case r == ' ':
			sb.WriteByte(' ')
		case revealed[i]:
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
