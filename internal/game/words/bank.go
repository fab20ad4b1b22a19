package words

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cory-johannsen/sketchparty/internal/game/rng"
)

// SelectOptions constrains word selection.
type SelectOptions struct {
	// Difficulty filters to a single difficulty when non-empty.
	Difficulty string
	// Category filters to a single category when non-empty.
	Category string
	// Exclude lists words that must not be selected regardless of history.
	Exclude []string
}

// Bank selects words for rooms while remembering each room's recent picks so
// the same word does not come up again within the history window.
// All methods are safe for concurrent use.
type Bank struct {
	mu          sync.Mutex
	corpus      *Corpus
	src         rng.Source
	historySize int
	recent      map[string][]string // roomID → recent picks, oldest first
}

// NewBank creates a Bank over the given corpus.
//
// Precondition: corpus must be non-nil and non-empty; src must be non-nil;
// historySize must be >= 0 and smaller than corpus.Len() so a history purge
// always leaves candidates.
// Postcondition: Returns a Bank ready for use, or an error if historySize
// does not leave selection headroom.
func NewBank(corpus *Corpus, src rng.Source, historySize int) (*Bank, error) {
	if historySize < 0 {
		return nil, fmt.Errorf("history size must be >= 0, got %d", historySize)
	}
	if historySize >= corpus.Len() {
		return nil, fmt.Errorf("history size %d must be smaller than corpus size %d", historySize, corpus.Len())
	}
	return &Bank{
		corpus:      corpus,
		src:         src,
		historySize: historySize,
		recent:      make(map[string][]string),
	}, nil
}

// RandomWord picks a word for roomID honoring opts and the room's recent
// history. If the constraints plus history empty the candidate set, the
// room's history is purged and selection retried once; termination is
// guaranteed because the corpus exceeds the history size.
//
// Precondition: roomID must be non-empty.
// Postcondition: The returned word is recorded in the room's history, or a
// non-nil error is returned if the constraints alone admit no word.
func (b *Bank) RandomWord(roomID string, opts SelectOptions) (Word, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, e := range opts.Exclude {
		excluded[strings.ToLower(strings.TrimSpace(e))] = true
	}

	candidates := b.filter(opts, excluded, b.recent[roomID])
	if len(candidates) == 0 {
		delete(b.recent, roomID)
		candidates = b.filter(opts, excluded, nil)
	}
	if len(candidates) == 0 {
		return Word{}, fmt.Errorf("no candidate words for difficulty=%q category=%q", opts.Difficulty, opts.Category)
	}

	pick := candidates[b.src.Intn(len(candidates))]
	b.remember(roomID, pick.Text)
	return pick, nil
}

// RecentWords returns a copy of the room's selection history, oldest first.
func (b *Bank) RecentWords(roomID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	history := b.recent[roomID]
	out := make([]string, len(history))
	copy(out, history)
	return out
}

// ForgetRoom drops the selection history for roomID. Called when a room is
// deleted so the bank does not hold state for dead rooms.
func (b *Bank) ForgetRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.recent, roomID)
}

// Hint returns a progressively revealing hint for word.
// Level 1 exposes the length; level 2 adds the category from the corpus;
// level 3 adds a masked pattern revealing roughly 30% of letter positions
// chosen uniformly at random.
//
// Precondition: word must be non-empty; level must be in [1,3] (values above
// 3 are treated as 3, below 1 as 1).
func (b *Bank) Hint(word string, level int) Hint {
	b.mu.Lock()
	defer b.mu.Unlock()

	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	word = strings.ToLower(strings.TrimSpace(word))
	h := Hint{Level: level, Length: len(word)}
	if level >= 2 {
		if entry, ok := b.corpus.byText[word]; ok {
			h.Category = entry.Category
		}
	}
	if level >= 3 {
		h.Pattern = maskWord(word, b.src)
	}
	return h
}

// filter returns corpus entries matching opts, excluding the given exclusion
// set and history.
func (b *Bank) filter(opts SelectOptions, excluded map[string]bool, history []string) []Word {
	inHistory := make(map[string]bool, len(history))
	for _, h := range history {
		inHistory[h] = true
	}

	difficulty := strings.ToLower(strings.TrimSpace(opts.Difficulty))
	category := strings.ToLower(strings.TrimSpace(opts.Category))

	var out []Word
	for _, w := range b.corpus.words {
		if difficulty != "" && w.Difficulty != difficulty {
			continue
		}
		if category != "" && w.Category != category {
			continue
		}
		if excluded[w.Text] || inHistory[w.Text] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// remember appends text to the room's history, evicting the oldest entry
// once the window is full.
func (b *Bank) remember(roomID, text string) {
	if b.historySize == 0 {
		return
	}
	history := append(b.recent[roomID], text)
	if len(history) > b.historySize {
		history = history[len(history)-b.historySize:]
	}
	b.recent[roomID] = history
}
