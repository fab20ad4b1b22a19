package words_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/sketchparty/internal/game/words"
)

// seqSource is a deterministic rng.Source cycling through a fixed sequence.
type seqSource struct {
	vals []int
	i    int
}

func (s *seqSource) Intn(n int) int {
	if n <= 0 {
		panic("seqSource: n <= 0")
	}
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[s.i%len(s.vals)] % n
	s.i++
	return v
}

func testCorpus(t *testing.T) *words.Corpus {
	t.Helper()
	c, err := words.NewCorpus([]words.Word{
		{Text: "cat", Category: "animals", Difficulty: "easy"},
		{Text: "dog", Category: "animals", Difficulty: "easy"},
		{Text: "elephant", Category: "animals", Difficulty: "medium"},
		{Text: "pizza", Category: "food", Difficulty: "easy"},
		{Text: "croissant", Category: "food", Difficulty: "hard"},
	})
	require.NoError(t, err)
	return c
}

func TestNewBankHistoryTooLarge(t *testing.T) {
	corpus := testCorpus(t)
	_, err := words.NewBank(corpus, &seqSource{}, corpus.Len())
	assert.Error(t, err)
}

func TestNewBankNegativeHistory(t *testing.T) {
	_, err := words.NewBank(testCorpus(t), &seqSource{}, -1)
	assert.Error(t, err)
}

func TestRandomWordRecordsHistory(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 3)
	require.NoError(t, err)

	w, err := bank.RandomWord("room-1", words.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{w.Text}, bank.RecentWords("room-1"))
}

func TestRandomWordAvoidsRecentPicks(t *testing.T) {
	// Always pick index 0 of the candidate list: with history active the
	// same word can never repeat inside the window.
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 3)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		w, err := bank.RandomWord("room-1", words.SelectOptions{})
		require.NoError(t, err)
		assert.False(t, seen[w.Text], "word %q repeated within history window", w.Text)
		seen[w.Text] = true
	}
}

func TestRandomWordHistoryIsPerRoom(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 3)
	require.NoError(t, err)

	first, err := bank.RandomWord("room-1", words.SelectOptions{})
	require.NoError(t, err)

	// A different room is unconstrained by room-1's history.
	other, err := bank.RandomWord("room-2", words.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.Text, other.Text)
}

func TestRandomWordDifficultyFilter(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 0)
	require.NoError(t, err)

	w, err := bank.RandomWord("room-1", words.SelectOptions{Difficulty: "hard"})
	require.NoError(t, err)
	assert.Equal(t, "croissant", w.Text)
}

func TestRandomWordCategoryFilter(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0, 1, 0, 1}}, 0)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		w, err := bank.RandomWord("room-1", words.SelectOptions{Category: "food"})
		require.NoError(t, err)
		assert.Equal(t, "food", w.Category)
	}
}

func TestRandomWordNoCandidates(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{}, 0)
	require.NoError(t, err)

	_, err = bank.RandomWord("room-1", words.SelectOptions{Difficulty: "impossible"})
	assert.Error(t, err)
}

func TestRandomWordPurgesHistoryWhenExhausted(t *testing.T) {
	// Only two food words; a history of 2 exhausts the category, which must
	// purge the room's history and retry instead of failing.
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := bank.RandomWord("room-1", words.SelectOptions{Category: "food"})
		require.NoError(t, err, "selection %d should survive history purge", i)
	}
}

func TestRandomWordExclude(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 0)
	require.NoError(t, err)

	w, err := bank.RandomWord("room-1", words.SelectOptions{
		Category: "food",
		Exclude:  []string{"pizza"},
	})
	require.NoError(t, err)
	assert.Equal(t, "croissant", w.Text)
}

func TestForgetRoom(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 3)
	require.NoError(t, err)

	_, err = bank.RandomWord("room-1", words.SelectOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, bank.RecentWords("room-1"))

	bank.ForgetRoom("room-1")
	assert.Empty(t, bank.RecentWords("room-1"))
}

func TestHintLevels(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0, 1, 2, 3, 4, 5, 6, 7}}, 0)
	require.NoError(t, err)

	h1 := bank.Hint("elephant", 1)
	assert.Equal(t, 1, h1.Level)
	assert.Equal(t, 8, h1.Length)
	assert.Empty(t, h1.Category)
	assert.Empty(t, h1.Pattern)

	h2 := bank.Hint("elephant", 2)
	assert.Equal(t, "animals", h2.Category)
	assert.Empty(t, h2.Pattern)

	h3 := bank.Hint("elephant", 3)
	assert.Equal(t, "animals", h3.Category)
	assert.Len(t, h3.Pattern, 8)
	assert.NotEqual(t, "elephant", h3.Pattern)
	assert.Contains(t, h3.Pattern, "_")
}

func TestHintClampsLevel(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0, 1, 2}}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, bank.Hint("cat", 0).Level)
	assert.Equal(t, 3, bank.Hint("cat", 9).Level)
}

func TestHintUnknownWordHasNoCategory(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0}}, 0)
	require.NoError(t, err)

	h := bank.Hint("zeppelin", 2)
	assert.Equal(t, 8, h.Length)
	assert.Empty(t, h.Category)
}

func TestPropertyHintPatternPreservesShape(t *testing.T) {
	bank, err := words.NewBank(testCorpus(t), &seqSource{vals: []int{0, 3, 1, 4, 2, 5}}, 0)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "word")
		h := bank.Hint(word, 3)
		if len(h.Pattern) != len(word) {
			t.Fatalf("pattern %q length differs from word %q", h.Pattern, word)
		}
		for i := range word {
			if h.Pattern[i] != '_' && h.Pattern[i] != word[i] {
				t.Fatalf("pattern %q reveals wrong letter at %d for word %q", h.Pattern, i, word)
			}
		}
		if !strings.ContainsAny(h.Pattern, word) {
			t.Fatalf("pattern %q reveals no letters of %q", h.Pattern, word)
		}
	})
}
