// Package words provides the drawing-word corpus, per-room anti-repetition
// selection, fuzzy guess matching, and progressive hints.
package words

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Word is a single corpus entry.
type Word struct {
	// Text is the word itself, stored lowercase.
	Text string
	// Category is the topic group, e.g. "animals".
	Category string
	// Difficulty is one of "easy", "medium", "hard".
	Difficulty string
}

// Corpus is an immutable, validated set of drawable words.
type Corpus struct {
	words  []Word
	byText map[string]Word
}

// yamlWordFile is the top-level YAML structure for word files.
type yamlWordFile struct {
	Words []yamlWord `yaml:"words"`
}

// yamlWord is the YAML representation of a corpus entry.
type yamlWord struct {
	Text       string `yaml:"text"`
	Category   string `yaml:"category"`
	Difficulty string `yaml:"difficulty"`
}

// NewCorpus builds a Corpus from the given entries.
//
// Precondition: entries must be non-empty; every Text must be non-empty.
// Postcondition: Returns a validated Corpus or a non-nil error. Text and
// Category are normalized to lowercase; duplicate texts are rejected.
func NewCorpus(entries []Word) (*Corpus, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("corpus must contain at least one word")
	}
	c := &Corpus{
		words:  make([]Word, 0, len(entries)),
		byText: make(map[string]Word, len(entries)),
	}
	for _, w := range entries {
		text := strings.ToLower(strings.TrimSpace(w.Text))
		if text == "" {
			return nil, fmt.Errorf("corpus entry with empty text")
		}
		if _, dup := c.byText[text]; dup {
			return nil, fmt.Errorf("duplicate corpus entry %q", text)
		}
		entry := Word{
			Text:       text,
			Category:   strings.ToLower(strings.TrimSpace(w.Category)),
			Difficulty: strings.ToLower(strings.TrimSpace(w.Difficulty)),
		}
		c.words = append(c.words, entry)
		c.byText[text] = entry
	}
	return c, nil
}

// Len returns the number of words in the corpus.
func (c *Corpus) Len() int { return len(c.words) }

// Lookup returns the corpus entry for text (case-insensitive).
//
// Postcondition: Returns (word, true) if found, or (Word{}, false) otherwise.
func (c *Corpus) Lookup(text string) (Word, bool) {
	w, ok := c.byText[strings.ToLower(strings.TrimSpace(text))]
	return w, ok
}

// LoadCorpusFromBytes parses a corpus from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the word-file schema.
// Postcondition: Returns a validated Corpus or a non-nil error.
func LoadCorpusFromBytes(data []byte) (*Corpus, error) {
	var file yamlWordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing word YAML: %w", err)
	}
	entries := make([]Word, 0, len(file.Words))
	for _, yw := range file.Words {
		entries = append(entries, Word{Text: yw.Text, Category: yw.Category, Difficulty: yw.Difficulty})
	}
	return NewCorpus(entries)
}

// LoadCorpusFromDir loads and merges all YAML word files in a directory.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns a Corpus merging every file, or the first error.
func LoadCorpusFromDir(dir string) (*Corpus, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading word directory %s: %w", dir, err)
	}

	var entries []Word
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading word file %s: %w", name, err)
		}
		var file yamlWordFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing word file %s: %w", name, err)
		}
		for _, yw := range file.Words {
			entries = append(entries, Word{Text: yw.Text, Category: yw.Category, Difficulty: yw.Difficulty})
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no word files found in %s", dir)
	}
	return NewCorpus(entries)
}

// DefaultCorpus returns the compiled-in corpus used when no word files are
// provided. It is large enough that anti-repetition filtering always leaves
// candidates after a history purge.
func DefaultCorpus() *Corpus {
	c, err := NewCorpus(defaultWords)
	if err != nil {
		panic("words: default corpus invalid: " + err.Error())
	}
	return c
}

var defaultWords = []Word{
	{Text: "cat", Category: "animals", Difficulty: "easy"},
	{Text: "dog", Category: "animals", Difficulty: "easy"},
	{Text: "fish", Category: "animals", Difficulty: "easy"},
	{Text: "duck", Category: "animals", Difficulty: "easy"},
	{Text: "horse", Category: "animals", Difficulty: "easy"},
	{Text: "sheep", Category: "animals", Difficulty: "easy"},
	{Text: "spider", Category: "animals", Difficulty: "medium"},
	{Text: "penguin", Category: "animals", Difficulty: "medium"},
	{Text: "elephant", Category: "animals", Difficulty: "medium"},
	{Text: "kangaroo", Category: "animals", Difficulty: "medium"},
	{Text: "octopus", Category: "animals", Difficulty: "hard"},
	{Text: "chameleon", Category: "animals", Difficulty: "hard"},
	{Text: "sun", Category: "nature", Difficulty: "easy"},
	{Text: "moon", Category: "nature", Difficulty: "easy"},
	{Text: "tree", Category: "nature", Difficulty: "easy"},
	{Text: "cloud", Category: "nature", Difficulty: "easy"},
	{Text: "river", Category: "nature", Difficulty: "easy"},
	{Text: "mountain", Category: "nature", Difficulty: "medium"},
	{Text: "volcano", Category: "nature", Difficulty: "medium"},
	{Text: "rainbow", Category: "nature", Difficulty: "medium"},
	{Text: "tornado", Category: "nature", Difficulty: "hard"},
	{Text: "glacier", Category: "nature", Difficulty: "hard"},
	{Text: "house", Category: "objects", Difficulty: "easy"},
	{Text: "chair", Category: "objects", Difficulty: "easy"},
	{Text: "clock", Category: "objects", Difficulty: "easy"},
	{Text: "ladder", Category: "objects", Difficulty: "easy"},
	{Text: "guitar", Category: "objects", Difficulty: "medium"},
	{Text: "umbrella", Category: "objects", Difficulty: "medium"},
	{Text: "telescope", Category: "objects", Difficulty: "medium"},
	{Text: "scissors", Category: "objects", Difficulty: "medium"},
	{Text: "microscope", Category: "objects", Difficulty: "hard"},
	{Text: "typewriter", Category: "objects", Difficulty: "hard"},
	{Text: "pizza", Category: "food", Difficulty: "easy"},
	{Text: "apple", Category: "food", Difficulty: "easy"},
	{Text: "bread", Category: "food", Difficulty: "easy"},
	{Text: "banana", Category: "food", Difficulty: "easy"},
	{Text: "pancake", Category: "food", Difficulty: "medium"},
	{Text: "sandwich", Category: "food", Difficulty: "medium"},
	{Text: "spaghetti", Category: "food", Difficulty: "medium"},
	{Text: "croissant", Category: "food", Difficulty: "hard"},
	{Text: "bicycle", Category: "vehicles", Difficulty: "easy"},
	{Text: "train", Category: "vehicles", Difficulty: "easy"},
	{Text: "rocket", Category: "vehicles", Difficulty: "medium"},
	{Text: "submarine", Category: "vehicles", Difficulty: "medium"},
	{Text: "helicopter", Category: "vehicles", Difficulty: "hard"},
	{Text: "running", Category: "actions", Difficulty: "easy"},
	{Text: "swimming", Category: "actions", Difficulty: "easy"},
	{Text: "dancing", Category: "actions", Difficulty: "medium"},
	{Text: "juggling", Category: "actions", Difficulty: "hard"},
	{Text: "sleepwalking", Category: "actions", Difficulty: "hard"},
}
