package search

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// minTokenLength drops single-character noise ("a", "x") from the index.
const minTokenLength = 2

// Match is one search hit.
type Match struct {
	Function string
	Language string
	Score    int
}

type docKey struct {
	function string
	language string
}

// Index is an in-memory inverted index: token -> set of document keys.
// Mutations run under a coarse lock; posting lists are small and a few
// milliseconds of staleness is acceptable, corruption is not.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[docKey]struct{}
	docs     map[docKey]map[string]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		postings: make(map[string]map[docKey]struct{}),
		docs:     make(map[docKey]map[string]struct{}),
	}
}

// Tokenize lowercases text and splits it on non-alphanumeric boundaries,
// returning the deduplicated token set.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// Put indexes the searchable text for one (function, language) key,
// replacing any prior postings for that key. Indexing the same key twice
// with identical text is a no-op in effect.
func (ix *Index) Put(function, language, text string) {
	key := docKey{function, language}
	tokens := Tokenize(function + " " + text)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(key)

	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
		posting, ok := ix.postings[tok]
		if !ok {
			posting = make(map[docKey]struct{})
			ix.postings[tok] = posting
		}
		posting[key] = struct{}{}
	}
	ix.docs[key] = set
}

// Remove drops all postings for one key. Called synchronously on store
// eviction and invalidation. Idempotent.
func (ix *Index) Remove(function, language string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(docKey{function, language})
}

func (ix *Index) removeLocked(key docKey) {
	set, ok := ix.docs[key]
	if !ok {
		return
	}
	for tok := range set {
		posting := ix.postings[tok]
		delete(posting, key)
		if len(posting) == 0 {
			delete(ix.postings, tok)
		}
	}
	delete(ix.docs, key)
}

// Search scores every indexed key by the number of query tokens present
// in its token set and returns up to max matches, best first. Ties break
// by function name, then language, so results are deterministic. An empty
// query returns nothing, never the whole corpus.
func (ix *Index) Search(query string, max int) []Match {
	tokens := Tokenize(query)
	if len(tokens) == 0 || max <= 0 {
		return nil
	}

	ix.mu.RLock()
	scores := make(map[docKey]int)
	for _, tok := range tokens {
		for key := range ix.postings[tok] {
			scores[key]++
		}
	}
	ix.mu.RUnlock()

	matches := make([]Match, 0, len(scores))
	for key, score := range scores {
		matches = append(matches, Match{
			Function: key.function,
			Language: key.language,
			Score:    score,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Function != matches[j].Function {
			return matches[i].Function < matches[j].Function
		}
		return matches[i].Language < matches[j].Language
	})

	if len(matches) > max {
		matches = matches[:max]
	}
	return matches
}

// Doc is one indexed (function, language) key.
type Doc struct {
	Function string
	Language string
}

// Docs returns the keys currently indexed, in no particular order.
func (ix *Index) Docs() []Doc {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docs := make([]Doc, 0, len(ix.docs))
	for key := range ix.docs {
		docs = append(docs, Doc{Function: key.function, Language: key.language})
	}
	return docs
}

// Len returns the number of indexed keys.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Terms returns the number of distinct tokens in the index.
func (ix *Index) Terms() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}
