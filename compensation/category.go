/*
category.go - Category resolution for the field view

PURPOSE:
  Maps a case's category (joined row, foreign key, or free text) to its main
  category name. Upstream category data is inconsistent: sometimes a clean
  foreign key, sometimes free text with typos or abbreviations. Resolution is
  permissive but every relaxation step is bounded.

RESOLUTION ORDER (first success wins):
  1. Joined category row with a populated main category
  2. Category id looked up in the full category list
  3. Free text matched by FindBestMatch
  4. "Uncategorized"

FUZZY MATCHING (FindBestMatch), tried in order:
  a. normalized exact match
  b. text before "(" exact match
  c. compact match (spaces, hyphens, underscores removed)
  d. compact match against the part of each name before "("
  e. substring either direction, length difference <= max(3, 50% of shorter)
  f. token match, >= 60% of the shorter token set matched by equal/prefix/substring
  g. character overlap, best score >= 0.70

Candidates are scanned in sorted key order so ties resolve deterministically.
*/
package compensation

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Uncategorized is the main category of cases that cannot be resolved.
const Uncategorized = "Uncategorized"

const (
	minWordOverlap = 0.60
	minCharOverlap = 0.70
)

type MainCategory struct {
	ID   int64
	Name string
}

// Category is a sub-category. Main is nil when the parent is unknown.
type Category struct {
	ID   int64
	Name string
	Main *MainCategory
}

// MainName returns the parent category name, or "" when unknown.
func (c Category) MainName() string {
	if c.Main == nil {
		return ""
	}
	return strings.TrimSpace(c.Main.Name)
}

type categoryEntry struct {
	key           string
	compact       string
	prefixCompact string
	category      Category
}

// CategoryIndex is built once per batch from all known categories.
type CategoryIndex struct {
	byID      map[int64]Category
	byKey     map[string]Category
	byCompact map[string]Category
	entries   []categoryEntry
}

// NewCategoryIndex indexes sub-categories by id and by name. Main category names
// are indexed as well so free text naming a main category resolves to it.
func NewCategoryIndex(categories []Category) *CategoryIndex {
	ix := &CategoryIndex{
		byID:      make(map[int64]Category, len(categories)),
		byKey:     make(map[string]Category),
		byCompact: make(map[string]Category),
	}

	sorted := append([]Category(nil), categories...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	add := func(raw string, c Category) {
		key := normalizeCategoryText(raw)
		if key == "" {
			return
		}
		if _, dup := ix.byKey[key]; dup {
			return
		}
		prefix := raw
		if i := strings.Index(raw, "("); i > 0 {
			prefix = raw[:i]
		}
		e := categoryEntry{
			key:           key,
			compact:       compactCategoryText(key),
			prefixCompact: compactCategoryText(normalizeCategoryText(prefix)),
			category:      c,
		}
		ix.byKey[key] = c
		if _, dup := ix.byCompact[e.compact]; !dup {
			ix.byCompact[e.compact] = c
		}
		ix.entries = append(ix.entries, e)
	}

	for _, c := range sorted {
		ix.byID[c.ID] = c
		add(c.Name, c)
		if main := c.MainName(); main != "" {
			add(c.Name+" ("+main+")", c)
		}
	}
	for _, c := range sorted {
		if c.Main != nil {
			add(c.Main.Name, Category{ID: c.Main.ID, Name: c.Main.Name, Main: c.Main})
		}
	}

	sort.Slice(ix.entries, func(i, j int) bool { return ix.entries[i].key < ix.entries[j].key })
	return ix
}

// MainCategoryName resolves a case's main category.
func (ix *CategoryIndex) MainCategoryName(ref CategoryRef) string {
	if ref.Join != nil {
		if main := ref.Join.MainName(); main != "" {
			return main
		}
	}
	if ref.ID != 0 {
		if c, ok := ix.byID[ref.ID]; ok {
			if main := c.MainName(); main != "" {
				return main
			}
		}
	}
	if strings.TrimSpace(ref.Text) != "" {
		if c, ok := ix.FindBestMatch(ref.Text); ok {
			if main := c.MainName(); main != "" {
				return main
			}
		}
	}
	return Uncategorized
}

// FindBestMatch matches free text against the indexed category names.
func (ix *CategoryIndex) FindBestMatch(text string) (Category, bool) {
	key := normalizeCategoryText(text)
	if key == "" {
		return Category{}, false
	}

	// a. exact
	if c, ok := ix.byKey[key]; ok {
		return c, true
	}

	// b. strip parenthetical
	if i := strings.Index(text, "("); i > 0 {
		if c, ok := ix.byKey[normalizeCategoryText(text[:i])]; ok {
			return c, true
		}
	}

	// c. compact
	compact := compactCategoryText(key)
	if c, ok := ix.byCompact[compact]; ok {
		return c, true
	}

	// d. compact against pre-parenthesis part of each name
	for _, e := range ix.entries {
		if e.prefixCompact != "" && e.prefixCompact == compact {
			return e.category, true
		}
	}

	// e. bounded substring containment
	for _, e := range ix.entries {
		if boundedContains(key, e.key) {
			return e.category, true
		}
	}

	// f. token overlap
	words := strings.Fields(key)
	for _, e := range ix.entries {
		if wordOverlap(words, strings.Fields(e.key)) >= minWordOverlap {
			return e.category, true
		}
	}

	// g. character overlap
	var (
		best      Category
		bestScore float64
		found     bool
	)
	for _, e := range ix.entries {
		score := charOverlap(compact, e.compact)
		if score >= minCharOverlap && score > bestScore {
			best, bestScore, found = e.category, score, true
		}
	}
	return best, found
}

// =============================================================================
// TEXT NORMALISATION
// =============================================================================

// normalizeCategoryText trims, lowercases, strips diacritics and punctuation and
// collapses whitespace.
func normalizeCategoryText(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(strings.ToLower(strings.TrimSpace(s))) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsPunct(r), unicode.IsSymbol(r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func compactCategoryText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func boundedContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return false
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	shorter, diff := la, la-lb
	if lb < la {
		shorter = lb
	}
	if diff < 0 {
		diff = -diff
	}
	limit := shorter / 2
	if limit < 3 {
		limit = 3
	}
	return diff <= limit
}

func wordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}
	matched := 0
	for _, w := range shorter {
		for _, o := range longer {
			if w == o || strings.HasPrefix(o, w) || strings.HasPrefix(w, o) ||
				strings.Contains(o, w) || strings.Contains(w, o) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(shorter))
}

func charOverlap(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	shorter, longer := ra, rb
	if len(rb) < len(ra) {
		shorter, longer = rb, ra
	}
	present := make(map[rune]bool, len(longer))
	for _, r := range longer {
		present[r] = true
	}
	hits := 0
	for _, r := range shorter {
		if present[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(shorter))
}
