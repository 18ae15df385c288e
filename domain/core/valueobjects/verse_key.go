package valueobjects

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "versegraph/pkg/errors"
)

// VerseKey is the composite natural key of a verse: (book, chapter, verse).
// Its canonical string form "{book}-{chapter}-{verse}" is the identity used
// for all node deduplication; two fetch results describing the same triple
// are the same node regardless of fetch origin.
type VerseKey struct {
	book    string
	chapter int
	verse   int
}

// NewVerseKey creates a verse key with validation
func NewVerseKey(book string, chapter, verse int) (VerseKey, error) {
	book = strings.TrimSpace(book)
	if book == "" {
		return VerseKey{}, pkgerrors.NewValidationError("book cannot be empty")
	}
	if chapter < 1 {
		return VerseKey{}, pkgerrors.NewValidationError("chapter must be positive")
	}
	if verse < 1 {
		return VerseKey{}, pkgerrors.NewValidationError("verse must be positive")
	}
	return VerseKey{book: book, chapter: chapter, verse: verse}, nil
}

// ParseVerseKey parses a canonical "{book}-{chapter}-{verse}" string. Book
// names may themselves contain hyphens, so the numeric segments are taken
// from the right.
func ParseVerseKey(s string) (VerseKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 {
		return VerseKey{}, pkgerrors.NewValidationError("verse key must be book-chapter-verse")
	}

	verse, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return VerseKey{}, pkgerrors.NewValidationError("verse segment must be numeric")
	}
	chapter, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return VerseKey{}, pkgerrors.NewValidationError("chapter segment must be numeric")
	}
	book := strings.Join(parts[:len(parts)-2], "-")

	return NewVerseKey(book, chapter, verse)
}

// Book returns the collection name
func (k VerseKey) Book() string {
	return k.book
}

// Chapter returns the chapter number
func (k VerseKey) Chapter() int {
	return k.chapter
}

// Verse returns the verse number
func (k VerseKey) Verse() int {
	return k.verse
}

// String returns the canonical identity string
func (k VerseKey) String() string {
	return fmt.Sprintf("%s-%d-%d", k.book, k.chapter, k.verse)
}

// Label returns the human-readable form shown on nodes
func (k VerseKey) Label() string {
	return fmt.Sprintf("%s %d:%d", k.book, k.chapter, k.verse)
}

// Equals checks if two verse keys are equal
func (k VerseKey) Equals(other VerseKey) bool {
	return k.book == other.book && k.chapter == other.chapter && k.verse == other.verse
}

// IsZero checks if the key is the zero value
func (k VerseKey) IsZero() bool {
	return k.book == ""
}

// Page returns the (book, chapter) neighborhood window this verse falls in
func (k VerseKey) Page() PageKey {
	return PageKey{book: k.book, chapter: k.chapter}
}

// WithChapter returns the same key shifted to another chapter, verse 1.
// Used by the broadened-neighborhood retries during focus resolution.
func (k VerseKey) WithChapter(chapter int) (VerseKey, error) {
	return NewVerseKey(k.book, chapter, 1)
}

// MarshalJSON implements json.Marshaler
func (k VerseKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (k *VerseKey) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return pkgerrors.NewValidationError("verse key must be a string")
	}
	parsed, err := ParseVerseKey(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PageKey identifies a (book, chapter) neighborhood window. Loaded windows
// are memoized so empty regions are never re-fetched.
type PageKey struct {
	book    string
	chapter int
}

// NewPageKey creates a page key
func NewPageKey(book string, chapter int) PageKey {
	return PageKey{book: book, chapter: chapter}
}

// Book returns the collection name
func (p PageKey) Book() string {
	return p.book
}

// Chapter returns the chapter number
func (p PageKey) Chapter() int {
	return p.chapter
}

// String returns the memo identity string
func (p PageKey) String() string {
	return fmt.Sprintf("%s-%d", p.book, p.chapter)
}
