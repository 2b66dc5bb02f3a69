package speech

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// TranscriptBuffer is the single source of truth for what the user has said
// so far in one answer. Committed text only ever grows within a turn; pending
// text is the engine's mutable best guess for words still being spoken. The
// visible transcript is always committed text plus, if non-empty, a single
// space plus pending text, with no duplicated word sequence at the seam.
//
// Not safe for concurrent use; the owning controller serializes access.
type TranscriptBuffer struct {
	committed string
	pending   string

	window int     // max overlap lookback, in words
	fuzzy  float64 // Jaro-Winkler threshold; 0 = exact match only
}

// NewTranscriptBuffer creates an empty buffer. window bounds the overlap
// search in words; fuzzy, when > 0, is the Jaro-Winkler similarity above
// which two normalized words are treated as equal during stitching.
func NewTranscriptBuffer(window int, fuzzy float64) *TranscriptBuffer {
	if window <= 0 {
		window = DefaultTunables().StitchWindow
	}
	return &TranscriptBuffer{window: window, fuzzy: fuzzy}
}

// Commit stitches a newly finalized fragment onto the committed text.
func (b *TranscriptBuffer) Commit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.committed = b.stitch(b.committed, text)
}

// SetPending replaces the interim text wholesale. Interim fragments never
// carry a watermark: each event supersedes the previous guess entirely.
func (b *TranscriptBuffer) SetPending(text string) {
	b.pending = strings.TrimSpace(text)
}

// Pending returns the current interim text.
func (b *TranscriptBuffer) Pending() string {
	return b.pending
}

// Committed returns the committed text.
func (b *TranscriptBuffer) Committed() string {
	return b.committed
}

// Rescue folds any outstanding interim text into the committed text,
// stitching out seam duplication, and clears the pending slot. It is the
// no-loss step run when a session dies or the caller stops capture: words the
// engine never got to finalize must not be dropped. Returns true if anything
// was rescued.
func (b *TranscriptBuffer) Rescue() bool {
	if b.pending == "" {
		return false
	}
	b.committed = b.stitch(b.committed, b.pending)
	b.pending = ""
	return true
}

// Set overrides the committed text and clears pending. Used for manual
// transcript edits from the composition layer.
func (b *TranscriptBuffer) Set(text string) {
	b.committed = strings.TrimSpace(text)
	b.pending = ""
}

// Reset clears the buffer completely.
func (b *TranscriptBuffer) Reset() {
	b.committed = ""
	b.pending = ""
}

// String renders the externally visible transcript: committed plus pending,
// separated by one space when both are present.
func (b *TranscriptBuffer) String() string {
	switch {
	case b.committed == "":
		return b.pending
	case b.pending == "":
		return b.committed
	default:
		return b.committed + " " + b.pending
	}
}

// stitch appends incoming to existing while suppressing word duplication at
// the seam. Overlaps are checked from the longest plausible shared span down
// to a single word, comparing normalized words. Two engine quirks are
// handled: trailing words of the existing text re-sent at the head of the
// incoming fragment (overlap → append remainder only), and an incoming
// fragment that re-sends the entire existing text as its prefix (superset →
// replace instead of concatenate).
func (b *TranscriptBuffer) stitch(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	if incoming == "" {
		return existing
	}

	exWords := strings.Fields(existing)
	inWords := strings.Fields(incoming)

	// Superset: incoming fully contains existing as a prefix.
	if len(inWords) >= len(exWords) && b.wordsMatch(exWords, inWords[:len(exWords)]) {
		return incoming
	}

	max := b.window
	if max > len(exWords) {
		max = len(exWords)
	}
	if max > len(inWords) {
		max = len(inWords)
	}
	for n := max; n >= 1; n-- {
		if b.wordsMatch(exWords[len(exWords)-n:], inWords[:n]) {
			rest := inWords[n:]
			if len(rest) == 0 {
				return existing
			}
			return existing + " " + strings.Join(rest, " ")
		}
	}
	return existing + " " + incoming
}

func (b *TranscriptBuffer) wordsMatch(a, c []string) bool {
	if len(a) != len(c) {
		return false
	}
	for i := range a {
		if !b.wordEqual(a[i], c[i]) {
			return false
		}
	}
	return true
}

// wordEqual compares two words case-insensitively with trailing punctuation
// normalized out. With a fuzzy threshold configured, near-identical words
// (recognizer respellings like "color"/"colour") also count as equal.
func (b *TranscriptBuffer) wordEqual(x, y string) bool {
	x = normalizeWord(x)
	y = normalizeWord(y)
	if x == y {
		return true
	}
	if b.fuzzy > 0 && x != "" && y != "" {
		return matchr.JaroWinkler(x, y, true) >= b.fuzzy
	}
	return false
}

func normalizeWord(w string) string {
	w = strings.ToLower(w)
	return strings.TrimRight(w, ".,!?;:")
}
