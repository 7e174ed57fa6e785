package emoji

import (
	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// Emoji Constants and Normalization
// ============================================================================
//
// All emoji constants are defined from Unicode code points, never from
// pasted literal glyphs. Editors and diff tools have historically mangled
// raw emoji bytes in source, which silently breaks string comparison.
// ============================================================================

const (
	// Person is the adult person emoji (U+1F9D1), used for human-context
	// curation rules.
	Person = "\U0001F9D1"

	// Face is the grinning face emoji (U+1F600), emitted by the face
	// analyzer for every detected face.
	Face = "\U0001F600"

	// NSFW is the no-one-under-eighteen emoji (U+1F51E), emitted by the
	// content moderation analyzer.
	NSFW = "\U0001F51E"

	// Text is the memo emoji (U+1F4DD), emitted for OCR text detection.
	Text = "\U0001F4DD"
)

// Normalize returns the NFC normalization of an emoji string.
//
// Canonically equivalent sequences (precomposed vs. decomposed forms)
// compare equal after this, so every grouping key in the clustering and
// voting stages passes through here. NFC does not remove variation
// selectors (U+FE0F) or zero-width joiners: two spellings of an emoji
// that differ only in those stay distinct keys.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Equal reports whether two emoji strings are the same after NFC
// normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
