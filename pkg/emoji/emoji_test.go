package emoji_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ice9innovations/api/pkg/emoji"
)

func TestNormalizeCoalescesEquivalentSequences(t *testing.T) {
	// e + combining acute vs precomposed e-acute: NFC folds them.
	decomposed := "e\u0301"
	precomposed := "\u00e9"

	assert.Equal(t, emoji.Normalize(precomposed), emoji.Normalize(decomposed))
	assert.True(t, emoji.Equal(decomposed, precomposed))
}

func TestNormalizeLeavesPlainEmojiAlone(t *testing.T) {
	cat := "\U0001F63A"
	assert.Equal(t, cat, emoji.Normalize(cat))
}

func TestConstantsAreSingleCodePoints(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  rune
	}{
		{"person", emoji.Person, 0x1F9D1},
		{"face", emoji.Face, 0x1F600},
		{"nsfw", emoji.NSFW, 0x1F51E},
		{"text", emoji.Text, 0x1F4DD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runes := []rune(tt.value)
			assert.Len(t, runes, 1)
			assert.Equal(t, tt.want, runes[0])
		})
	}
}

func TestEqualDistinguishesDifferentEmoji(t *testing.T) {
	assert.False(t, emoji.Equal(emoji.Person, emoji.Face))
}
