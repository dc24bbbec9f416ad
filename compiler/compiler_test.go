package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateStringLiteralCompiles(t *testing.T) {
	result, err := Translate([]string{`"Hi"`})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Code)
	assert.Greater(t, result.VarDataSize, int64(0))
}

func TestTranslateRepeatedStringLiteralsDoNotAlias(t *testing.T) {
	result, err := Translate([]string{`"Hi" "Bye"`})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Code)
	// Two distinct buffers plus two distinct pointer cursors must be
	// allocated; aliasing would collapse this to a single buffer's size.
	assert.GreaterOrEqual(t, result.VarDataSize, int64(len("Hi")+1+len("Bye")+1+2))
}

func TestLetterTagIsLettersOnly(t *testing.T) {
	for _, n := range []int{0, 1, 25, 26, 27, 51, 52, 701, 702} {
		tag := letterTag(n)
		require.NotEmpty(t, tag)
		for _, r := range tag {
			assert.True(t, r >= 'a' && r <= 'z', "letterTag(%d) = %q contains non-letter", n, tag)
		}
	}
}

func TestLetterTagIsUniquePerIndex(t *testing.T) {
	seen := map[string]int{}
	for n := 0; n < 200; n++ {
		tag := letterTag(n)
		if prev, ok := seen[tag]; ok {
			t.Fatalf("letterTag(%d) and letterTag(%d) collide on %q", prev, n, tag)
		}
		seen[tag] = n
	}
}
