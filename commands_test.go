package sensironscd41

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_encodeWords_appends_a_checksum_to_every_word(t *testing.T) {
	// Arrange
	words := []uint16{0x07E6, 0xBEEF}

	// Act
	buf := encodeWords(words)

	// Assert
	assert.Equal(t, []byte{0x07, 0xE6, checksum(0x07, 0xE6), 0xBE, 0xEF, 0x92}, buf)
}

func Test_decodeWords_round_trips_raw_values(t *testing.T) {
	tests := []struct {
		name  string
		words []uint16
	}{
		{name: "single word", words: []uint16{0x8006}},
		{name: "measurement triple", words: []uint16{0x01F4, 0x6667, 0x5EB9}},
		{name: "all zero counts", words: []uint16{0x0000, 0x0000, 0x0000}},
		{name: "all full-scale counts", words: []uint16{0xFFFF, 0xFFFF, 0xFFFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, failedWord, err := decodeWords(encodeWords(tt.words))

			assert.NoError(t, err)
			assert.Equal(t, -1, failedWord)
			assert.Equal(t, tt.words, decoded)
		})
	}
}

func Test_decodeWords_rejects_malformed_lengths(t *testing.T) {
	for _, length := range []int{0, 1, 2, 4, 5, 7, 8, 10} {
		buf := encodeWords([]uint16{0x1234, 0x5678, 0x9ABC, 0xDEF0})[:length]

		decoded, failedWord, err := decodeWords(buf)

		assert.Nil(t, decoded, "expected no words for length %d", length)
		assert.Equal(t, -1, failedWord)
		assert.ErrorContains(t, err, "invalid response length")
	}
}

func Test_decodeWords_identifies_the_corrupted_word(t *testing.T) {
	words := []uint16{0x01F4, 0x6667, 0x5EB9}

	for wordIdx := 0; wordIdx < len(words); wordIdx++ {
		buf := encodeWords(words)
		buf[wordIdx*3+2] ^= 0x01

		decoded, failedWord, err := decodeWords(buf)

		assert.Nil(t, decoded)
		assert.Equal(t, wordIdx, failedWord)
		assert.ErrorContains(t, err, "invalid checksum")
	}
}
