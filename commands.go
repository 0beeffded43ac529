// This package provides an implementation to read CO2 concentration, temperature,
// and relative humidity measurements from a Sensiron SCD41 sensor.
package sensironscd41

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

const (
	wordLength = 2
	crcLength  = 1
)

// command describes one operation of the sensor's command set.
type command struct {
	// The 16-bit command code, sent big-endian.
	code uint16
	// Settle time the sensor needs after receiving the command word.
	delay time.Duration
	// The number of words in the response. 0 for write-only commands.
	words int
}

var (
	cmdWakeUp                   = command{code: 0x36F6, delay: 30 * time.Millisecond}
	cmdStartPeriodicMeasurement = command{code: 0x21B1, delay: 1 * time.Millisecond}
	cmdStopPeriodicMeasurement  = command{code: 0x3F86, delay: 500 * time.Millisecond}
	cmdReinit                   = command{code: 0x3646, delay: 30 * time.Millisecond}
	cmdGetSerialNumber          = command{code: 0x3682, delay: 1 * time.Millisecond, words: 3}
	cmdGetDataReadyStatus       = command{code: 0xE4B8, delay: 1 * time.Millisecond, words: 1}
	cmdReadMeasurement          = command{code: 0xEC05, delay: 1 * time.Millisecond, words: 3}
	cmdGetTemperatureOffset     = command{code: 0x2318, delay: 1 * time.Millisecond, words: 1}
	cmdSetTemperatureOffset     = command{code: 0x241D}
)

// encodeWords serializes data words in big-endian order, each immediately
// followed by its checksum byte.
func encodeWords(words []uint16) []byte {
	buf := make([]byte, 0, len(words)*(wordLength+crcLength))
	for _, word := range words {
		msb := byte(word >> 8)
		lsb := byte(word)
		buf = append(buf, msb, lsb, checksum(msb, lsb))
	}
	return buf
}

// decodeWords validates and strips the checksum byte trailing every word in
// buf. On a checksum mismatch the returned index identifies the failing word;
// it is -1 for failures not specific to a word.
func decodeWords(buf []byte) ([]uint16, int, error) {
	if len(buf) == 0 || len(buf)%(wordLength+crcLength) != 0 {
		return nil, -1, errors.Errorf("invalid response length %d", len(buf))
	}

	words := make([]uint16, 0, len(buf)/(wordLength+crcLength))
	for idx := 0; idx < len(buf); idx += wordLength + crcLength {
		if !checksumValid(buf[idx], buf[idx+1], buf[idx+2]) {
			word := idx / (wordLength + crcLength)
			return nil, word, errors.Errorf("invalid checksum for word %d", word)
		}

		words = append(words, binary.BigEndian.Uint16(buf[idx:idx+wordLength]))
	}
	return words, -1, nil
}
