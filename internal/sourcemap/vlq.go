package sourcemap

import (
	"errors"
	"fmt"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	vlqShift    = 5
	vlqBase     = 1 << vlqShift
	vlqMask     = vlqBase - 1
	vlqContinue = vlqBase
)

var base64Index = func() [128]int8 {
	var idx [128]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		idx[base64Alphabet[i]] = int8(i)
	}
	return idx
}()

var errVLQTruncated = errors.New("truncated VLQ value")

// appendVLQ appends the base64 VLQ encoding of v.
func appendVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & vlqMask
		u >>= vlqShift
		if u > 0 {
			digit |= vlqContinue
		}
		sb.WriteByte(base64Alphabet[digit])
		if u == 0 {
			return
		}
	}
}

// readVLQ decodes one value from s starting at i and returns the value and
// the index after it.
func readVLQ(s string, i int) (int, int, error) {
	var result, shift int
	for {
		if i >= len(s) {
			return 0, i, errVLQTruncated
		}
		c := s[i]
		if c >= 128 || base64Index[c] < 0 {
			return 0, i, fmt.Errorf("invalid base64 character %q at %d", c, i)
		}
		digit := int(base64Index[c])
		i++
		result += (digit & vlqMask) << shift
		shift += vlqShift
		if digit&vlqContinue == 0 {
			break
		}
	}
	if result&1 == 1 {
		return -(result >> 1), i, nil
	}
	return result >> 1, i, nil
}
