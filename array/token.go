package array

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Tokenize returns a deterministic fingerprint of its arguments.
//
// Equal arguments always produce equal tokens, so arrays built twice from the
// same inputs share graph keys and can share cached chunks.
func Tokenize(parts ...any) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(fmt.Sprintf("%T", p))
		_, _ = d.WriteString("=")
		switch v := p.(type) {
		case string:
			_, _ = d.WriteString(strconv.Quote(v))
		case []byte:
			_, _ = d.WriteString(strconv.FormatUint(xxhash.Sum64(v), 16))
		default:
			_, _ = d.WriteString(fmt.Sprintf("%v", v))
		}
		_, _ = d.WriteString(";")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
