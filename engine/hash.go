package engine

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// HashOfString returns a fast, compact, non-cryptographic hash of the string,
// used for cache keys over message text.
func HashOfString(v string) string {
	bval := murmur3.Sum64([]byte(v))
	return fmt.Sprintf("%016x", bval)
}
