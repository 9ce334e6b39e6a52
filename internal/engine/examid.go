package engine

import (
	"fmt"
	"math/rand"
	"regexp"
)

// examIDPattern is the externally documented display format of exam
// identifiers: DMV-###-####-## (all digits).
var examIDPattern = regexp.MustCompile(`^DMV-\d{3}-\d{4}-\d{2}$`)

// NewExamID mints a fresh exam identifier from the injected random source.
func NewExamID(rng *rand.Rand) string {
	return fmt.Sprintf("DMV-%03d-%04d-%02d",
		rng.Intn(1000), rng.Intn(10000), rng.Intn(100))
}

// ValidExamID reports whether a stored identifier matches the display
// format. Malformed identifiers are regenerated rather than reused.
func ValidExamID(id string) bool {
	return examIDPattern.MatchString(id)
}
