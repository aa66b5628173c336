package trigger

import (
	"slices"
	"strings"
)

// Keyword is the literal token that marks a ping request. Matching is done
// on the uppercased comment body.
const Keyword = "!PING"

// Match is the outcome of scanning one comment body.
type Match int

const (
	// NoTrigger means the keyword does not appear in the body.
	NoTrigger Match = iota
	// Malformed means the keyword is the last token, with no group after it.
	// Dispatch stops silently; this is a no-op, not an error.
	Malformed
	// Matched means a candidate group name follows the keyword.
	Matched
)

// Parse scans a raw comment body for the first occurrence of the trigger
// keyword and returns the uppercased group token that follows it. The whole
// body is uppercase-normalized before tokenizing, so the candidate group
// comes back uppercased too; downstream comparisons account for that.
// Trailing triggers in the same comment are ignored.
func Parse(body string) (string, Match) {
	tokens := strings.Fields(strings.ToUpper(body))

	index := slices.Index(tokens, Keyword)
	if index == -1 {
		return "", NoTrigger
	}

	if index == len(tokens)-1 {
		return "", Malformed
	}

	return tokens[index+1], Matched
}
