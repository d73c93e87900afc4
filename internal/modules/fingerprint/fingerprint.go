package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var titleTypeRe = regexp.MustCompile(`^(\w+Error|Error)`)

const titleMessageLimit = 50

// Result carries every derived identifier for one captured error.
type Result struct {
	// Fingerprint is the strict grouping hash: identical normalized
	// (message, stack, url) triples always produce the same value.
	Fingerprint string `json:"fingerprint"`

	// PatternHash is the looser similarity hash. Equal fingerprints imply
	// equal pattern hashes; the converse need not hold.
	PatternHash string `json:"pattern_hash"`

	NormalizedMessage string `json:"normalized_message"`
	NormalizedStack   string `json:"normalized_stack"`
	URLPattern        string `json:"url_pattern"`

	// Title is a short human-readable summary used for issue listings.
	Title string `json:"title"`
}

// Fingerprinter derives stable identifiers from raw error captures.
// The zero value is ready to use.
type Fingerprinter struct{}

func New() *Fingerprinter {
	return &Fingerprinter{}
}

// Fingerprint normalizes the inputs and produces the full identifier set.
// Any input may be empty; missing fields contribute the empty string and the
// method never fails.
func (f *Fingerprinter) Fingerprint(message, stack, rawURL string) Result {
	normMessage := NormalizeMessage(message)
	normStack := NormalizeStack(stack)
	urlPattern := NormalizeURL(rawURL)

	return Result{
		Fingerprint:       hash(normMessage + "|" + normStack + "|" + urlPattern),
		PatternHash:       hash(patternize(normMessage) + "|" + patternFrames(normStack) + "|" + patternize(urlPattern)),
		NormalizedMessage: normMessage,
		NormalizedStack:   normStack,
		URLPattern:        urlPattern,
		Title:             title(normMessage, urlPattern),
	}
}

// title extracts the error-type prefix, appends up to 50 characters of the
// remaining message (ellipsized) and the URL pattern when present.
func title(normMessage, urlPattern string) string {
	var b strings.Builder

	rest := normMessage
	if m := titleTypeRe.FindString(normMessage); m != "" {
		b.WriteString(m)
		rest = strings.TrimLeft(strings.TrimPrefix(normMessage, m), ": ")
		if rest != "" {
			b.WriteString(": ")
		}
	}

	if rest != "" {
		if len(rest) > titleMessageLimit {
			rest = rest[:titleMessageLimit] + "…"
		}
		b.WriteString(rest)
	}

	if urlPattern != "" {
		b.WriteString(" in ")
		b.WriteString(urlPattern)
	}
	return b.String()
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
