package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "file path with line and column",
			input:    "TypeError: Cannot read properties of undefined (reading 'x') at /app/main.js:123:45",
			expected: "TypeError: Cannot read properties of undefined (reading 'x') at <file>:<line>:<col>",
		},
		{
			name:     "absolute url",
			input:    "failed to fetch https://api.example.com/v1/items",
			expected: "failed to fetch <url>",
		},
		{
			name:     "uuid",
			input:    "entity 6e9a1c2b-4f5d-4e6f-8a9b-0c1d2e3f4a5b not found",
			expected: "entity <uuid> not found",
		},
		{
			name:     "memory address",
			input:    "segfault at 0xDEADBEEF",
			expected: "segfault at <addr>",
		},
		{
			name:     "long decimal run",
			input:    "order 1234567890 rejected",
			expected: "order <id> rejected",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeMessage(tt.input))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"numeric segment", "https://site.test/users/42/profile", "/users/<id>/profile"},
		{"uuid segment", "https://site.test/orders/6e9a1c2b-4f5d-4e6f-8a9b-0c1d2e3f4a5b", "/orders/<uuid>"},
		{"long dynamic segment", "https://site.test/t/averyveryverylongtokenvalue42", "/t/<dynamic>"},
		{"query string", "https://site.test/search?q=x&page=2", "/search?<query>"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestNormalizeStackTruncatesAndBasenames(t *testing.T) {
	var b strings.Builder
	b.WriteString("Error: boom\n")
	for i := 0; i < 15; i++ {
		b.WriteString("    at doWork (/srv/app/deep/nested/worker.js:10:2)\n")
	}

	normalized := NormalizeStack(b.String())
	lines := strings.Split(normalized, "\n")

	require.Len(t, lines, 10)
	assert.Contains(t, lines[1], "worker.js:<line>:<col>")
	assert.NotContains(t, normalized, "/srv/app")
}

func TestFingerprintStability(t *testing.T) {
	f := New()
	message := "TypeError: Cannot read properties of undefined (reading 'x') at /app/main.js:123:45"

	a := f.Fingerprint(message, "", "https://site.test/users/42/profile")
	b := f.Fingerprint(message, "", "https://site.test/users/99/profile")

	assert.Equal(t, "TypeError: Cannot read properties of undefined (reading 'x') at <file>:<line>:<col>", a.NormalizedMessage)
	assert.Equal(t, "/users/<id>/profile", a.URLPattern)
	assert.True(t, strings.HasPrefix(a.Title, "TypeError: Cannot read properties of undefined"))
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.PatternHash, b.PatternHash)
}

func TestFingerprintIdempotent(t *testing.T) {
	f := New()
	message := "ReferenceError: foo is not defined at /app/x.js:1:2"

	once := f.Fingerprint(message, "", "https://site.test/a/7")
	twice := f.Fingerprint(once.NormalizedMessage, once.NormalizedStack, once.URLPattern)

	assert.Equal(t, once.Fingerprint, twice.Fingerprint)
}

func TestPatternHashLooserThanFingerprint(t *testing.T) {
	f := New()

	a := f.Fingerprint("Error: cannot parse value 42", "", "")
	b := f.Fingerprint("Error: cannot parse value 7", "", "")

	// Short digit runs survive the strict pass but collapse in the pattern
	// pass, so these are "similar" without being the same bug.
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.PatternHash, b.PatternHash)
}

func TestFingerprintEmptyInputs(t *testing.T) {
	f := New()

	assert.NotPanics(t, func() {
		r := f.Fingerprint("", "", "")
		assert.NotEmpty(t, r.Fingerprint)
	})
}

func TestTitleAppendsURLPattern(t *testing.T) {
	f := New()
	r := f.Fingerprint("TypeError: boom", "", "https://site.test/users/42")

	assert.Equal(t, "TypeError: boom in /users/<id>", r.Title)
}

func TestTitleEllipsizesLongMessages(t *testing.T) {
	f := New()
	r := f.Fingerprint("Error: "+strings.Repeat("x", 120), "", "")

	assert.True(t, strings.HasPrefix(r.Title, "Error: "))
	assert.Contains(t, r.Title, "…")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same", "same"))
	assert.Equal(t, 0.0, Similarity("", "nonempty"))
	assert.InDelta(t, 0.75, Similarity("abcd", "abcx"), 0.01)
	assert.Greater(t, Similarity("cannot read x", "cannot read y"), Similarity("cannot read x", "totally different"))
}
