package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markview/markview/internal/errors"
)

func TestRevivableKeyRoundTrip(t *testing.T) {
	paths := []string{
		"/home/user/doc.md",
		"/tmp/пример.md",
		"C:\\Users\\user\\notes.markdown",
		"/path with spaces/and=padding chars/x.md",
		"",
	}
	for _, p := range paths {
		key := EncodeRevivableKey(p)
		decoded, err := DecodeRevivableKey(key)
		require.NoError(t, err, "path %q", p)
		assert.Equal(t, p, decoded)
	}
}

func TestRevivableKeyIsURLSafe(t *testing.T) {
	key := EncodeRevivableKey("/a/b/c?d&e=f")
	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, "+")
}

func TestDecodeRevivableKeyRejectsGarbage(t *testing.T) {
	_, err := DecodeRevivableKey("not base64url!!")
	assert.ErrorIs(t, err, errors.ErrBadRevivalKey)
}

func TestRevivableKeyRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("decode(encode(path)) == path for arbitrary bytes", prop.ForAll(
		func(path string) bool {
			decoded, err := DecodeRevivableKey(EncodeRevivableKey(path))
			return err == nil && decoded == path
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}

func TestRenderEntryCloneIsIndependent(t *testing.T) {
	entry := &RenderEntry{Timestamp: "1", HTMLPart: "<p>a</p>"}
	clone := entry.Clone()
	entry.Timestamp = "2"
	entry.HTMLPart = "<p>b</p>"

	assert.Equal(t, "1", clone.Timestamp)
	assert.Equal(t, "<p>a</p>", clone.HTMLPart)

	var nilEntry *RenderEntry
	assert.Nil(t, nilEntry.Clone())
}
