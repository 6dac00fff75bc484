package types

import (
	"encoding/base64"
	"fmt"

	"github.com/markview/markview/internal/errors"
)

// EncodeRevivableKey encodes an absolute filesystem path, exactly as the
// editor reports it, into the URL-safe key the browser carries. Padding is
// kept so the encoding round-trips byte for byte.
func EncodeRevivableKey(fullpath string) string {
	return base64.URLEncoding.EncodeToString([]byte(fullpath))
}

// DecodeRevivableKey reverses EncodeRevivableKey.
func DecodeRevivableKey(key string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrBadRevivalKey, err)
	}
	return string(raw), nil
}
