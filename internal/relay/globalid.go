// Package relay implements relay-style global object identifiers and
// cursor connections compatible with graphql-relay clients.
package relay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedID  = errors.New("malformed global id")
	ErrTypeMismatch = errors.New("global id refers to a different type")
)

// ToGlobalID encodes a type name and local ID as base64("TypeName:id").
func ToGlobalID(typeName string, id int64) string {
	raw := typeName + ":" + strconv.FormatInt(id, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// FromGlobalID decodes a global ID into its type name and local ID.
func FromGlobalID(gid string) (string, int64, error) {
	raw, err := decodeBase64(gid)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedID, gid)
	}

	typeName, local, ok := strings.Cut(string(raw), ":")
	if !ok || typeName == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedID, gid)
	}

	id, err := strconv.ParseInt(local, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrMalformedID, gid)
	}

	return typeName, id, nil
}

// DecodeID decodes a global ID and checks that it names the wanted type.
func DecodeID(gid, wantType string) (int64, error) {
	typeName, id, err := FromGlobalID(gid)
	if err != nil {
		return 0, err
	}
	if typeName != wantType {
		return 0, fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, typeName, wantType)
	}
	return id, nil
}

// decodeBase64 accepts the standard alphabet used by graphql-relay as well as
// the URL-safe alphabet, padded or not.
func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty")
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
