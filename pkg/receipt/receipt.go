package receipt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samborkent/uuidv7"
)

// NewID returns a time ordered submission ID.
func NewID() string {
	return uuidv7.New().String()
}

// Encode packs a division and submission ID into an opaque receipt code.
func Encode(division, submissionID string) string {
	code := fmt.Sprintf("%s|%s", division, submissionID)
	return base64.RawURLEncoding.EncodeToString([]byte(code))
}

// Decode reverses Encode.
func Decode(code string) (division, submissionID string, err error) {
	decodedBytes, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return "", "", err
	}
	decoded := string(decodedBytes)
	i := strings.LastIndex(decoded, "|")
	if i <= 0 || i == len(decoded)-1 {
		return "", "", fmt.Errorf("not correct format")
	}
	return decoded[:i], decoded[i+1:], nil
}
