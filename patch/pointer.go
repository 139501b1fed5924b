package patch

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	tokenEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	tokenUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// ParsePointer splits an RFC 6901 JSON pointer into unescaped reference
// tokens. The empty pointer refers to the whole document.
func ParsePointer(pointer string) ([]string, error) {
	if pointer == "" {
		return nil, nil
	}
	if pointer[0] != '/' {
		return nil, fmt.Errorf("%w: %q must start with '/'", ErrInvalidPointer, pointer)
	}
	parts := strings.Split(pointer[1:], "/")
	for i, part := range parts {
		parts[i] = tokenUnescaper.Replace(part)
	}
	return parts, nil
}

// FormatPointer joins reference tokens into an RFC 6901 JSON pointer.
func FormatPointer(tokens ...string) string {
	var sb strings.Builder
	for _, token := range tokens {
		sb.WriteByte('/')
		sb.WriteString(tokenEscaper.Replace(token))
	}
	return sb.String()
}

// parseIndex parses an array index token. The index must be a canonical
// non-negative integer not greater than max.
func parseIndex(token string, max int) (int, error) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, token)
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, token)
		}
	}
	index, err := strconv.Atoi(token)
	if err != nil || index > max {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidIndex, token)
	}
	return index, nil
}

func isPrefixPointer(prefix, pointer string) bool {
	return pointer == prefix || strings.HasPrefix(pointer, prefix+"/")
}
