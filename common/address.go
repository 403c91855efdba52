package common

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrMalformedAddress = errors.New("malformed sender address")
	angleBracketAddr    = regexp.MustCompile(`<([^<>]+)>`)
)

// NormalizeAddress canonicalizes a raw sender address: display-name and
// angle-bracket forms ("Jane Doe <jane@example.com>") are unwrapped and the
// result lower-cased and trimmed. Returns ErrMalformedAddress when no
// plausible address remains; callers treat that as "skip sender strategies",
// not as a fatal condition.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if m := angleBracketAddr.FindStringSubmatch(addr); m != nil {
		addr = m[1]
	}
	addr = strings.ToLower(strings.TrimSpace(addr))

	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "", ErrMalformedAddress
	}
	return addr, nil
}

// AddressDomain returns the domain part of an already-normalized address, or
// "" when there is none.
func AddressDomain(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return addr[at+1:]
}
