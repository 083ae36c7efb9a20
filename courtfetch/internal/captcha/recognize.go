package captcha

import (
	"context"
	"errors"
	"strings"
)

// CodeLength is the exact length the portal's captchas have. A recognized
// code of any other length is rejected outright.
const CodeLength = 6

// ErrUnreadable means no acceptable code came out of an attempt.
var ErrUnreadable = errors.New("captcha: unreadable")

// Recognizer is an OCR classifier over a preprocessed PNG.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, png []byte) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, png []byte) (string, error) {
	return f(ctx, png)
}

// Sanitize keeps only ASCII letters and digits.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Accept reports whether the sanitized form of s is a well-formed code.
func Accept(s string) bool {
	return len(Sanitize(s)) == CodeLength
}
