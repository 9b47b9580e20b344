package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks credentials before log lines reach a sink. Memory content
// is user text and may quote keys or connection strings verbatim.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor for the credentials recall handles
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Anthropic and OpenAI keys, including sk-proj- style keys
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// userinfo password in postgres DSNs
			regexp.MustCompile(`(postgres(?:ql)?://[^:/\s]+:)[^@\s]+@`),

			regexp.MustCompile(`password["\s:=]+[^\s"]+`),
			regexp.MustCompile(`api_key["\s:=]+[^\s",}]+`),
			regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`),
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces every match with [REDACTED]. A pattern with a capture
// group keeps the first group, so DSNs retain scheme and user.
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		if pattern.NumSubexp() > 0 {
			result = pattern.ReplaceAllString(result, "${1}"+redacted+"@")
			continue
		}
		result = pattern.ReplaceAllString(result, redacted)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success since zerolog treats short writes as errors
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
