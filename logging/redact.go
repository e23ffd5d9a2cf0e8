package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns contains compiled regex patterns for detecting sensitive
// data in log values. Compiled once at package initialization.
var sensitivePatterns = []*regexp.Regexp{
	// OpenAI-style API keys: sk-... (legacy) or sk-proj-... (project-scoped)
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),
	// Bearer tokens attached to provider requests
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	// Provider session tokens (hex)
	regexp.MustCompile(`(?i)([a-f0-9]{32,})`),
	// Generic secret assignments
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveFieldPrefixes are field/env-var name fragments that indicate the
// whole value is sensitive regardless of its shape.
var sensitiveFieldPrefixes = []string{
	"OPENAI_API_KEY",
	"OPS_PWD",
	"AUTH_TOKEN",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"APIKEY",
}

// subjectPattern matches 10-digit subject (phone) identifiers. Subjects are
// personal data; logs keep only the last two digits for correlation.
var subjectPattern = regexp.MustCompile(`\b(\d{8})(\d{2})\b`)

// RedactSensitiveData scans a string value and redacts detected secrets and
// subject identifiers. Pure function.
//
// Example:
//
//	RedactSensitiveData("token=abcdefgh12345678") // "[REDACTED]"
//	RedactSensitiveData("subject 2222222222")     // "subject ********22"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	result = subjectPattern.ReplaceAllString(result, "********$2")
	return result
}

// RedactField redacts a field value if the field name indicates sensitive
// data, otherwise scans the value itself. Pure function.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField returns true if the field name alone marks the value as
// sensitive (e.g. "auth_token", "OPENAI_API_KEY").
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, prefix := range sensitiveFieldPrefixes {
		if strings.Contains(upperName, prefix) {
			return true
		}
	}
	return false
}

// RedactSubject masks a subject identifier for logging, keeping the last two
// characters. Short values are fully masked.
func RedactSubject(subject string) string {
	if len(subject) <= 2 {
		return strings.Repeat("*", len(subject))
	}
	return strings.Repeat("*", len(subject)-2) + subject[len(subject)-2:]
}
