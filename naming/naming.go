package naming

// This file contains the test case naming scheme: deriving output folder
// names from a build identity, a dataset name, and an optional user
// description, and parsing such names back into their components.

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/lazyqa/lazyqa/model"
)

// MaxDescriptionLen bounds the sanitized description so case names stay
// well below filesystem path limits.
const MaxDescriptionLen = 64

// InvalidNameError reports an input that cannot produce a valid test
// case name.
type InvalidNameError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// MalformedNameError reports a string that does not match the
// <hash>_<index>_<dataset>[_<description>] shape.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed test case name %q: %s", e.Name, e.Reason)
}

// CamelCase normalizes s into camelCase, splitting on whitespace and any
// of '_ . -' and dropping all other non-alphanumeric runes. The first
// component is kept as-is, subsequent components are title-cased.
func CamelCase(s string) string {
	components := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '.' || r == '-'
	})

	var b strings.Builder
	for i, c := range components {
		c = stripUnsafe(c)
		if c == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(c)
			continue
		}
		r := []rune(c)
		b.WriteRune(unicode.ToUpper(r[0]))
		b.WriteString(string(r[1:]))
	}
	return b.String()
}

func stripUnsafe(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// SanitizeDescription normalizes a free-text description into a single
// filesystem-safe token. Idempotent: an already-sanitized string passes
// through unchanged.
func SanitizeDescription(s string) string {
	s = CamelCase(s)
	runes := []rune(s)
	if len(runes) > MaxDescriptionLen {
		runes = runes[:MaxDescriptionLen]
	}
	return string(runes)
}

// Build derives the canonical test case name for one dataset run.
// The dataset name is camelCase-normalized and the description sanitized;
// an InvalidNameError is returned when the dataset is empty after
// normalization.
func Build(identity model.BuildIdentity, dataset, description string) (model.TestCaseName, error) {
	normalized := CamelCase(dataset)
	if normalized == "" {
		return model.TestCaseName{}, &InvalidNameError{
			Field:  "dataset name",
			Value:  dataset,
			Reason: "empty after normalization",
		}
	}
	if identity.CommitHash == "" {
		return model.TestCaseName{}, &InvalidNameError{
			Field:  "commit hash",
			Value:  identity.CommitHash,
			Reason: "must not be empty",
		}
	}
	if strings.Contains(identity.CommitHash, model.Separator) {
		return model.TestCaseName{}, &InvalidNameError{
			Field:  "commit hash",
			Value:  identity.CommitHash,
			Reason: "must not contain the separator",
		}
	}
	if identity.DirtyIndex < 0 {
		return model.TestCaseName{}, &InvalidNameError{
			Field:  "dirty index",
			Value:  strconv.Itoa(identity.DirtyIndex),
			Reason: "must not be negative",
		}
	}

	return model.TestCaseName{
		Identity:    identity,
		Dataset:     normalized,
		Description: SanitizeDescription(description),
	}, nil
}

// Parse is the inverse of Build().String(): it splits a serialized name
// back into commit hash, dirty index, dataset, and optional description.
func Parse(name string) (model.TestCaseName, error) {
	parts := strings.Split(name, model.Separator)
	if len(parts) != 3 && len(parts) != 4 {
		return model.TestCaseName{}, &MalformedNameError{
			Name:   name,
			Reason: fmt.Sprintf("expected 3 or 4 components, got %d", len(parts)),
		}
	}
	for _, p := range parts {
		if p == "" {
			return model.TestCaseName{}, &MalformedNameError{Name: name, Reason: "empty component"}
		}
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return model.TestCaseName{}, &MalformedNameError{
			Name:   name,
			Reason: fmt.Sprintf("dirty index %q is not a non-negative integer", parts[1]),
		}
	}

	parsed := model.TestCaseName{
		Identity: model.BuildIdentity{
			CommitHash: parts[0],
			DirtyIndex: index,
			Dirty:      index > 0,
		},
		Dataset: parts[2],
	}
	if len(parts) == 4 {
		parsed.Description = parts[3]
	}
	return parsed, nil
}

// IsCaseName reports whether s parses as a serialized test case name.
func IsCaseName(s string) bool {
	_, err := Parse(s)
	return err == nil
}
