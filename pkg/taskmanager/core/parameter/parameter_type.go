// Package parameter defines the closed set of task parameter types.
//
// Raw parameter values always travel as strings; conversion happens only here. Each Kind owns a
// domain (an optional finite set of choices) and a parse rule. Validation is "parse succeeds".
package parameter

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Kind tags a parameter type.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindBoolean
	KindURL
	KindFile
	KindSQL
)

var kindNames = [...]string{
	KindString:  "STRING",
	KindInteger: "INTEGER",
	KindBoolean: "BOOLEAN",
	KindURL:     "URL",
	KindFile:    "FILE",
	KindSQL:     "SQL",
}

// String returns the upper-case kind name.
func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a kind by name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown parameter type '%s'", name)
}

// ErrInvalidValue is wrapped by every parse failure.
var ErrInvalidValue = errors.New("invalid parameter value")

// SQLStatementSeparator may not appear in SQL-typed values.
const SQLStatementSeparator = ";"

// Type is a parameter type. The zero value is STRING.
type Type struct {
	Kind Kind
}

// Predefined types.
var (
	String  = Type{Kind: KindString}
	Integer = Type{Kind: KindInteger}
	Boolean = Type{Kind: KindBoolean}
	URL     = Type{Kind: KindURL}
	File    = Type{Kind: KindFile}
	SQL     = Type{Kind: KindSQL}
)

// String returns the kind name.
func (t Type) String() string {
	return t.Kind.String()
}

// Domain returns the finite set of acceptable raw values, or ok=false when the domain is
// unbounded. dependsOn carries the raw values of the parameters this one depends on.
func (t Type) Domain(dependsOn []string) (values []string, ok bool) {
	switch t.Kind {
	case KindBoolean:
		return []string{"true", "false"}, true
	case KindString, KindInteger, KindURL, KindFile, KindSQL:
		return nil, false
	default:
		panic(fmt.Sprintf("parameter: unhandled kind %d", int(t.Kind)))
	}
}

// Parse converts raw into the type's Go value: string, int, bool, *url.URL, string (path) or
// string (SQL fragment).
func (t Type) Parse(raw string, dependsOn []string) (any, error) {
	switch t.Kind {
	case KindString, KindFile:
		return raw, nil
	case KindInteger:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: '%s' is not an integer", ErrInvalidValue, raw)
		}
		return v, nil
	case KindBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: '%s' is not a boolean", ErrInvalidValue, raw)
	case KindURL:
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !wellFormed(u) {
			return nil, fmt.Errorf("%w: '%s' is not a well-formed URL", ErrInvalidValue, raw)
		}
		return u, nil
	case KindSQL:
		if strings.Contains(raw, SQLStatementSeparator) {
			return nil, fmt.Errorf("%w: SQL value must not contain '%s'", ErrInvalidValue, SQLStatementSeparator)
		}
		return raw, nil
	default:
		panic(fmt.Sprintf("parameter: unhandled kind %d", int(t.Kind)))
	}
}

// wellFormed requires a scheme and a host, except for file URLs, which need a path instead.
func wellFormed(u *url.URL) bool {
	if u.Scheme == "" {
		return false
	}
	if strings.EqualFold(u.Scheme, "file") {
		return u.Path != ""
	}
	return u.Host != ""
}

// Validate reports whether raw parses.
func (t Type) Validate(raw string, dependsOn []string) bool {
	_, err := t.Parse(raw, dependsOn)
	return err == nil
}
