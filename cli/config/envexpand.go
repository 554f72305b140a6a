// Package config handles triage.yaml loading, defaults and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// envRef matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// ExpandEnv substitutes environment references in input.
//
//	${VAR}           value of VAR, empty if unset
//	${VAR:-default}  value of VAR, or default if unset or empty
//	${VAR:?message}  value of VAR, or an error naming VAR if unset or empty
//
// Every missing required variable is reported, not just the first.
func ExpandEnv(input string) (string, error) {
	var errs []error
	out := envRef.ReplaceAllStringFunc(input, func(match string) string {
		m := envRef.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]

		if v := os.Getenv(name); v != "" {
			return v
		}
		switch op {
		case ":-":
			return arg
		case ":?":
			if arg == "" {
				arg = "required"
			}
			errs = append(errs, fmt.Errorf("${%s}: %s", name, arg))
		}
		return ""
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}
