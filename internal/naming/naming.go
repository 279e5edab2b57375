// Package naming derives fully-qualified database names from logical names.
package naming

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lazyboy/internal/common"
)

// Format returns prefix + "_" + name. A name that already starts with the
// prefixed form is returned unchanged, so Format(p, Format(p, n)) equals
// Format(p, n).
func Format(prefix, name string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty prefix", common.ErrInvalidName)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty name", common.ErrInvalidName)
	}
	p := prefix + common.NameSeparator
	if strings.HasPrefix(name, p) {
		return name, nil
	}
	return p + name, nil
}

// TrimPrefix removes a single trailing separator from a configured prefix,
// so "lazy_" and "lazy" behave the same.
func TrimPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, common.NameSeparator)
}
