package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lazyboy/internal/common"
)

// NextRev returns the revision following prev in "<generation>-<hex>" form.
// An empty prev starts at generation 1.
func NextRev(prev string) (string, error) {
	gen := 0
	if prev != "" {
		head, _, ok := strings.Cut(prev, "-")
		n, err := strconv.Atoi(head)
		if !ok || err != nil {
			return "", fmt.Errorf("malformed revision %q", prev)
		}
		gen = n
	}
	suffix, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s", gen+1, suffix), nil
}

// CheckRev validates a write of rev against the stored state of a document
// and returns the revision the next one should follow. A tombstoned
// document can be recreated without a revision.
func CheckRev(exists, deleted bool, current, rev string) (string, error) {
	switch {
	case !exists:
		if rev != "" {
			return "", Conflict()
		}
		return "", nil
	case deleted:
		if rev != "" && rev != current {
			return "", Conflict()
		}
	default:
		if rev != current {
			return "", Conflict()
		}
	}
	return current, nil
}
