// Package helpers is a small stash of cross-package utilities.
package helpers

import (
	"strings"
	"sync"

	"github.com/juju/errors"
)

// FoldErrors joins non-nil errors into one annotated with tag, nil when
// there is nothing to report.
func FoldErrors(tag string, errs []error) error {
	ss := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			ss = append(ss, e.Error())
		}
	}
	if len(ss) == 0 {
		return nil
	}
	return errors.Errorf("%s: %s", tag, strings.Join(ss, "; "))
}

func WithLock(l sync.Locker, f func()) {
	l.Lock()
	defer l.Unlock()
	f()
}
