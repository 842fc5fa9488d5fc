package manager

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/frobware/go-hostif"
)

// checkRef validates a reference attribute. A null handle is accepted
// only when the attribute is optional. A handle whose type tag is not
// in want, or that does not name a live object, is an invalid
// reference.
func (m *Manager) checkRef(attr string, id hostif.ObjectID, want hostif.ObjectTypeSet, required bool) error {
	if id.IsNull() {
		if required {
			return hostif.ValueError{Attr: attr, Reason: "required"}
		}
		return nil
	}
	if !want.Contains(id.Type()) {
		return hostif.ReferenceError{Attr: attr, ID: id, Want: want}
	}
	if _, err := m.reg.Get(id); err != nil {
		return hostif.ReferenceError{Attr: attr, ID: id, Want: want, Err: err}
	}
	return nil
}

// forbid rejects a handle supplied for an attribute that does not apply.
func forbid(attr string, id hostif.ObjectID, why string) error {
	if id.IsNull() {
		return nil
	}
	return hostif.ValueError{Attr: attr, Reason: "not allowed " + why}
}

// checkName validates a name stored in a fixed NUL-terminated buffer of
// size bytes.
func checkName(attr, name string, size int) error {
	if name == "" {
		return hostif.ValueError{Attr: attr, Reason: "required"}
	}
	if len(name) > size-1 {
		return hostif.ValueError{Attr: attr, Reason: fmt.Sprintf("%q is longer than %d bytes", name, size-1)}
	}
	if strings.ContainsRune(name, 0) {
		return hostif.ValueError{Attr: attr, Reason: "contains NUL"}
	}
	return nil
}

// checkNetdevName applies the kernel's rules for interface names on top
// of the length limit.
func checkNetdevName(name string) error {
	if err := checkName("name", name, hostif.NameSize); err != nil {
		return err
	}
	if name == "." || name == ".." {
		return hostif.ValueError{Attr: "name", Reason: fmt.Sprintf("%q is reserved", name)}
	}
	for _, r := range name {
		if r == '/' || r == ':' || unicode.IsSpace(r) {
			return hostif.ValueError{Attr: "name", Reason: fmt.Sprintf("%q contains %q", name, r)}
		}
	}
	return nil
}

// isKind reports whether err is classified as kind.
func isKind(err, kind error) bool {
	return errors.Is(hostif.Kind(err), kind)
}
