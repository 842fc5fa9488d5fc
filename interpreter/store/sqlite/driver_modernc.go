//go:build !cgo_sqlite

package sqlite

import (
	"strings"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// dsn renders pragmas the way modernc.org/sqlite expects them:
// _pragma=name(value), one query parameter each.
func dsn(path string, pragmas []pragma) string {
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		b.WriteByte("?&"[min(i, 1)])
		b.WriteString("_pragma=" + p.name + "(" + p.value + ")")
	}
	return b.String()
}
