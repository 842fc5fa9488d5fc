//go:build cgo_sqlite

package sqlite

import (
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// dsn renders pragmas the way mattn/go-sqlite3 expects them:
// _name=value, one query parameter each.
func dsn(path string, pragmas []pragma) string {
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		b.WriteByte("?&"[min(i, 1)])
		b.WriteString("_" + p.name + "=" + p.value)
	}
	return b.String()
}
