// Package jsloader renders a derived structure as the javascript loader text
// the viewer consumes. The output is parsed positionally by the client, so
// the format is pinned: three declarations in fixed order, bond pairs six
// to a line.
package jsloader

import (
	"fmt"
	"strings"

	"github.com/sjando/jolecule/internal/structure/bond"
)

// Render serialises the raw atom record lines, the bond list, and the
// maximum separation scalar.
func Render(lines []string, bonds []bond.Bond, maxLength float64) string {
	var b strings.Builder

	b.WriteString("var lines = [\n")
	for _, l := range lines {
		b.WriteString("\"")
		b.WriteString(l)
		b.WriteString("\",\n")
	}
	b.WriteString("];\n\n")

	b.WriteString("var bond_pairs = [\n")
	for i, p := range bonds {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%d, %d]", p[0], p[1])
		if i%6 == 5 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n];\n\n")

	fmt.Fprintf(&b, "var max_length = %f;", maxLength)
	return b.String()
}
