package tui

import (
	"fmt"
	"strings"
)

const helpFooter = `
FILTERING:
  The text filter matches the header and body of an entry. Severity,
  component, file, function, time range and expression filters come from
  the command line or a preset and stay in place when the text changes.
  Counts marked "~" are estimates until the end of the log is reached.

GO TO:
  Entry numbers are positions in the file, starting at 0. An entry hidden
  by the filter cannot be selected; clear the filter first.

EXPORT:
  Writes the filtered view in long form to the export directory, named
  after the application that wrote the log.
`

// renderHelpContent lists the key bindings followed by usage notes.
func renderHelpContent(k KeyMap) string {
	var b strings.Builder
	b.WriteString("VXL Log Viewer\n\nKEYS:\n")
	for _, bnd := range k.helpBindings() {
		h := bnd.Help()
		fmt.Fprintf(&b, "  %-10s - %s\n", h.Key, h.Desc)
	}
	b.WriteString(helpFooter)
	return b.String()
}
