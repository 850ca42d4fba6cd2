package llvm

import (
	"fmt"
	"strings"

	"lgen/internal/mir"
)

func (e *Emitter) emitGlobals() {
	if len(e.mod.Globals) == 0 {
		return
	}
	for _, g := range e.mod.Globals {
		align := max(g.Align, 1)
		fmt.Fprintf(&e.buf, "@%s = private unnamed_addr constant [%d x i8] %s, align %d\n",
			mir.QuoteName(g.Name), len(g.Bytes), byteString(g.Bytes), align)
	}
	e.buf.WriteString("\n")
}

// byteString renders data as an LLVM c"..." literal.
func byteString(data []byte) string {
	if len(data) == 0 {
		return "zeroinitializer"
	}
	var b strings.Builder
	b.WriteString(`c"`)
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, `\%02X`, c)
	}
	b.WriteString(`"`)
	return b.String()
}
