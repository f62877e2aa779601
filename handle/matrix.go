package handle

import (
	"fmt"
	"strings"
)

// Markdown renders the compatibility table: one row per output kind, one
// column per input kind, followed by the per-kind limits.
func (r *Registry) Markdown() string {
	var outputs, inputs []Kind
	for _, k := range kinds {
		if r.IsInput(k) {
			inputs = append(inputs, k)
		} else {
			outputs = append(outputs, k)
		}
	}

	var sb strings.Builder
	sb.WriteString("# Handle compatibility\n\n")

	sb.WriteString("| Source \\ Target |")
	for _, in := range inputs {
		sb.WriteString(" " + r.Label(in) + " |")
	}
	sb.WriteString("\n|---|")
	for range inputs {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, out := range outputs {
		sb.WriteString("| " + r.Label(out) + " |")
		for _, in := range inputs {
			if r.Compatible(out, in) {
				sb.WriteString(" ✅ |")
			} else {
				sb.WriteString(" ❌ |")
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Limits\n\n| Handle | Kind | Direction | Max incoming | Max outgoing |\n|---|---|---|---|---|\n")
	for _, k := range kinds {
		l := r.Limits(k)
		fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %s |\n",
			r.Label(k), k, r.Direction(k), limitString(l.MaxIncoming), limitString(l.MaxOutgoing))
	}
	return sb.String()
}

func limitString(n int) string {
	if n == Unlimited {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
