package sipmsg

import (
	"strconv"
	"strings"
)

// RewriteVia adds ;received=<srcIP> to a captured Via line, substituting
// ;rport with ;rport=<srcPort> when present, preserving whatever suffix
// followed the original ;rport token.
func RewriteVia(via string, srcIP string, srcPort int) string {
	out := via
	if idx := strings.Index(out, ";rport"); idx >= 0 {
		end := idx + len(";rport")
		if end < len(out) && out[end] == '=' {
			rest := out[end+1:]
			semi := strings.IndexByte(rest, ';')
			if semi < 0 {
				semi = len(rest)
			}
			out = out[:idx] + ";rport=" + strconv.Itoa(srcPort) + rest[semi:]
		} else {
			out = out[:idx] + ";rport=" + strconv.Itoa(srcPort) + out[end:]
		}
	}
	return out + ";received=" + srcIP
}
