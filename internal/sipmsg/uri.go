package sipmsg

import "strings"

// ExtractUser pulls a username out of a header line carrying a sip: or
// tel: URI, stopping at '@', whitespace, ';' or '>'.
func ExtractUser(headerLine string) string {
	idx := strings.Index(headerLine, "sip:")
	prefixLen := len("sip:")
	if idx < 0 {
		idx = strings.Index(headerLine, "tel:")
		prefixLen = len("tel:")
		if idx < 0 {
			return ""
		}
	}
	rest := headerLine[idx+prefixLen:]
	end := strings.IndexAny(rest, "@ \t;>")
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

// ExtractAngleBracketURI returns the substring between the first '<' and
// the following '>' in s, or "" if either is missing.
func ExtractAngleBracketURI(s string) string {
	start := strings.IndexByte(s, '<')
	if start < 0 {
		return ""
	}
	rest := s[start+1:]
	end := strings.IndexByte(rest, '>')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// HeaderValue returns the portion of a captured "Name: value" line after
// the first colon, trimmed of surrounding whitespace.
func HeaderValue(line string) string {
	_, v, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
