package sipmsg

import (
	"bytes"
	"fmt"
	"strconv"
)

// StatusLine formats a SIP status line (no trailing CRLF).
func StatusLine(code int, reason string) string {
	return fmt.Sprintf("SIP/2.0 %d %s", code, reason)
}

// RequestLine formats a SIP request line (no trailing CRLF).
func RequestLine(method, requestURI string) string {
	return fmt.Sprintf("%s %s SIP/2.0", method, requestURI)
}

// Build assembles a full SIP message from a start line, a list of already
// fully-formed "Name: value" header lines, and a body. Content-Length is
// computed and appended; callers never add it themselves.
func Build(startLine string, headers []string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(startLine)
	buf.WriteString("\r\n")
	for _, h := range headers {
		buf.WriteString(h)
		buf.WriteString("\r\n")
	}
	buf.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// BuildWithTail assembles a message from a start line and headers, then
// appends tail verbatim instead of a computed Content-Length/body pair.
// Used when forwarding a Content-Type/body blob copied directly out of a
// peer's message, preserving its own Content-Length line.
func BuildWithTail(startLine string, headers []string, tail []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(startLine)
	buf.WriteString("\r\n")
	for _, h := range headers {
		buf.WriteString(h)
		buf.WriteString("\r\n")
	}
	buf.Write(tail)
	return buf.Bytes()
}

// BuildForward assembles an outbound message that forwards src's body
// verbatim (via BuildWithTail, starting at its Content-Type header) when
// src carries SDP, or an empty body otherwise.
func BuildForward(startLine string, headers []string, src *Message) []byte {
	if src.HasSDP {
		if off := ContentTypeOffset(src.Raw); off >= 0 {
			return BuildWithTail(startLine, headers, src.Raw[off:])
		}
	}
	return Build(startLine, headers, nil)
}

// WithUserAgent appends the server's User-Agent header, added to every
// message the server originates.
func WithUserAgent(headers []string) []string {
	return append(headers, "User-Agent: TinySIP")
}

// WithContact appends a Contact header pointing at the server, used on
// locally-originated requests. Responses, including the registrar's, do not
// carry it.
func WithContact(headers []string, serverIP string, serverPort int) []string {
	return append(headers, fmt.Sprintf("Contact: <sip:TinySIP@%s:%d>", serverIP, serverPort))
}
