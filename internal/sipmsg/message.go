// Package sipmsg implements the minimal SIP message lexer and builder this
// server runs on. It is deliberately not a conformant SIP parser: it finds
// the handful of header lines the engine needs by textual search over
// CRLF-delimited lines and leaves everything else, including the body,
// untouched.
package sipmsg

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// Kind distinguishes a request from a status line.
type Kind int

const (
	KindRequest Kind = iota
	KindStatus
)

// DefaultMaxForwards is used when a message carries no Max-Forwards header.
const DefaultMaxForwards = 70

// ErrMalformed is returned when the buffer has no usable first line.
var ErrMalformed = errors.New("sipmsg: malformed message")

// Message holds the fields the B2BUA engine consumes, plus the header lines
// captured verbatim (including the "Header-Name: " prefix) so they can be
// echoed or forwarded without re-serialization.
type Message struct {
	Kind   Kind
	Method string // set when Kind == KindRequest
	Code   int    // set when Kind == KindStatus
	Reason string // status reason phrase, or request-URI for requests

	CallID      string // value only, no header name
	Via         string // "Via: ..." verbatim
	From        string // "From: ..." verbatim
	To          string // "To: ..." verbatim
	CSeq        string // "CSeq: ..." verbatim
	Contact     string // "Contact: ..." verbatim, empty if absent
	CSeqNumber  int
	CSeqMethod  string
	MaxForwards int
	HasSDP      bool
	Body        []byte
	Raw         []byte
}

// Parse extracts the fields the engine needs from a raw UDP payload. It
// never mutates buf; Body and Raw alias into it.
func Parse(buf []byte) (*Message, error) {
	if len(buf) == 0 {
		return nil, ErrMalformed
	}

	firstLineEnd := bytes.Index(buf, []byte("\r\n"))
	if firstLineEnd < 0 {
		return nil, ErrMalformed
	}
	firstLine := string(buf[:firstLineEnd])
	if strings.TrimSpace(firstLine) == "" {
		return nil, ErrMalformed
	}

	msg := &Message{
		Raw:         buf,
		MaxForwards: DefaultMaxForwards,
	}

	if err := parseFirstLine(firstLine, msg); err != nil {
		return nil, err
	}

	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	headerBlock := buf[firstLineEnd+2:]
	if headerEnd >= 0 {
		headerBlock = buf[firstLineEnd+2 : headerEnd+2]
		msg.Body = buf[headerEnd+4:]
	}

	for _, line := range strings.Split(string(headerBlock), "\r\n") {
		if line == "" {
			continue
		}
		name, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "call-id", "i":
			msg.CallID = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
		case "via", "v":
			msg.Via = line
		case "from", "f":
			msg.From = line
		case "to", "t":
			msg.To = line
		case "contact", "m":
			msg.Contact = line
		case "cseq":
			msg.CSeq = line
			n, method := parseCSeq(line)
			msg.CSeqNumber = n
			msg.CSeqMethod = method
		case "max-forwards":
			if v, err := strconv.Atoi(strings.TrimSpace(strings.SplitN(line, ":", 2)[1])); err == nil {
				msg.MaxForwards = v
			}
		}
	}

	msg.HasSDP = bytes.Contains(buf, []byte("Content-Type: application/sdp"))

	return msg, nil
}

func parseFirstLine(line string, msg *Message) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ErrMalformed
	}

	if strings.HasPrefix(fields[0], "SIP/") {
		msg.Kind = KindStatus
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return ErrMalformed
		}
		msg.Code = code
		if len(fields) > 2 {
			msg.Reason = strings.Join(fields[2:], " ")
		}
		return nil
	}

	msg.Kind = KindRequest
	msg.Method = fields[0]
	msg.Reason = fields[1] // request-URI
	return nil
}

func parseCSeq(line string) (int, string) {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return 0, ""
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, ""
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, ""
	}
	method := ""
	if len(fields) > 1 {
		method = fields[1]
	}
	return n, method
}

// ContentTypeOffset returns the byte offset within Raw where the
// Content-Type header begins, or -1 if absent. Used when copying a body
// verbatim including its Content-Type line into a new outbound message.
func ContentTypeOffset(raw []byte) int {
	return bytes.Index(raw, []byte("Content-Type:"))
}
