package sipmsg

import "testing"

func TestParseRequest(t *testing.T) {
	raw := "INVITE sip:1002@10.0.0.2:5060 SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK1;rport\r\n" +
		"From: <sip:1001@10.0.0.1:5060>;tag=abc\r\n" +
		"To: <sip:1002@example.com>\r\n" +
		"Call-ID: flow-001@example.com\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Contact: <sip:1001@10.0.0.1:5060>\r\n" +
		"Content-Type: application/sdp\r\n" +
		"Content-Length: 4\r\n" +
		"\r\n" +
		"body"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if msg.Kind != KindRequest {
		t.Errorf("Kind = %v, want KindRequest", msg.Kind)
	}
	if msg.Method != "INVITE" {
		t.Errorf("Method = %q, want INVITE", msg.Method)
	}
	if msg.CallID != "flow-001@example.com" {
		t.Errorf("CallID = %q", msg.CallID)
	}
	if msg.CSeqNumber != 1 || msg.CSeqMethod != "INVITE" {
		t.Errorf("CSeq parse = %d %q", msg.CSeqNumber, msg.CSeqMethod)
	}
	if !msg.HasSDP {
		t.Error("HasSDP = false, want true")
	}
	if string(msg.Body) != "body" {
		t.Errorf("Body = %q, want body", msg.Body)
	}
}

func TestParseStatus(t *testing.T) {
	raw := "SIP/2.0 180 Ringing\r\n" +
		"Via: SIP/2.0/UDP 10.0.0.9:5060;branch=z9hG4bK2\r\n" +
		"Call-ID: b-leg01@example.com\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Content-Length: 0\r\n\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Kind != KindStatus || msg.Code != 180 {
		t.Errorf("Kind/Code = %v/%d, want KindStatus/180", msg.Kind, msg.Code)
	}
	if msg.Reason != "Ringing" {
		t.Errorf("Reason = %q, want Ringing", msg.Reason)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"", "garbage no crlf", "\r\nheaders only"} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", raw)
		}
	}
}

func TestRewriteViaWithRport(t *testing.T) {
	via := "Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK1;rport"
	got := RewriteVia(via, "203.0.113.9", 33445)
	want := "Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK1;rport=33445;received=203.0.113.9"
	if got != want {
		t.Errorf("RewriteVia() = %q, want %q", got, want)
	}
}

func TestRewriteViaWithoutRport(t *testing.T) {
	via := "Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK1"
	got := RewriteVia(via, "203.0.113.9", 33445)
	want := "Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK1;received=203.0.113.9"
	if got != want {
		t.Errorf("RewriteVia() = %q, want %q", got, want)
	}
}

func TestExtractUser(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"angle bracket with tag", "To: <sip:1002@example.com>;tag=x", "1002"},
		{"bare uri", "From: sip:1001@10.0.0.1:5060", "1001"},
		{"tel uri", "To: <tel:1003>", "1003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractUser(tt.line); got != tt.want {
				t.Errorf("ExtractUser(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestExtractAngleBracketURI(t *testing.T) {
	got := ExtractAngleBracketURI("Contact: <sip:1001@10.0.0.1:5062>")
	want := "sip:1001@10.0.0.1:5062"
	if got != want {
		t.Errorf("ExtractAngleBracketURI() = %q, want %q", got, want)
	}
}

func TestBuildContentLength(t *testing.T) {
	out := Build(StatusLine(404, "Not Found"), []string{"Via: x", "Call-ID: y"}, nil)
	got := string(out)
	want := "SIP/2.0 404 Not Found\r\nVia: x\r\nCall-ID: y\r\nContent-Length: 0\r\n\r\n"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}
