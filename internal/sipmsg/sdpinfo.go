package sipmsg

import (
	"log/slog"

	"github.com/pion/sdp/v3"
)

// LogSDPInfo emits a best-effort debug line summarizing a negotiated SDP
// body. It never influences forwarding: the body is always relayed
// byte-for-byte regardless of whether it parses here. Parse failures are
// swallowed, since the body is opaque to this server by design.
func LogSDPInfo(label string, body []byte) {
	if len(body) == 0 {
		return
	}

	var sd sdp.SessionDescription
	if err := sd.Unmarshal(body); err != nil {
		slog.Debug("[SDP] unparsed body, forwarding verbatim", "leg", label, "error", err)
		return
	}

	addr := ""
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		addr = sd.ConnectionInformation.Address.Address
	}

	port := 0
	if len(sd.MediaDescriptions) > 0 {
		port = sd.MediaDescriptions[0].MediaName.Port.Value
	}

	slog.Debug("[SDP] negotiated media", "leg", label, "address", addr, "port", port)
}
