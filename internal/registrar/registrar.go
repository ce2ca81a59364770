// Package registrar handles inbound REGISTER requests against the
// location table.
package registrar

import (
	"log/slog"
	"net"

	"github.com/tinysip/tinysip/internal/location"
	"github.com/tinysip/tinysip/internal/sipmsg"
)

// Registrar resolves REGISTER requests against a location table.
type Registrar struct {
	table *location.Table
}

// New builds a Registrar backed by table.
func New(table *location.Table) *Registrar {
	return &Registrar{table: table}
}

// HandleRegister processes a parsed REGISTER request from src and returns
// the fully formatted outbound response.
func (r *Registrar) HandleRegister(msg *sipmsg.Message, src *net.UDPAddr) []byte {
	username := sipmsg.ExtractUser(msg.From)

	entry, err := r.table.Register(username, src.IP.String(), src.Port)
	if err != nil {
		slog.Warn("[Registrar] unknown user", "user", username, "src", src)
		headers := []string{msg.Via, msg.From, msg.To, "Call-ID: " + msg.CallID, msg.CSeq}
		return sipmsg.Build(sipmsg.StatusLine(404, "Not Found"), sipmsg.WithUserAgent(headers), nil)
	}

	slog.Info("[Registrar] registered", "user", entry.Username, "ip", entry.IP, "port", entry.Port)

	contact := msg.Contact
	if contact != "" {
		contact += ";expires=7200"
	}

	headers := []string{msg.Via, msg.From, msg.To, "Call-ID: " + msg.CallID, msg.CSeq}
	if contact != "" {
		headers = append(headers, contact)
	}
	return sipmsg.Build(sipmsg.StatusLine(200, "OK"), sipmsg.WithUserAgent(headers), nil)
}
