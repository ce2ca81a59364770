// Package b2bua implements the per-dialog call state machine: the core of
// this server. It consumes parsed SIP messages already matched against a
// call slot (or, for a fresh INVITE, not yet matched to any call) and
// drives the transitions described for each (leg, state, event) triple.
package b2bua

import (
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/tinysip/tinysip/internal/callmap"
	"github.com/tinysip/tinysip/internal/location"
	"github.com/tinysip/tinysip/internal/sipmsg"
)

// globalCSeq is the process-wide counter used whenever the server
// originates a new request. Incremented atomically per emission.
var globalCSeq uint64

func nextCSeq() int {
	return int(atomic.AddUint64(&globalCSeq, 1))
}

// Sender delivers a formatted message to addr. Implemented by
// transport.Send in production; swappable in tests.
type Sender func(addr *net.UDPAddr, payload []byte)

// Engine owns the call map and location table and drives every state
// transition of the call state machine.
type Engine struct {
	Calls      *callmap.Map
	Locations  *location.Table
	Send       Sender
	ServerIP   string
	ServerPort int
}

// New builds an Engine.
func New(calls *callmap.Map, locations *location.Table, send Sender, serverIP string, serverPort int) *Engine {
	return &Engine{
		Calls:      calls,
		Locations:  locations,
		Send:       send,
		ServerIP:   serverIP,
		ServerPort: serverPort,
	}
}

// Handle is the entry point: given a parsed message and its source
// address, find the call it belongs to (or start one) and run the
// matching transition. REGISTER is not routed here; the caller dispatches
// it to the registrar before reaching the engine.
func (e *Engine) Handle(msg *sipmsg.Message, src *net.UDPAddr) {
	slot, leg := e.Calls.FindByCallID(msg.CallID)
	if slot == nil {
		if msg.Kind == sipmsg.KindRequest && msg.Method == "INVITE" {
			e.handleInitialInvite(msg, src)
			return
		}
		slog.Warn("[B2BUA] unexpected message, may already be released", "call_id", msg.CallID, "src", src)
		return
	}

	slot.Lock()
	defer slot.Unlock()

	switch leg {
	case callmap.LegA:
		e.handleFromA(slot, msg, src)
	case callmap.LegB:
		e.handleFromB(slot, msg, src)
	}
}

func withUserAgent(headers []string) []string {
	return sipmsg.WithUserAgent(headers)
}

func newBranch() string {
	return fmt.Sprintf("z9hG4bK%x", time.Now().UnixNano())
}

func clampMaxForwards(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func addrString(addr *net.UDPAddr) string {
	if addr == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", addr.IP.String(), addr.Port)
}

// handleInitialInvite implements the "(none) + REQUEST INVITE on A ->
// ROUTING" transition.
func (e *Engine) handleInitialInvite(msg *sipmsg.Message, src *net.UDPAddr) {
	rewrittenVia := sipmsg.RewriteVia(msg.Via, src.IP.String(), src.Port)

	slot, ok := e.Calls.Allocate()
	if !ok {
		slog.Warn("[B2BUA] call map full, rejecting INVITE", "call_id", msg.CallID)
		headers := []string{msg.Via, msg.From, msg.To, "Call-ID: " + msg.CallID, msg.CSeq}
		e.Send(src, sipmsg.Build(sipmsg.StatusLine(500, "Server Internal Error"), withUserAgent(headers), nil))
		return
	}

	slot.Lock()
	defer slot.Unlock()

	c := &slot.Call
	c.ALegUUID = msg.CallID
	c.BLegUUID = callmap.DeriveBLegUUID(msg.CallID)
	c.ALegAddr = src
	c.ALegVia = rewrittenVia
	c.ALegFrom = msg.From
	c.ALegTo = msg.To
	c.ALegCSeq = msg.CSeq
	c.ALegContact = sipmsg.ExtractAngleBracketURI(msg.Contact)
	c.Caller = sipmsg.ExtractUser(msg.From)

	callee := sipmsg.ExtractUser(msg.To)
	entry, found := e.Locations.Lookup(callee)
	if !found {
		slog.Warn("[B2BUA] callee not found", "callee", callee, "call_id", msg.CallID)
		headers := []string{c.ALegVia, c.ALegFrom, c.ALegTo, "Call-ID: " + c.ALegUUID, c.ALegCSeq}
		e.Send(src, sipmsg.Build(sipmsg.StatusLine(404, "Not Found"), withUserAgent(headers), nil))
		e.Calls.Release(slot)
		return
	}
	c.Callee = callee
	c.BLegAddr = &net.UDPAddr{IP: net.ParseIP(entry.IP), Port: entry.Port}

	c.ALegMedia.Remote = true
	c.BLegMedia.Local = true

	tryingHeaders := []string{c.ALegVia, c.ALegFrom, c.ALegTo, "Call-ID: " + c.ALegUUID, c.ALegCSeq}
	e.Send(src, sipmsg.Build(sipmsg.StatusLine(100, "Trying"), withUserAgent(tryingHeaders), nil))

	cseqN := nextCSeq()
	c.BLegCSeqNumber = cseqN
	viaLine := fmt.Sprintf("Via: SIP/2.0/UDP %s:%d;branch=%s", e.ServerIP, e.ServerPort, newBranch())
	cseqLine := fmt.Sprintf("CSeq: %d INVITE", cseqN)
	toLine := fmt.Sprintf("To: <sip:%s@%s;ob>", callee, addrString(c.BLegAddr))
	callIDLine := "Call-ID: " + c.BLegUUID
	maxFwdLine := fmt.Sprintf("Max-Forwards: %d", clampMaxForwards(msg.MaxForwards-1))

	c.BLegVia = viaLine
	c.BLegFrom = msg.From
	c.BLegTo = toLine
	c.BLegCSeq = cseqLine

	requestURI := fmt.Sprintf("sip:%s@%s", callee, addrString(c.BLegAddr))
	inviteHeaders := []string{viaLine, msg.From, toLine, callIDLine, cseqLine, maxFwdLine}
	inviteHeaders = sipmsg.WithContact(inviteHeaders, e.ServerIP, e.ServerPort)
	out := sipmsg.BuildForward(sipmsg.RequestLine("INVITE", requestURI), withUserAgent(inviteHeaders), msg)
	e.Send(c.BLegAddr, out)
	sipmsg.LogSDPInfo("a-leg-invite", msg.Body)

	c.State = callmap.StateRouting
	slog.Info("[B2BUA] INVITE routed", "call_id", c.ALegUUID, "b_leg_call_id", c.BLegUUID, "caller", c.Caller, "callee", c.Callee)
}

func (e *Engine) handleFromA(slot *callmap.Slot, msg *sipmsg.Message, src *net.UDPAddr) {
	c := &slot.Call
	switch c.State {
	case callmap.StateRouting, callmap.StateRinging:
		if msg.Kind == sipmsg.KindRequest && msg.Method == "CANCEL" {
			e.handleCancelFromA(slot, msg, src)
			return
		}
		e.logUnexpected(c, "A", msg)
	case callmap.StateAnswered:
		switch {
		case msg.Kind == sipmsg.KindRequest && msg.Method == "ACK":
			e.handleAckFromA(slot, msg)
		case msg.Kind == sipmsg.KindRequest && msg.Method == "CANCEL":
			slog.Warn("[B2BUA] CANCEL received in ANSWERED, known gap, no action taken", "call_id", c.ALegUUID)
		default:
			e.logUnexpected(c, "A", msg)
		}
	case callmap.StateConnected:
		if msg.Kind == sipmsg.KindRequest && msg.Method == "BYE" {
			e.handleBye(slot, msg, src, callmap.LegA)
			return
		}
		e.logUnexpected(c, "A", msg)
	case callmap.StateDisconnecting:
		e.handleTeardownAck(slot, msg)
	default:
		e.logUnexpected(c, "A", msg)
	}
}

func (e *Engine) handleFromB(slot *callmap.Slot, msg *sipmsg.Message, src *net.UDPAddr) {
	c := &slot.Call
	switch c.State {
	case callmap.StateRouting, callmap.StateRinging:
		if msg.Kind != sipmsg.KindStatus {
			e.logUnexpected(c, "B", msg)
			return
		}
		switch {
		case msg.Code == 183:
			e.forwardProvisional(slot, msg, 183, "Session Progress", false)
		case msg.Code == 180:
			e.forwardProvisional(slot, msg, 180, "Ringing", true)
		case msg.Code == 200:
			e.handleAnswered(slot, msg)
		case msg.Code >= 400:
			e.handleFailure(slot, msg)
		default:
			slog.Debug("[B2BUA] dropping unremarkable provisional response", "code", msg.Code, "call_id", c.ALegUUID)
		}
	case callmap.StateAnswered:
		if msg.Kind == sipmsg.KindRequest && msg.Method == "BYE" {
			slog.Warn("[B2BUA] BYE received from B in ANSWERED, known gap, no action taken", "call_id", c.ALegUUID)
			return
		}
		e.logUnexpected(c, "B", msg)
	case callmap.StateConnected:
		if msg.Kind == sipmsg.KindRequest && msg.Method == "BYE" {
			e.handleBye(slot, msg, src, callmap.LegB)
			return
		}
		e.logUnexpected(c, "B", msg)
	case callmap.StateDisconnecting:
		e.handleTeardownAck(slot, msg)
	default:
		e.logUnexpected(c, "B", msg)
	}
}

func (e *Engine) logUnexpected(c *callmap.Call, leg string, msg *sipmsg.Message) {
	slog.Warn("[B2BUA] unexpected event vs state", "leg", leg, "state", c.State.String(), "call_id", c.ALegUUID)
}

func (e *Engine) forwardProvisional(slot *callmap.Slot, msg *sipmsg.Message, code int, reason string, isRinging bool) {
	c := &slot.Call
	headers := []string{c.ALegVia, c.ALegFrom, c.ALegTo, "Call-ID: " + c.ALegUUID, c.ALegCSeq}
	out := sipmsg.BuildForward(sipmsg.StatusLine(code, reason), withUserAgent(headers), msg)
	e.Send(c.ALegAddr, out)

	if msg.HasSDP {
		c.ALegMedia.Local = true
		c.BLegMedia.Remote = true
		sipmsg.LogSDPInfo("b-leg-provisional", msg.Body)
	}

	if isRinging {
		c.State = callmap.StateRinging
	}
}

func (e *Engine) handleAnswered(slot *callmap.Slot, msg *sipmsg.Message) {
	c := &slot.Call
	c.BLegContact = sipmsg.ExtractAngleBracketURI(msg.Contact)

	headers := []string{c.ALegVia, c.ALegFrom, c.ALegTo, "Call-ID: " + c.ALegUUID, c.ALegCSeq}
	out := sipmsg.BuildForward(sipmsg.StatusLine(200, "OK"), withUserAgent(headers), msg)
	e.Send(c.ALegAddr, out)

	if msg.HasSDP {
		c.ALegMedia.Local = true
		c.BLegMedia.Remote = true
		sipmsg.LogSDPInfo("b-leg-200", msg.Body)
	}

	c.State = callmap.StateAnswered
	slog.Info("[B2BUA] call answered", "call_id", c.ALegUUID)
}

func (e *Engine) handleFailure(slot *callmap.Slot, msg *sipmsg.Message) {
	c := &slot.Call

	ackHeaders := []string{c.BLegVia, c.BLegFrom, c.BLegTo, "Call-ID: " + c.BLegUUID,
		fmt.Sprintf("CSeq: %d ACK", msg.CSeqNumber), "Max-Forwards: 70"}
	ackHeaders = sipmsg.WithContact(ackHeaders, e.ServerIP, e.ServerPort)
	requestURI := fmt.Sprintf("sip:%s@%s", c.Callee, addrString(c.BLegAddr))
	e.Send(c.BLegAddr, sipmsg.Build(sipmsg.RequestLine("ACK", requestURI), withUserAgent(ackHeaders), nil))

	headers := []string{c.ALegVia, c.ALegFrom, c.ALegTo, "Call-ID: " + c.ALegUUID, c.ALegCSeq}
	e.Send(c.ALegAddr, sipmsg.Build(sipmsg.StatusLine(msg.Code, msg.Reason), withUserAgent(headers), nil))

	slog.Info("[B2BUA] call rejected by callee", "call_id", c.ALegUUID, "code", msg.Code)
	e.Calls.Release(slot)
}

func (e *Engine) handleCancelFromA(slot *callmap.Slot, msg *sipmsg.Message, src *net.UDPAddr) {
	c := &slot.Call

	cancelOKHeaders := []string{msg.Via, msg.From, msg.To, "Call-ID: " + msg.CallID, msg.CSeq}
	e.Send(src, sipmsg.Build(sipmsg.StatusLine(200, "OK"), withUserAgent(cancelOKHeaders), nil))

	terminatedHeaders := []string{c.ALegVia, c.ALegFrom, c.ALegTo, "Call-ID: " + c.ALegUUID, c.ALegCSeq}
	e.Send(c.ALegAddr, sipmsg.Build(sipmsg.StatusLine(487, "Request Terminated"), withUserAgent(terminatedHeaders), nil))

	cancelHeaders := []string{c.BLegVia, c.BLegFrom, c.BLegTo, "Call-ID: " + c.BLegUUID,
		fmt.Sprintf("CSeq: %d CANCEL", c.BLegCSeqNumber),
		fmt.Sprintf("Max-Forwards: %d", clampMaxForwards(msg.MaxForwards-1))}
	cancelHeaders = sipmsg.WithContact(cancelHeaders, e.ServerIP, e.ServerPort)
	requestURI := fmt.Sprintf("sip:%s@%s", c.Callee, addrString(c.BLegAddr))
	e.Send(c.BLegAddr, sipmsg.Build(sipmsg.RequestLine("CANCEL", requestURI), withUserAgent(cancelHeaders), nil))

	c.State = callmap.StateDisconnecting
	slog.Info("[B2BUA] call canceled by caller", "call_id", c.ALegUUID)
}

func (e *Engine) handleAckFromA(slot *callmap.Slot, msg *sipmsg.Message) {
	c := &slot.Call

	newVia := fmt.Sprintf("Via: SIP/2.0/UDP %s:%d;branch=%s", e.ServerIP, e.ServerPort, newBranch())
	headers := []string{newVia, c.BLegFrom, c.BLegTo, "Call-ID: " + c.BLegUUID,
		fmt.Sprintf("CSeq: %d ACK", c.BLegCSeqNumber),
		fmt.Sprintf("Max-Forwards: %d", clampMaxForwards(msg.MaxForwards-1))}
	headers = sipmsg.WithContact(headers, e.ServerIP, e.ServerPort)
	requestURI := fmt.Sprintf("sip:%s@%s", c.Callee, addrString(c.BLegAddr))
	e.Send(c.BLegAddr, sipmsg.Build(sipmsg.RequestLine("ACK", requestURI), withUserAgent(headers), nil))

	c.State = callmap.StateConnected
	slog.Info("[B2BUA] call connected", "call_id", c.ALegUUID)
}

func (e *Engine) handleBye(slot *callmap.Slot, msg *sipmsg.Message, src *net.UDPAddr, fromLeg callmap.Leg) {
	c := &slot.Call

	okHeaders := []string{msg.Via, msg.From, msg.To, "Call-ID: " + msg.CallID, msg.CSeq}
	e.Send(src, sipmsg.Build(sipmsg.StatusLine(200, "OK"), withUserAgent(okHeaders), nil))

	newVia := fmt.Sprintf("Via: SIP/2.0/UDP %s:%d;branch=%s", e.ServerIP, e.ServerPort, newBranch())

	if fromLeg == callmap.LegA {
		requestURI := fmt.Sprintf("sip:%s@%s", c.Callee, addrString(c.BLegAddr))
		headers := []string{newVia, c.BLegFrom, c.BLegTo, "Call-ID: " + c.BLegUUID, fmt.Sprintf("CSeq: %d BYE", nextCSeq())}
		headers = sipmsg.WithContact(headers, e.ServerIP, e.ServerPort)
		e.Send(c.BLegAddr, sipmsg.Build(sipmsg.RequestLine("BYE", requestURI), withUserAgent(headers), nil))
	} else {
		requestURI := c.ALegContact
		swappedFrom := "From: " + sipmsg.HeaderValue(c.ALegTo)
		swappedTo := "To: " + sipmsg.HeaderValue(c.ALegFrom)
		headers := []string{newVia, swappedFrom, swappedTo, "Call-ID: " + c.ALegUUID, fmt.Sprintf("CSeq: %d BYE", nextCSeq())}
		headers = sipmsg.WithContact(headers, e.ServerIP, e.ServerPort)
		e.Send(c.ALegAddr, sipmsg.Build(sipmsg.RequestLine("BYE", requestURI), withUserAgent(headers), nil))
	}

	c.State = callmap.StateDisconnecting
	slog.Info("[B2BUA] teardown started", "call_id", c.ALegUUID, "from_leg", fromLeg)
}

func (e *Engine) handleTeardownAck(slot *callmap.Slot, msg *sipmsg.Message) {
	c := &slot.Call
	if msg.Kind == sipmsg.KindStatus && msg.Code == 200 && (msg.CSeqMethod == "BYE" || msg.CSeqMethod == "CANCEL") {
		slog.Info("[B2BUA] call released", "call_id", c.ALegUUID)
		e.Calls.Release(slot)
		return
	}
	slog.Debug("[B2BUA] message in DISCONNECTING, ignored", "call_id", c.ALegUUID, "kind", msg.Kind)
}
