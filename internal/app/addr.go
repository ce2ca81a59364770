package app

import "net"

func resolveUDPAddr(s string) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", s)
}
