// Package config loads TinySIP's startup configuration from compiled-in
// defaults, overridden by environment variables. There are no CLI flags:
// a single binary that takes its configuration from the environment.
package config

import (
	"net"
	"os"
	"strconv"
)

// Config holds the signaling server's runtime configuration.
type Config struct {
	Port          int
	BindAddr      string
	AdvertiseAddr string
	LogLevel      string

	Workers       int
	QueueCapacity int
}

// Load builds a Config from compiled-in defaults, overridden by
// environment variables when present.
func Load() *Config {
	cfg := &Config{
		Port:          5060,
		BindAddr:      "0.0.0.0",
		LogLevel:      "debug",
		Workers:       5,
		QueueCapacity: 10,
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if bind := os.Getenv("BIND"); bind != "" {
		cfg.BindAddr = bind
	}
	if advertise := os.Getenv("ADVERTISE"); advertise != "" {
		cfg.AdvertiseAddr = advertise
	} else {
		cfg.AdvertiseAddr = getPrimaryInterfaceIP()
	}
	if loglevel := os.Getenv("LOGLEVEL"); loglevel != "" {
		cfg.LogLevel = loglevel
	}
	if workers := os.Getenv("WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}
	if qc := os.Getenv("QUEUE_CAPACITY"); qc != "" {
		if q, err := strconv.Atoi(qc); err == nil && q > 0 {
			cfg.QueueCapacity = q
		}
	}

	return cfg
}

// getPrimaryInterfaceIP detects the first non-loopback IPv4 address among
// up interfaces, falling back to localhost.
func getPrimaryInterfaceIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}
