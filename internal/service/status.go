package service

import "fmt"

// TunnelState is the lifecycle of the slipstream entry point.
type TunnelState int

const (
	TunnelStopped TunnelState = iota
	TunnelStarting
	TunnelRunning
	TunnelStopping
	TunnelFailed
)

// String returns the string representation of the tunnel state
func (s TunnelState) String() string {
	switch s {
	case TunnelStopped:
		return "Stopped"
	case TunnelStarting:
		return "Starting"
	case TunnelRunning:
		return "Running"
	case TunnelStopping:
		return "Stopping"
	case TunnelFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SocksState is the state of the local SOCKS listener as seen by the host.
type SocksState int

const (
	SocksStopped SocksState = iota
	SocksWaiting
	SocksRunning
	SocksStopping
)

// String returns the string representation of the SOCKS state
func (s SocksState) String() string {
	switch s {
	case SocksStopped:
		return "Stopped"
	case SocksWaiting:
		return "Waiting"
	case SocksRunning:
		return "Running"
	case SocksStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Status pairs the tunnel and SOCKS states. Message is set for Starting and Failed.
type Status struct {
	Tunnel  TunnelState
	Message string
	Socks   SocksState
}

func (s Status) String() string {
	if s.Message != "" {
		return fmt.Sprintf("%s(%s)/%s", s.Tunnel, s.Message, s.Socks)
	}
	return fmt.Sprintf("%s/%s", s.Tunnel, s.Socks)
}
