// Package command defines internal server commands.
package command

// InternalCommand represents a command type for internal server operations.
type InternalCommand int

// Internal commands for server operations.
const (
	// CmdUpdateServerState signals that the server state should be updated.
	CmdUpdateServerState InternalCommand = iota
	// CmdPeersChanged signals that a peer joined or left the registry.
	CmdPeersChanged
)

func (c InternalCommand) String() string {
	switch c {
	case CmdUpdateServerState:
		return "update_server_state"
	case CmdPeersChanged:
		return "peers_changed"
	default:
		return "unknown"
	}
}
