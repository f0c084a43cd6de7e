package protocol

import (
	"encoding/json"
	"fmt"

	pterrors "parceltrack/pkg/errors"
)

// CommandType discriminates inbound client messages
type CommandType string

const (
	CmdPing                CommandType = "ping"
	CmdSubscribePackage    CommandType = "subscribe_package"
	CmdUnsubscribePackage  CommandType = "unsubscribe_package"
	CmdSubscribeDelivery   CommandType = "subscribe_delivery"
	CmdUnsubscribeDelivery CommandType = "unsubscribe_delivery"
	CmdGetStats            CommandType = "get_stats"
)

// Command is a decoded inbound client message. Entity id fields are
// populated according to the command type.
type Command struct {
	Type       CommandType `json:"type"`
	PackageID  int64       `json:"package_id,omitempty"`
	DeliveryID int64       `json:"delivery_id,omitempty"`
}

// Known reports whether the command type is part of the protocol
func (c *Command) Known() bool {
	switch c.Type {
	case CmdPing, CmdSubscribePackage, CmdUnsubscribePackage,
		CmdSubscribeDelivery, CmdUnsubscribeDelivery, CmdGetStats:
		return true
	}
	return false
}

// EntityRef returns the entity reference a subscribe/unsubscribe
// command addresses, and whether the command carries one.
func (c *Command) EntityRef() (EntityRef, bool) {
	switch c.Type {
	case CmdSubscribePackage, CmdUnsubscribePackage:
		if c.PackageID > 0 {
			return PackageRef(c.PackageID), true
		}
	case CmdSubscribeDelivery, CmdUnsubscribeDelivery:
		if c.DeliveryID > 0 {
			return DeliveryRef(c.DeliveryID), true
		}
	}
	return EntityRef{}, false
}

// DecodeCommand parses an inbound client message. A decode failure is
// a protocol error; unknown command types decode successfully and are
// rejected by the handler so the connection can stay open either way.
func DecodeCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", pterrors.ErrInvalidMessage, err)
	}
	if cmd.Type == "" {
		return nil, fmt.Errorf("%w: missing type", pterrors.ErrInvalidMessage)
	}
	return &cmd, nil
}
