package model

import (
	"errors"
	"fmt"
)

// BanType selects which platform sides a ban applies to.
type BanType string

const (
	BanTypeRoblox  BanType = "roblox"
	BanTypeDiscord BanType = "discord"
	BanTypeBoth    BanType = "both"
)

var ErrInvalidBanType = errors.New("invalid ban type")

// ParseBanType validates a moderator-supplied ban type string.
func ParseBanType(value string) (BanType, error) {
	switch BanType(value) {
	case BanTypeRoblox, BanTypeDiscord, BanTypeBoth:
		return BanType(value), nil
	default:
		return "", fmt.Errorf("%w: %q (must be 'roblox', 'discord', or 'both')", ErrInvalidBanType, value)
	}
}

// IncludesRoblox reports whether the game-platform side is requested.
func (t BanType) IncludesRoblox() bool {
	return t == BanTypeRoblox || t == BanTypeBoth
}

// IncludesDiscord reports whether the chat-platform side is requested.
func (t BanType) IncludesDiscord() bool {
	return t == BanTypeDiscord || t == BanTypeBoth
}
