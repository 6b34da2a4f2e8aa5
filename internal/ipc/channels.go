// Package ipc carries events from the daemon to the renderer. Only channels
// on a fixed allow-list may be sent.
package ipc

import (
	"errors"
	"fmt"
)

// Renderer channels.
const (
	ChannelWindowShown          = "window-shown"
	ChannelDirectoryDataUpdated = "directory-data-updated"
	ChannelSettingsUpdated      = "settings-updated"
	ChannelHistoryUpdated       = "history-updated"
	ChannelFocusTextarea        = "focus-textarea"
	ChannelWindowHidden         = "window-hidden"
)

// ErrChannelNotAllowed is returned for channels outside the allow-list.
var ErrChannelNotAllowed = errors.New("channel not allowed")

var allowed = map[string]struct{}{
	ChannelWindowShown:          {},
	ChannelDirectoryDataUpdated: {},
	ChannelSettingsUpdated:      {},
	ChannelHistoryUpdated:       {},
	ChannelFocusTextarea:        {},
	ChannelWindowHidden:         {},
}

// Validate rejects channels that are not on the allow-list.
func Validate(channel string) error {
	if _, ok := allowed[channel]; !ok {
		return fmt.Errorf("%w: %q", ErrChannelNotAllowed, channel)
	}
	return nil
}

// Channels returns the allow-list in a stable order.
func Channels() []string {
	return []string{
		ChannelWindowShown,
		ChannelDirectoryDataUpdated,
		ChannelSettingsUpdated,
		ChannelHistoryUpdated,
		ChannelFocusTextarea,
		ChannelWindowHidden,
	}
}
