package models

// RemoteCommand is a remote-control or admin command token relayed to the
// viewers. The vocabulary is fixed; anything else is dropped by the relay.
type RemoteCommand string

const (
	CommandNext       RemoteCommand = "NEXT"
	CommandPrevious   RemoteCommand = "PREVIOUS"
	CommandTogglePlay RemoteCommand = "TOGGLE_PLAY"
	CommandVolumeUp   RemoteCommand = "VOLUME_UP"
	CommandVolumeDown RemoteCommand = "VOLUME_DOWN"
)
