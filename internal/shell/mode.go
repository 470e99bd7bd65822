package shell

// Mode is the session's input mode. Exactly one is active at a time and a
// mode change is the only thing that reinterprets the buffers.
type Mode int

const (
	// ModeInteractive - each completed line goes to the command router
	ModeInteractive Mode = iota
	// ModeMultiline - completed lines are appended to the pending chunk
	ModeMultiline
	// ModeAwaitingDownload - the next byte starts a raw download
	ModeAwaitingDownload
	// ModeDownloadInProgress - bytes go verbatim to the download buffer until input goes quiet
	ModeDownloadInProgress
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeInteractive:
		return "Interactive"
	case ModeMultiline:
		return "Multiline"
	case ModeAwaitingDownload:
		return "AwaitingDownload"
	case ModeDownloadInProgress:
		return "DownloadInProgress"
	default:
		return "Unknown"
	}
}
