package bluetooth

import "fmt"

// Mode selects the channel updates are delivered on.
type Mode string

const (
	ModeNotification Mode = "notification"
	ModeTeleprompter Mode = "teleprompter"
	ModeEvenAI       Mode = "evenai"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNotification, ModeTeleprompter, ModeEvenAI:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// DisplayFormat selects which text of an update is shown.
type DisplayFormat string

const (
	DisplayOriginal   DisplayFormat = "original"
	DisplayTranslated DisplayFormat = "translated"
	DisplayBoth       DisplayFormat = "both"
)

// ParseDisplayFormat validates a configured display format.
func ParseDisplayFormat(s string) (DisplayFormat, error) {
	switch f := DisplayFormat(s); f {
	case DisplayOriginal, DisplayTranslated, DisplayBoth:
		return f, nil
	}
	return "", fmt.Errorf("unknown display format %q", s)
}

// FormatDisplay builds the title and message for an update. An empty
// speaker falls back to a label naming the text kind.
func FormatDisplay(format DisplayFormat, original, translated, speaker string) (title, message string) {
	switch format {
	case DisplayOriginal:
		title, message = "Speech", original
	case DisplayTranslated:
		title, message = "Translation", translated
	default:
		title, message = "Translation", original
		if translated != "" {
			message = original + "\n→ " + translated
		}
	}
	if speaker != "" {
		title = speaker
	}
	return title, message
}

// displayText is the single-string rendering used by the teleprompter and
// Even-AI channels.
func displayText(title, message string) string {
	if title == "" {
		return message
	}
	return title + ": " + message
}
