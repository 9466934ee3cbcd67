package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording    string
	stopPrompt   string
	stopped      string
	transcribing string
	transcribed  string
	errorPrefix  string
	connecting   string
	workingDir   string
	keyHelp      string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording:    "🎤 Recording... (press Enter to stop)",
			stopPrompt:   "Press Enter to stop recording...",
			stopped:      "✅ Recording stopped",
			transcribing: "🔄 Transcribing...",
			transcribed:  "✅ Transcribed: ",
			errorPrefix:  "❌ ",
			connecting:   "Connecting to Claude on %s...",
			workingDir:   "Working directory: %s",
			keyHelp:      "Press Ctrl+Space to record, Enter to stop, Enter again to send, Ctrl+C to exit",
		}
	}
}
