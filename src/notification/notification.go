package notification

import (
	"log"
)

const maxMessageLength = 200

// Show displays a message without blocking the caller.
func Show(title, message string) {
	go func() {
		if err := show(title, truncate(message)); err != nil {
			log.Printf("Failed to show notification: %v", err)
		}
	}()
}

// ShowBlockingError displays an error and waits until it is dismissed.
func ShowBlockingError(title, message string) {
	if err := show(title, truncate(message)); err != nil {
		log.Printf("Failed to show error dialog: %v", err)
	}
}

func truncate(text string) string {
	if len(text) > maxMessageLength {
		return text[:maxMessageLength] + "..."
	}
	return text
}
