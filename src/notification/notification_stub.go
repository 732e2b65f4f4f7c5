//go:build !windows

package notification

import "log"

func show(title, message string) error {
	log.Printf("%s: %s", title, message)
	return nil
}
