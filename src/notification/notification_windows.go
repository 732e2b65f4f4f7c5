//go:build windows

package notification

import (
	"golang.org/x/sys/windows"
)

const (
	mbOK            = 0x00000000
	mbIconWarning   = 0x00000030
	mbSetForeground = 0x00010000
	mbTopmost       = 0x00040000
)

func show(title, message string) error {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	m, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return err
	}
	_, err = windows.MessageBox(0, m, t, mbOK|mbIconWarning|mbSetForeground|mbTopmost)
	return err
}
