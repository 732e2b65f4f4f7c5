package input

import (
	"log"
	"strings"

	"github.com/go-vgo/robotgo"
)

// RobotController drives the real desktop through robotgo.
type RobotController struct{}

func NewRobotController() *RobotController { return &RobotController{} }

func (RobotController) KeyDown(key string) error {
	log.Printf("DEBUG: Input: key down %s", key)
	return robotgo.KeyToggle(normalizeKey(key), "down")
}

func (RobotController) KeyUp(key string) error {
	log.Printf("DEBUG: Input: key up %s", key)
	return robotgo.KeyToggle(normalizeKey(key), "up")
}

func (RobotController) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (RobotController) Click(x, y int) error {
	log.Printf("DEBUG: Input: click %d,%d", x, y)
	robotgo.Move(x, y)
	robotgo.MilliSleep(30)
	robotgo.Click()
	return nil
}

// normalizeKey maps config spellings onto robotgo key names.
func normalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	switch k {
	case "control":
		return "ctrl"
	case "win", "super":
		return "cmd"
	case "esc":
		return "escape"
	default:
		return k
	}
}
