package announce

import (
	"fmt"
)

// Announcement is an operator message published on the announce channel and
// relayed into a single room.
type Announcement struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (a *Announcement) Validate() error {
	if a.RoomID == "" {
		return fmt.Errorf("missing roomId")
	}
	if a.Message == "" {
		return fmt.Errorf("missing message")
	}
	return nil
}
