package model

import (
	"fmt"
	"strings"
)

// BoxType selects a message store on the device.
type BoxType int

const (
	BoxLocalInbox BoxType = 1
	BoxLocalSent  BoxType = 2
	BoxLocalDraft BoxType = 3
	BoxLocalTrash BoxType = 4
	BoxSIMInbox   BoxType = 5
	BoxSIMSent    BoxType = 6
	BoxSIMDraft   BoxType = 7
	BoxMixInbox   BoxType = 8
	BoxMixSent    BoxType = 9
	BoxMixDraft   BoxType = 10

	BoxInbox = BoxLocalInbox
	BoxSent  = BoxLocalSent
	BoxDraft = BoxLocalDraft
)

var boxNames = map[string]BoxType{
	"inbox":     BoxLocalInbox,
	"sent":      BoxLocalSent,
	"draft":     BoxLocalDraft,
	"trash":     BoxLocalTrash,
	"sim-inbox": BoxSIMInbox,
	"sim-sent":  BoxSIMSent,
	"sim-draft": BoxSIMDraft,
	"mix-inbox": BoxMixInbox,
	"mix-sent":  BoxMixSent,
	"mix-draft": BoxMixDraft,
}

// ParseBoxType maps a folder name such as "inbox" or "sim-sent" to a BoxType.
func ParseBoxType(name string) (BoxType, error) {
	if name == "" {
		return BoxInbox, nil
	}
	box, ok := boxNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("invalid folder: %s", name)
	}
	return box, nil
}

// Outgoing reports whether messages in the box were sent from the device.
func (b BoxType) Outgoing() bool {
	switch b {
	case BoxLocalSent, BoxSIMSent, BoxMixSent, BoxLocalDraft, BoxSIMDraft, BoxMixDraft:
		return true
	}
	return false
}

// SMSState is the device-side Smstat value of a message.
type SMSState int

const (
	SMSStateUnread SMSState = 0
	SMSStateRead   SMSState = 1
	SMSStateDraft  SMSState = 2
	SMSStateSent   SMSState = 3
)

func (s SMSState) String() string {
	switch s {
	case SMSStateUnread:
		return "unread"
	case SMSStateRead:
		return "read"
	case SMSStateDraft:
		return "draft"
	case SMSStateSent:
		return "sent"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SMSMessage represents a single SMS message.
type SMSMessage struct {
	Index   string   `json:"index"`
	From    string   `json:"from"`
	Content string   `json:"content"`
	State   SMSState `json:"state"`
	Unread  bool     `json:"unread"`
	Date    string   `json:"created_at"`
}

// SMSCount holds the per-store message counters reported by the device.
type SMSCount struct {
	LocalUnread int `json:"local_unread"`
	LocalInbox  int `json:"local_inbox"`
	LocalOutbox int `json:"local_outbox"`
	LocalDraft  int `json:"local_draft"`
	LocalMax    int `json:"local_max"`
	SimUnread   int `json:"sim_unread"`
	SimInbox    int `json:"sim_inbox"`
	SimOutbox   int `json:"sim_outbox"`
	SimDraft    int `json:"sim_draft"`
	SimMax      int `json:"sim_max"`
}
