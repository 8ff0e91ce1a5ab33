package feed

import "github.com/MrSnakeDoc/marksync/internal/domain"

// Frame types carried over the websocket.
const (
	FrameStatus = "status"
	FrameChange = "change"
)

// Frame is one websocket message of the change stream.
type Frame struct {
	Type   string                    `json:"type"`
	Status domain.SubscriptionStatus `json:"status,omitempty"`
	Change *domain.Change            `json:"change,omitempty"`
}

// StatusFrame wraps a lifecycle status.
func StatusFrame(st domain.SubscriptionStatus) Frame {
	return Frame{Type: FrameStatus, Status: st}
}

// ChangeFrame wraps a change.
func ChangeFrame(c domain.Change) Frame {
	return Frame{Type: FrameChange, Change: &c}
}
