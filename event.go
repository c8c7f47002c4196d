package warden

// MessageEvent is one inbound message or membership-change event as delivered
// by the external event source.
type MessageEvent struct {
	ChatID         int64  `json:"chat_id"`
	UserID         int64  `json:"user_id"`
	Text           string `json:"text"`
	IsFromBot      bool   `json:"is_from_bot"`
	IsAdminCommand bool   `json:"is_admin_command"`
}
