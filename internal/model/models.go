package model

import "time"

// ReportStatus tracks a report through its lifecycle. Transitions are
// one-way: pending moves to exactly one of the terminal states and never
// changes again.
type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusApproved ReportStatus = "approved"
	StatusRejected ReportStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s ReportStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// PresetReasons are the quick-select report reasons offered on the reason
// keyboard, in display order. Custom reasons typed by the user are
// length-bounded; presets are not.
var PresetReasons = []string{
	"Fraud",
	"Malware file",
	"Adult content",
	"Dangerous link",
	"Doxxing",
	"Swatting",
	"Trolling",
}

// User represents a bot user mirrored from Telegram identity. ID is the
// Telegram user id; username and first name are refreshed on every
// interaction. BanMessageID holds the message id of the delivered ban
// notice and is non-zero exactly while Banned is true, so the notice can
// be retracted on unban.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	RegisteredAt time.Time
	TotalReports int
	Banned       bool
	BanMessageID int64
}

// Report represents a single complaint filed by one user against another.
// TargetID and TargetUsername hold whatever the sender's target
// resolution produced: a reply carries both, a typed handle only the
// username, a typed id only the id. MessageID is the id of the
// confirmation message shown to the sender.
type Report struct {
	ID             int64
	SenderID       int64
	SenderUsername string
	Reason         string
	TargetID       int64
	TargetUsername string
	CreatedAt      time.Time
	Status         ReportStatus
	MessageID      int64
}
