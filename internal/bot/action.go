package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reportline/reportbot/internal/moderation"
	"github.com/reportline/reportbot/internal/report"
)

// Callback data is a compact string on the wire ("report_action:approve:12").
// It is decoded exactly once, at the boundary, into a tagged Action variant;
// the router dispatches on the concrete type and treats anything it does not
// recognize as an acknowledged no-op.

// Action is a decoded button press.
type Action interface{ isAction() }

type (
	// MainMenuAction returns to the welcome screen, discarding any
	// in-progress conversation.
	MainMenuAction struct{}
	// StartReportAction opens the reason keyboard.
	StartReportAction struct{}
	// PresetReasonAction records a quick-select reason.
	PresetReasonAction struct{ Reason string }
	// CustomReasonAction asks the user to type a reason.
	CustomReasonAction struct{}
	// AdminPanelAction opens the moderator panel.
	AdminPanelAction struct{}
	// ListPageAction shows one page of a moderator listing.
	ListPageAction struct {
		Kind moderation.Kind
		Page int
	}
	// ViewReportAction shows a report's detail view.
	ViewReportAction struct{ ReportID int64 }
	// DecideReportAction applies a terminal decision to a report.
	DecideReportAction struct {
		ReportID int64
		Outcome  report.Outcome
	}
	// ViewUserAction shows a user profile. FromBanlist selects which
	// listing the back button returns to.
	ViewUserAction struct {
		UserID      int64
		FromBanlist bool
	}
	// BanUserAction bans or unbans a user from their profile view.
	BanUserAction struct {
		UserID      int64
		Unban       bool
		FromBanlist bool
	}
	// FastApproveAction is the admin-panel fast-approval button.
	FastApproveAction struct{}
	// NoopAction is an inert button (the page label).
	NoopAction struct{}
	// UnknownAction is anything the grammar does not cover.
	UnknownAction struct{ Data string }
)

func (MainMenuAction) isAction()     {}
func (StartReportAction) isAction()  {}
func (PresetReasonAction) isAction() {}
func (CustomReasonAction) isAction() {}
func (AdminPanelAction) isAction()   {}
func (ListPageAction) isAction()     {}
func (ViewReportAction) isAction()   {}
func (DecideReportAction) isAction() {}
func (ViewUserAction) isAction()     {}
func (BanUserAction) isAction()      {}
func (FastApproveAction) isAction()  {}
func (NoopAction) isAction()         {}
func (UnknownAction) isAction()      {}

const (
	dataMainMenu    = "back_to_main"
	dataStartReport = "start_report"
	dataCustom      = "report_custom"
	dataAdminPanel  = "admin_panel"
	dataFastApprove = "admin_fast_approve"
	dataNoop        = "noop"

	prefixPreset     = "report_preset"
	prefixReports    = "admin_reports"
	prefixUsers      = "admin_users"
	prefixBanlist    = "admin_banlist"
	prefixViewReport = "view_report"
	prefixDecide     = "report_action"
	prefixViewUser   = "view_user"
	prefixUserAction = "user_action"

	originUsers   = "users"
	originBanlist = "banlist"
)

// ParseAction decodes callback data into an Action. It never fails:
// malformed data decodes to UnknownAction.
func ParseAction(data string) Action {
	switch data {
	case dataMainMenu:
		return MainMenuAction{}
	case dataStartReport:
		return StartReportAction{}
	case dataCustom:
		return CustomReasonAction{}
	case dataAdminPanel:
		return AdminPanelAction{}
	case dataFastApprove:
		return FastApproveAction{}
	case dataNoop:
		return NoopAction{}
	}

	parts := strings.Split(data, ":")
	switch parts[0] {
	case prefixPreset:
		if len(parts) == 2 && parts[1] != "" {
			return PresetReasonAction{Reason: parts[1]}
		}
	case prefixReports, prefixUsers, prefixBanlist:
		if len(parts) == 2 {
			if page, err := strconv.Atoi(parts[1]); err == nil {
				return ListPageAction{Kind: kindForPrefix(parts[0]), Page: page}
			}
		}
	case prefixViewReport:
		if len(parts) == 2 {
			if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				return ViewReportAction{ReportID: id}
			}
		}
	case prefixDecide:
		if len(parts) == 3 {
			id, err := strconv.ParseInt(parts[2], 10, 64)
			if err == nil {
				switch parts[1] {
				case string(report.OutcomeApprove):
					return DecideReportAction{ReportID: id, Outcome: report.OutcomeApprove}
				case string(report.OutcomeReject):
					return DecideReportAction{ReportID: id, Outcome: report.OutcomeReject}
				}
			}
		}
	case prefixViewUser:
		if len(parts) == 3 {
			if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				return ViewUserAction{UserID: id, FromBanlist: parts[2] == originBanlist}
			}
		}
	case prefixUserAction:
		if len(parts) == 4 {
			id, err := strconv.ParseInt(parts[2], 10, 64)
			if err == nil && (parts[1] == "ban" || parts[1] == "unban") {
				return BanUserAction{
					UserID:      id,
					Unban:       parts[1] == "unban",
					FromBanlist: parts[3] == originBanlist,
				}
			}
		}
	}
	return UnknownAction{Data: data}
}

func kindForPrefix(prefix string) moderation.Kind {
	switch prefix {
	case prefixReports:
		return moderation.KindReports
	case prefixUsers:
		return moderation.KindUsers
	default:
		return moderation.KindBanlist
	}
}

func listPrefix(kind moderation.Kind) string {
	switch kind {
	case moderation.KindReports:
		return prefixReports
	case moderation.KindUsers:
		return prefixUsers
	default:
		return prefixBanlist
	}
}

func origin(fromBanlist bool) string {
	if fromBanlist {
		return originBanlist
	}
	return originUsers
}

// Encoders used by the keyboard builders. These are the inverse of
// ParseAction for the parameterized variants.

func encodePreset(reason string) string { return prefixPreset + ":" + reason }

func encodeListPage(kind moderation.Kind, page int) string {
	return fmt.Sprintf("%s:%d", listPrefix(kind), page)
}

func encodeViewReport(id int64) string {
	return fmt.Sprintf("%s:%d", prefixViewReport, id)
}

func encodeDecide(outcome report.Outcome, id int64) string {
	return fmt.Sprintf("%s:%s:%d", prefixDecide, outcome, id)
}

func encodeViewUser(id int64, fromBanlist bool) string {
	return fmt.Sprintf("%s:%d:%s", prefixViewUser, id, origin(fromBanlist))
}

func encodeBanUser(id int64, unban, fromBanlist bool) string {
	verb := "ban"
	if unban {
		verb = "unban"
	}
	return fmt.Sprintf("%s:%s:%d:%s", prefixUserAction, verb, id, origin(fromBanlist))
}
