package bot

import (
	"fmt"

	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/moderation"
	"github.com/reportline/reportbot/internal/report"
	"github.com/reportline/reportbot/internal/telegram"
)

func btn(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func welcomeKeyboard(isModerator bool) *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			telegram.Row(btn("📩 File a report", dataStartReport)),
		},
	}
	if isModerator {
		kb.InlineKeyboard = append(kb.InlineKeyboard, telegram.Row(btn("⚙️ Admin panel", dataAdminPanel)))
	}
	return kb
}

// reasonKeyboard lays the presets out two per row, with the custom
// option in the last slot.
func reasonKeyboard() *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{}
	var row []telegram.InlineKeyboardButton
	for _, reason := range model.PresetReasons {
		row = append(row, btn(reason, encodePreset(reason)))
		if len(row) == 2 {
			kb.InlineKeyboard = append(kb.InlineKeyboard, row)
			row = nil
		}
	}
	row = append(row, btn("⚙️ Other", dataCustom))
	kb.InlineKeyboard = append(kb.InlineKeyboard, row)
	return kb
}

func adminPanelKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			telegram.Row(btn("🛑 Reports", encodeListPage(moderation.KindReports, 0))),
			telegram.Row(btn("👤 Users", encodeListPage(moderation.KindUsers, 0))),
			telegram.Row(btn("❌ Ban list", encodeListPage(moderation.KindBanlist, 0))),
			telegram.Row(btn("🟢 Fast approval", dataFastApprove)),
			telegram.Row(btn("◀️ Back to menu", dataMainMenu)),
		},
	}
}

// listKeyboard renders one page of a moderator listing: a button per
// item, a nav row with clamped prev/next controls around an inert page
// label, and a way back to the admin panel.
func listKeyboard(p *moderation.Page) *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{}

	for _, r := range p.Reports {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			telegram.Row(btn(fmt.Sprintf("#%d %s", r.ID, r.Reason), encodeViewReport(r.ID))))
	}
	for _, u := range p.Users {
		label := fmt.Sprintf("ID: %d", u.ID)
		if u.Username != "" {
			label = "@" + u.Username
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			telegram.Row(btn(label, encodeViewUser(u.ID, p.Kind == moderation.KindBanlist))))
	}

	var nav []telegram.InlineKeyboardButton
	if p.HasPrev {
		nav = append(nav, btn("◀️", encodeListPage(p.Kind, p.Page-1)))
	}
	nav = append(nav, btn(fmt.Sprintf("%d/%d", p.Page+1, p.TotalPages), dataNoop))
	if p.HasNext {
		nav = append(nav, btn("▶️", encodeListPage(p.Kind, p.Page+1)))
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, nav)

	kb.InlineKeyboard = append(kb.InlineKeyboard, telegram.Row(btn("◀️ Back to admin panel", dataAdminPanel)))
	return kb
}

func reportActionsKeyboard(reportID int64) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			telegram.Row(btn("🟢 Approve", encodeDecide(report.OutcomeApprove, reportID))),
			telegram.Row(btn("🔴 Reject", encodeDecide(report.OutcomeReject, reportID))),
			telegram.Row(btn("▶ Next report", encodeListPage(moderation.KindReports, 0))),
			telegram.Row(btn("◀️ Back to admin panel", dataAdminPanel)),
		},
	}
}

func backToReportsKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			telegram.Row(btn("◀️ Back to reports", encodeListPage(moderation.KindReports, 0))),
			telegram.Row(btn("◀️ Back to admin panel", dataAdminPanel)),
		},
	}
}

func userProfileKeyboard(userID int64, banned, fromBanlist bool) *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{}
	if banned {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			telegram.Row(btn("🟩 Unban", encodeBanUser(userID, true, fromBanlist))))
	} else {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			telegram.Row(btn("🛑 Ban", encodeBanUser(userID, false, fromBanlist))))
	}
	if fromBanlist {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			telegram.Row(btn("◀️ Back to ban list", encodeListPage(moderation.KindBanlist, 0))))
	} else {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			telegram.Row(btn("◀️ Back to users", encodeListPage(moderation.KindUsers, 0))))
	}
	return kb
}
