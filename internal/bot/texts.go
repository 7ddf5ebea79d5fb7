package bot

import (
	"fmt"
	"html"

	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/moderation"
	"github.com/reportline/reportbot/internal/telegram"
)

const (
	welcomeText = "👋 Welcome to Reportline.\n\n" +
		"🤖 I collect reports against users and pass them to a moderator for review.\n\n" +
		"‼️ Important ‼️\n" +
		"Abusing this bot will get you banned here, and repeat offenders may be reported to the platform as well."

	reasonPromptText       = "Alright, pick a preset or enter your own reason"
	customReasonPromptText = "Enter a reason of up to 16 characters:"
	reasonTooLongText      = "🛑 Error! Too many characters. Enter a reason of up to 16 characters:"
	targetPromptText       = "Now reply to a message from the user you are reporting, or enter their ID/@username:"
	targetUnresolvedText   = "Couldn't identify the user being reported. Reply to one of their messages or enter an ID/@username."
	useButtonsText         = "Sorry, I didn't understand that. Please use the buttons."
	genericFailureText     = "Something went wrong. Please try again."

	bannedAlertText = "🛑 You are banned and cannot use the bot."
	noAccessText    = "You do not have access."

	reportsListTitle = "Pending reports:"
	usersListTitle   = "Users registered with the bot:"
	banlistListTitle = "Banned users:"

	reportNotFoundText  = "Report not found."
	userNotFoundText    = "User not found."
	fastApproveStubText = "Fast approval is not implemented yet."
)

func bannedRefusalText(mention string) string {
	return fmt.Sprintf("🛑 <b>%s</b>, you have been banned!\n❌ The bot will no longer respond to you, no matter how many times you try.", mention)
}

func statusLine(s model.ReportStatus) string {
	switch s {
	case model.StatusApproved:
		return "🟢 Approved"
	case model.StatusRejected:
		return "🔴 Rejected"
	default:
		return "🟡 Awaiting review..."
	}
}

func reportDetailText(r *model.Report, senderMention string) string {
	targetMention := telegram.Mention(r.TargetID, r.TargetUsername, "Unknown")
	return fmt.Sprintf(
		"Report #%d\nReason: %s\nSender ID: %d\nSender: %s\nReported user: %s\nStatus: %s",
		r.ID, html.EscapeString(r.Reason), r.SenderID, senderMention, targetMention, statusLine(r.Status))
}

func userProfileText(u *model.User) string {
	label := fmt.Sprintf("ID: %d", u.ID)
	if u.Username != "" {
		label = "@" + u.Username
	}
	return fmt.Sprintf(
		"👤 Username: <b>%s</b>\n🆔 ID: <b>%d</b>\n⏳ Registered: <b>%s</b>\n🔢 Total reports: <b>%d</b>",
		label, u.ID, u.RegisteredAt.Format("02.01.2006 15:04:05"), u.TotalReports)
}

func listTitle(kind moderation.Kind) string {
	switch kind {
	case moderation.KindReports:
		return reportsListTitle
	case moderation.KindBanlist:
		return banlistListTitle
	default:
		return usersListTitle
	}
}
