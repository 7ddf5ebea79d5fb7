package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/report"
	"github.com/reportline/reportbot/internal/store"
	"github.com/reportline/reportbot/internal/telegram"
)

const moderatorID = 999

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *telegram.InlineKeyboardMarkup
}

type editedMessage struct {
	chatID    int64
	messageID int64
	text      string
	keyboard  *telegram.InlineKeyboardMarkup
}

type answeredCallback struct {
	id        string
	text      string
	showAlert bool
}

type fakeMessenger struct {
	nextID  int64
	sent    []sentMessage
	edits   []editedMessage
	pins    []int64
	answers []answeredCallback
	deleted []int64
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) (int64, error) {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: kb})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	f.edits = append(f.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, keyboard: kb})
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _, messageID int64) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) PinChatMessage(_ context.Context, _, messageID int64) error {
	f.pins = append(f.pins, messageID)
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, callbackID, text string, showAlert bool) error {
	f.answers = append(f.answers, answeredCallback{id: callbackID, text: text, showAlert: showAlert})
	return nil
}

func (f *fakeMessenger) lastSentTo(chatID int64) *sentMessage {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].chatID == chatID {
			return &f.sent[i]
		}
	}
	return nil
}

func (f *fakeMessenger) lastAnswer() *answeredCallback {
	if len(f.answers) == 0 {
		return nil
	}
	return &f.answers[len(f.answers)-1]
}

func newTestRouter(t *testing.T) (*Router, *store.SQLiteStore, *fakeMessenger) {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	msgr := &fakeMessenger{}
	reports := report.NewManager(s, msgr, moderatorID, "mod_handle", logger)
	return NewRouter(s, msgr, reports, moderatorID, logger), s, msgr
}

func tgUser(id int64) *telegram.User {
	return &telegram.User{ID: id, Username: "user", FirstName: "First"}
}

func messageUpdate(from *telegram.User, text string, replyFrom *telegram.User) telegram.Update {
	msg := &telegram.Message{
		MessageID: 1,
		From:      from,
		Chat:      &telegram.Chat{ID: from.ID, Type: "private"},
		Text:      text,
	}
	if replyFrom != nil {
		msg.ReplyTo = &telegram.Message{MessageID: 0, From: replyFrom, Chat: msg.Chat}
	}
	return telegram.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(from *telegram.User, data string) telegram.Update {
	return telegram.Update{UpdateID: 1, CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb-1",
		From: from,
		Message: &telegram.Message{
			MessageID: 77,
			Chat:      &telegram.Chat{ID: from.ID, Type: "private"},
		},
		Data: data,
	}}
}

func TestStartCommand(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()

	r.HandleUpdate(ctx, messageUpdate(tgUser(10), "/start", nil))

	if _, err := s.GetUser(ctx, 10); err != nil {
		t.Fatalf("user not registered: %v", err)
	}
	welcome := msgr.lastSentTo(10)
	if welcome == nil || !strings.Contains(welcome.text, "Welcome") {
		t.Fatalf("no welcome delivered, sent = %+v", msgr.sent)
	}
	if welcome.keyboard == nil || len(welcome.keyboard.InlineKeyboard) != 1 {
		t.Errorf("non-moderator welcome keyboard = %+v, want file-report row only", welcome.keyboard)
	}
	if len(msgr.pins) != 1 {
		t.Errorf("pins = %v, want the welcome pinned once", msgr.pins)
	}
}

func TestStartCommand_ModeratorSeesAdminRow(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	r.HandleUpdate(context.Background(), messageUpdate(tgUser(moderatorID), "/start", nil))

	welcome := msgr.lastSentTo(moderatorID)
	if welcome == nil || welcome.keyboard == nil || len(welcome.keyboard.InlineKeyboard) != 2 {
		t.Fatalf("moderator welcome keyboard = %+v, want report plus admin rows", welcome)
	}
}

func TestPresetReportFlowWithReplyTarget(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	sender := tgUser(10)

	r.HandleUpdate(ctx, callbackUpdate(sender, "start_report"))
	if len(msgr.edits) == 0 || msgr.edits[len(msgr.edits)-1].keyboard == nil {
		t.Fatal("reason keyboard never shown")
	}

	r.HandleUpdate(ctx, callbackUpdate(sender, "report_preset:Fraud"))

	target := &telegram.User{ID: 500, Username: "offender"}
	r.HandleUpdate(ctx, messageUpdate(sender, "this one", target))

	reports, err := s.ListPendingReports(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListPendingReports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("pending reports = %d, want 1", len(reports))
	}
	rep := reports[0]
	if rep.Reason != "Fraud" || rep.TargetID != 500 || rep.TargetUsername != "offender" {
		t.Errorf("report = %+v, want Fraud against 500/@offender", rep)
	}

	u, _ := s.GetUser(ctx, 10)
	if u.TotalReports != 1 {
		t.Errorf("TotalReports = %d, want 1", u.TotalReports)
	}

	confirmation := msgr.lastSentTo(10)
	if confirmation == nil || !strings.Contains(confirmation.text, "Awaiting review") {
		t.Errorf("sender confirmation missing, sent = %+v", msgr.sent)
	}
	notice := msgr.lastSentTo(moderatorID)
	if notice == nil || !strings.Contains(notice.text, "New report!") {
		t.Errorf("moderator notice missing, sent = %+v", msgr.sent)
	}
}

func TestCustomReasonFlow(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	sender := tgUser(10)

	r.HandleUpdate(ctx, callbackUpdate(sender, "report_custom"))

	// Over the cap: re-prompted and kept in the same state.
	r.HandleUpdate(ctx, messageUpdate(sender, strings.Repeat("x", 17), nil))
	if got := msgr.lastSentTo(10); got == nil || !strings.Contains(got.text, "Too many characters") {
		t.Fatalf("no length re-prompt, sent = %+v", msgr.sent)
	}

	r.HandleUpdate(ctx, messageUpdate(sender, "stalking", nil))
	if got := msgr.lastSentTo(10); got == nil || !strings.Contains(got.text, "reply to a message") {
		t.Fatalf("no target prompt after valid reason, sent = %+v", msgr.sent)
	}

	// Unparseable target: re-prompted, flow intact.
	r.HandleUpdate(ctx, messageUpdate(sender, "that guy over there", nil))
	if got := msgr.lastSentTo(10); got == nil || !strings.Contains(got.text, "Couldn't identify") {
		t.Fatalf("no target re-prompt, sent = %+v", msgr.sent)
	}

	r.HandleUpdate(ctx, messageUpdate(sender, "@offender", nil))

	reports, _ := s.ListPendingReports(ctx, 10, 0)
	if len(reports) != 1 {
		t.Fatalf("pending reports = %d, want 1", len(reports))
	}
	if reports[0].Reason != "stalking" || reports[0].TargetUsername != "offender" || reports[0].TargetID != 0 {
		t.Errorf("report = %+v, want stalking against unresolved @offender", reports[0])
	}
}

func TestIdleTextGetsButtonsHint(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	r.HandleUpdate(context.Background(), messageUpdate(tgUser(10), "hello?", nil))

	if got := msgr.lastSentTo(10); got == nil || !strings.Contains(got.text, "use the buttons") {
		t.Errorf("idle hint missing, sent = %+v", msgr.sent)
	}
}

func TestBanGate(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	sender := tgUser(10)

	r.HandleUpdate(ctx, messageUpdate(sender, "/start", nil))
	if err := s.BanUser(ctx, 10, 5); err != nil {
		t.Fatalf("BanUser: %v", err)
	}
	msgr.sent, msgr.edits, msgr.answers = nil, nil, nil

	// A message gets the refusal and nothing else.
	r.HandleUpdate(ctx, messageUpdate(sender, "/start", nil))
	if len(msgr.sent) != 1 || !strings.Contains(msgr.sent[0].text, "banned") {
		t.Fatalf("sent = %+v, want a single refusal", msgr.sent)
	}

	// A button press gets an alert and no routing.
	r.HandleUpdate(ctx, callbackUpdate(sender, "start_report"))
	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || !strings.Contains(ans.text, "banned") {
		t.Fatalf("answer = %+v, want a ban alert", ans)
	}
	if len(msgr.edits) != 0 {
		t.Errorf("edits = %+v, want none past the gate", msgr.edits)
	}
}

func TestStoreFailureSurfacesToActor(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	s.Close()

	r.HandleUpdate(ctx, messageUpdate(tgUser(10), "/start", nil))
	if got := msgr.lastSentTo(10); got == nil || got.text != genericFailureText {
		t.Fatalf("sent = %+v, want the generic failure reply", msgr.sent)
	}

	r.HandleUpdate(ctx, callbackUpdate(tgUser(10), "start_report"))
	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || ans.text != genericFailureText {
		t.Fatalf("answer = %+v, want a generic failure alert", ans)
	}
	if len(msgr.edits) != 0 {
		t.Errorf("edits = %+v, want none after a failed registration", msgr.edits)
	}
}

func TestDecideCallback(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	mod := tgUser(moderatorID)

	rep := &model.Report{SenderID: 10, Reason: "Fraud", TargetID: 500}
	seedRouterUser(t, s, 10)
	if err := s.CreateReport(ctx, rep); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	r.HandleUpdate(ctx, callbackUpdate(mod, encodeDecide(report.OutcomeApprove, rep.ID)))

	got, _ := s.GetReport(ctx, rep.ID)
	if got.Status != model.StatusApproved {
		t.Fatalf("Status = %q, want approved", got.Status)
	}
	if got := msgr.lastSentTo(10); got == nil || !strings.Contains(got.text, "approved") {
		t.Errorf("sender outcome notice missing, sent = %+v", msgr.sent)
	}

	// Pressing the stale button again raises the already-decided alert.
	r.HandleUpdate(ctx, callbackUpdate(mod, encodeDecide(report.OutcomeReject, rep.ID)))
	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || !strings.Contains(ans.text, "already been decided") {
		t.Fatalf("answer = %+v, want already-decided alert", ans)
	}
	got, _ = s.GetReport(ctx, rep.ID)
	if got.Status != model.StatusApproved {
		t.Errorf("Status = %q, the first decision must stand", got.Status)
	}
}

func TestDecideCallback_NonModerator(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()

	rep := &model.Report{SenderID: 10, Reason: "Fraud", TargetID: 500}
	seedRouterUser(t, s, 10)
	if err := s.CreateReport(ctx, rep); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	r.HandleUpdate(ctx, callbackUpdate(tgUser(10), encodeDecide(report.OutcomeApprove, rep.ID)))

	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || ans.text != noAccessText {
		t.Fatalf("answer = %+v, want access alert", ans)
	}
	got, _ := s.GetReport(ctx, rep.ID)
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want still pending", got.Status)
	}
}

func TestAdminPanel_NonModerator(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	r.HandleUpdate(context.Background(), callbackUpdate(tgUser(10), "admin_panel"))

	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || ans.text != noAccessText {
		t.Fatalf("answer = %+v, want access alert", ans)
	}
	if len(msgr.edits) != 0 {
		t.Errorf("edits = %+v, want none", msgr.edits)
	}
}

func TestListPageCallback(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	seedRouterUser(t, s, 10)
	for i := 0; i < 7; i++ {
		if err := s.CreateReport(ctx, &model.Report{SenderID: 10, Reason: "r", TargetID: 1}); err != nil {
			t.Fatalf("CreateReport: %v", err)
		}
	}

	r.HandleUpdate(ctx, callbackUpdate(tgUser(moderatorID), "admin_reports:0"))

	if len(msgr.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(msgr.edits))
	}
	kb := msgr.edits[0].keyboard
	// 5 item rows, nav row, back row.
	if kb == nil || len(kb.InlineKeyboard) != 7 {
		t.Fatalf("keyboard rows = %+v, want 7", kb)
	}
	nav := kb.InlineKeyboard[5]
	if len(nav) != 2 || nav[0].Text != "1/2" {
		t.Errorf("nav row = %+v, want label then next only", nav)
	}
}

func TestBanCallback(t *testing.T) {
	r, s, msgr := newTestRouter(t)
	ctx := context.Background()
	seedRouterUser(t, s, 10)

	r.HandleUpdate(ctx, callbackUpdate(tgUser(moderatorID), encodeBanUser(10, false, false)))

	u, _ := s.GetUser(ctx, 10)
	if !u.Banned {
		t.Fatal("user not banned")
	}
	if len(msgr.edits) != 1 || !strings.Contains(msgr.edits[0].text, "Username") {
		t.Errorf("edits = %+v, want refreshed profile", msgr.edits)
	}

	// Banning again from a stale keyboard raises the state alert.
	r.HandleUpdate(ctx, callbackUpdate(tgUser(moderatorID), encodeBanUser(10, false, false)))
	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || !strings.Contains(ans.text, "already banned") {
		t.Fatalf("answer = %+v, want already-banned alert", ans)
	}
}

func TestFastApproveStub(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	r.HandleUpdate(context.Background(), callbackUpdate(tgUser(moderatorID), "admin_fast_approve"))

	ans := msgr.lastAnswer()
	if ans == nil || !ans.showAlert || ans.text != fastApproveStubText {
		t.Fatalf("answer = %+v, want stub alert", ans)
	}
}

func TestUnknownCallbackIsAcked(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	r.HandleUpdate(context.Background(), callbackUpdate(tgUser(10), "bogus:data"))

	if len(msgr.answers) != 1 {
		t.Fatalf("answers = %+v, want exactly one ack", msgr.answers)
	}
	if len(msgr.edits) != 0 {
		t.Errorf("edits = %+v, want none", msgr.edits)
	}
}

func seedRouterUser(t *testing.T, s *store.SQLiteStore, id int64) {
	t.Helper()
	if err := s.UpsertUser(context.Background(), id, "user", "First"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}
