package telegram

import (
	"fmt"
	"html"
)

// Mention renders a user reference for HTML-mode messages: the handle
// when one exists, otherwise a tg://user deep link with the display
// name, otherwise the bare id.
func Mention(id int64, username, firstName string) string {
	switch {
	case username != "":
		return "@" + username
	case firstName != "":
		return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(firstName))
	default:
		return fmt.Sprintf("ID: %d", id)
	}
}
