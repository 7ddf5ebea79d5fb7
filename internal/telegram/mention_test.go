package telegram

import "testing"

func TestMention(t *testing.T) {
	tests := []struct {
		name      string
		id        int64
		username  string
		firstName string
		want      string
	}{
		{name: "handle wins", id: 5, username: "alice", firstName: "Alice", want: "@alice"},
		{name: "name link", id: 5, firstName: "Alice", want: `<a href="tg://user?id=5">Alice</a>`},
		{name: "name is escaped", id: 5, firstName: "<b>x</b>", want: `<a href="tg://user?id=5">&lt;b&gt;x&lt;/b&gt;</a>`},
		{name: "bare id", id: 5, want: "ID: 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mention(tt.id, tt.username, tt.firstName); got != tt.want {
				t.Errorf("Mention = %q, want %q", got, tt.want)
			}
		})
	}
}
