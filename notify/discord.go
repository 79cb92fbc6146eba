package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// discordLimit is the maximum length of a Discord message content.
const discordLimit = 2000

const separator = "---------------------------------------"

// rule sits between the old and new content.
const rule = " \n " + separator + " \n "

// Discord posts change events to a Discord webhook as chat messages.
type Discord struct {
	p poster
}

// NewDiscord creates a notifier for a Discord webhook URL.
func NewDiscord(url string, opts ...WebhookOption) *Discord {
	return &Discord{p: newPoster(url, opts)}
}

func (d *Discord) Notify(ctx context.Context, ev Event) error {
	return d.p.post(ctx, map[string]string{"content": FormatMessage(ev)})
}

func (d *Discord) Close() error { return nil }

// FormatMessage renders ev as a Discord message: page name and URL, then the
// old and new content as inline code separated by a rule. Content is
// shortened so the message fits Discord's limit.
func FormatMessage(ev Event) string {
	head := fmt.Sprintf("*%s* - (%s) has html has changed from: \n ", ev.Page, ev.URL)
	old := strings.ReplaceAll(ev.Old, "`", "'")
	cur := strings.ReplaceAll(ev.New, "`", "'")

	frame := utf8.RuneCountInString(head) + len(rule) + len("````")
	budget := discordLimit - frame
	if utf8.RuneCountInString(old)+utf8.RuneCountInString(cur) > budget {
		old = truncate(old, budget/2)
		cur = truncate(cur, budget-utf8.RuneCountInString(old))
	}
	return head + "`" + old + "`" + rule + "`" + cur + "`"
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
