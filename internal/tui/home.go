package tui

import (
	"strings"
	"time"

	"circles/internal/models"
)

// HomeScreen shows who the wallet belongs to.
type HomeScreen struct {
	address    string
	account    *models.Account
	lastPayout time.Time
}

func NewHomeScreen(msg HomeLoadedMsg) HomeScreen {
	return HomeScreen{
		address:    msg.Address,
		account:    msg.Account,
		lastPayout: msg.LastPayout,
	}
}

func (h HomeScreen) View() string {
	var b strings.Builder

	name := "(no account)"
	if h.account != nil {
		name = "@" + h.account.Username
	}
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n")

	b.WriteString(mutedStyle.Render("Safe address"))
	b.WriteString("\n")
	b.WriteString(h.address)
	b.WriteString("\n\n")

	if h.account != nil {
		b.WriteString(mutedStyle.Render("Email"))
		b.WriteString("\n")
		b.WriteString(h.account.Email)
		b.WriteString("\n\n")

		if h.account.AvatarURL != "" {
			b.WriteString(mutedStyle.Render("Avatar"))
			b.WriteString("\n")
			b.WriteString(h.account.AvatarURL)
			b.WriteString("\n\n")
		}

		b.WriteString(mutedStyle.Render("Member since"))
		b.WriteString("\n")
		b.WriteString(h.account.CreatedAt.Local().Format("Jan 2, 2006"))
		b.WriteString("\n\n")
	}

	b.WriteString(mutedStyle.Render("Last payout"))
	b.WriteString("\n")
	b.WriteString(formatPayout(h.lastPayout))

	return b.String()
}

func formatPayout(t time.Time) string {
	if t.IsZero() || t.Equal(time.Unix(0, 0)) {
		return "never"
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

func (h HomeScreen) Address() string { return h.address }
