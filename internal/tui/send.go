package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"circles/internal/models"
	"circles/internal/payment"
	"circles/internal/search"
)

type sendMode int

const (
	sendModeSearch sendMode = iota
	sendModeConfirm
)

// SendScreen finds a recipient and prepares a payment to them.
type SendScreen struct {
	search      search.Coordinator
	searchInput textinput.Model

	mode        sendMode
	recipient   models.Identity
	amountInput textinput.Model
	noteInput   textinput.Model
	focusIndex  int
	err         string
}

func NewSendScreen(coord search.Coordinator) SendScreen {
	query := textinput.New()
	query.Placeholder = "Username or 0x address"
	query.Width = 44
	query.Focus()

	amount := textinput.New()
	amount.Placeholder = "Amount in CRC"
	amount.Width = 20

	note := textinput.New()
	note.Placeholder = "What is it for? (optional)"
	note.CharLimit = payment.MaxNoteLength
	note.Width = 44

	return SendScreen{
		search:      coord,
		searchInput: query,
		amountInput: amount,
		noteInput:   note,
	}
}

func (s SendScreen) Update(msg tea.Msg) (SendScreen, tea.Cmd) {
	switch msg := msg.(type) {
	case search.SelectedMsg:
		return s.confirm(msg.Identity)

	case tea.KeyMsg:
		s.err = ""
		if s.mode == sendModeConfirm {
			return s.updateConfirm(msg)
		}
		return s.updateSearch(msg)
	}

	var cmd tea.Cmd
	s.search, cmd = s.search.Update(msg)
	return s, cmd
}

func (s SendScreen) updateSearch(msg tea.KeyMsg) (SendScreen, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		s.search = s.search.MoveCursor(-1)
		return s, nil
	case key.Matches(msg, keys.Down):
		s.search = s.search.MoveCursor(1)
		return s, nil
	case key.Matches(msg, keys.Enter):
		return s, s.search.SelectCursor()
	case key.Matches(msg, keys.Back):
		s.searchInput.SetValue("")
		var cmd tea.Cmd
		s.search, cmd = s.search.SetQuery("")
		return s, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	s.searchInput, cmd = s.searchInput.Update(msg)
	cmds = append(cmds, cmd)

	if q := strings.TrimSpace(s.searchInput.Value()); q != s.search.Query() {
		s.search, cmd = s.search.SetQuery(q)
		cmds = append(cmds, cmd)
	}
	return s, tea.Batch(cmds...)
}

func (s SendScreen) confirm(ident models.Identity) (SendScreen, tea.Cmd) {
	s.mode = sendModeConfirm
	s.recipient = ident
	s.err = ""
	s.focusIndex = 0
	s.amountInput.SetValue("")
	s.noteInput.SetValue("")
	s.searchInput.Blur()
	s.noteInput.Blur()
	return s, s.amountInput.Focus()
}

func (s SendScreen) updateConfirm(msg tea.KeyMsg) (SendScreen, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		s.mode = sendModeSearch
		s.amountInput.Blur()
		s.noteInput.Blur()
		return s, s.searchInput.Focus()

	case msg.String() == "tab" || msg.String() == "shift+tab":
		s.focusIndex = 1 - s.focusIndex
		if s.focusIndex == 0 {
			s.noteInput.Blur()
			return s, s.amountInput.Focus()
		}
		s.amountInput.Blur()
		return s, s.noteInput.Focus()

	case key.Matches(msg, keys.Enter):
		draft, err := payment.NewDraft(s.recipient.SafeAddress, strings.TrimSpace(s.amountInput.Value()), strings.TrimSpace(s.noteInput.Value()))
		if err != nil {
			s.err = draftErrorText(err)
			return s, nil
		}
		s = s.reset()
		return s, func() tea.Msg { return DraftReadyMsg{Draft: draft} }
	}

	var cmd tea.Cmd
	if s.focusIndex == 0 {
		s.amountInput, cmd = s.amountInput.Update(msg)
	} else {
		s.noteInput, cmd = s.noteInput.Update(msg)
	}
	return s, cmd
}

func draftErrorText(err error) string {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount):
		return "Amount must be a number of at least 0"
	case errors.Is(err, payment.ErrInvalidNote):
		return fmt.Sprintf("Notes are up to %d letters, digits and simple punctuation", payment.MaxNoteLength)
	}
	return err.Error()
}

func (s SendScreen) reset() SendScreen {
	s.mode = sendModeSearch
	s.recipient = models.Identity{}
	s.amountInput.SetValue("")
	s.noteInput.SetValue("")
	s.amountInput.Blur()
	s.noteInput.Blur()
	s.searchInput.SetValue("")
	s.searchInput.Focus()
	s.search, _ = s.search.SetQuery("")
	return s
}

func (s SendScreen) View() string {
	if s.mode == sendModeConfirm {
		return s.confirmView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Send Circles"))
	b.WriteString("\n")
	b.WriteString("To:\n")
	b.WriteString(focusedInputStyle.Render(s.searchInput.View()))
	b.WriteString("\n\n")

	results := s.search.Results()
	switch {
	case s.search.Loading():
		b.WriteString(mutedStyle.Render("Searching..."))
	case s.search.Query() == "":
		b.WriteString(mutedStyle.Render("Type a username to search the directory"))
	case len(results) == 0:
		b.WriteString(mutedStyle.Render("No matches"))
	default:
		for i, r := range results {
			line := fmt.Sprintf("@%-24s %s", r.Username, shortAddress(r.SafeAddress))
			if i == s.search.Cursor() {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(normalStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (s SendScreen) confirmView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Confirm payment"))
	b.WriteString("\n")

	to := s.recipient.SafeAddress
	if s.recipient.Username != "" {
		to = "@" + s.recipient.Username + " " + mutedStyle.Render(shortAddress(to))
	}
	b.WriteString("To: " + to)
	b.WriteString("\n\n")

	b.WriteString("Amount:\n")
	b.WriteString(s.inputView(s.amountInput, s.focusIndex == 0))
	b.WriteString("\n\n")
	b.WriteString("Note:\n")
	b.WriteString(s.inputView(s.noteInput, s.focusIndex == 1))

	if s.err != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("⚠ " + s.err))
	}
	return b.String()
}

func (s SendScreen) inputView(in textinput.Model, focused bool) string {
	if focused {
		return focusedInputStyle.Render(in.View())
	}
	return inputStyle.Render(in.View())
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func (s SendScreen) Confirming() bool { return s.mode == sendModeConfirm }
func (s SendScreen) Recipient() models.Identity { return s.recipient }
func (s SendScreen) Search() search.Coordinator { return s.search }
func (s SendScreen) Err() string { return s.err }
