package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"circles/internal/crypto"
)

// LockScreen asks for the wallet passphrase, or for a new one when no wallet
// exists yet.
type LockScreen struct {
	passphraseInput textinput.Model
	confirmInput    textinput.Model
	isNewWallet     bool
	focusIndex      int
	err             string
	loading         bool
}

func NewLockScreen(isNewWallet bool) LockScreen {
	passphrase := textinput.New()
	passphrase.Placeholder = "Passphrase"
	passphrase.EchoMode = textinput.EchoPassword
	passphrase.EchoCharacter = '•'
	passphrase.Focus()
	passphrase.Width = 40

	confirm := textinput.New()
	confirm.Placeholder = "Confirm passphrase"
	confirm.EchoMode = textinput.EchoPassword
	confirm.EchoCharacter = '•'
	confirm.Width = 40

	return LockScreen{
		passphraseInput: passphrase,
		confirmInput:    confirm,
		isNewWallet:     isNewWallet,
	}
}

func (l LockScreen) Init() tea.Cmd {
	return textinput.Blink
}

func (l LockScreen) Update(msg tea.Msg) (LockScreen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		l.err = ""

		switch msg.String() {
		case "tab", "shift+tab", "down", "up":
			if l.isNewWallet {
				l.focusIndex = 1 - l.focusIndex
				l.updateFocus()
			}
			return l, nil

		case "enter":
			if l.loading {
				return l, nil
			}
			passphrase := l.passphraseInput.Value()

			if l.isNewWallet {
				if err := crypto.CheckPassphrase(passphrase, l.confirmInput.Value()); err != nil {
					l.err = lockErrorText(err)
					return l, nil
				}
				l.loading = true
				return l, func() tea.Msg {
					return InitRequestMsg{Passphrase: passphrase}
				}
			}

			if passphrase == "" {
				l.err = "Passphrase is required"
				return l, nil
			}
			l.loading = true
			return l, func() tea.Msg {
				return UnlockRequestMsg{Passphrase: passphrase}
			}
		}
	}

	var cmd tea.Cmd
	if l.isNewWallet && l.focusIndex == 1 {
		l.confirmInput, cmd = l.confirmInput.Update(msg)
	} else {
		l.passphraseInput, cmd = l.passphraseInput.Update(msg)
	}
	return l, cmd
}

func lockErrorText(err error) string {
	switch {
	case errors.Is(err, crypto.ErrPassphraseTooShort):
		return "Passphrase must be at least 8 characters"
	case errors.Is(err, crypto.ErrPassphraseMismatch):
		return "Passphrases do not match"
	}
	return err.Error()
}

func (l *LockScreen) updateFocus() {
	l.passphraseInput.Blur()
	l.confirmInput.Blur()

	switch l.focusIndex {
	case 0:
		l.passphraseInput.Focus()
	case 1:
		l.confirmInput.Focus()
	}
}

func (l LockScreen) View() string {
	var b strings.Builder

	b.WriteString(logoStyle.Render(logo))
	b.WriteString("\n")

	if l.isNewWallet {
		b.WriteString(titleStyle.Render("Welcome to Circles"))
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("Choose a passphrase to protect your wallet on this device"))
		b.WriteString("\n\n")

		b.WriteString("Passphrase:\n")
		b.WriteString(l.inputView(l.passphraseInput, l.focusIndex == 0))
		b.WriteString("\n\n")

		b.WriteString("Confirm Passphrase:\n")
		b.WriteString(l.inputView(l.confirmInput, l.focusIndex == 1))
		b.WriteString("\n")
	} else {
		b.WriteString(titleStyle.Render("Unlock Wallet"))
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("Enter your passphrase"))
		b.WriteString("\n\n")

		b.WriteString("Passphrase:\n")
		b.WriteString(focusedInputStyle.Render(l.passphraseInput.View()))
		b.WriteString("\n")
	}

	if l.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("⚠ " + l.err))
	}

	if l.loading {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Unlocking..."))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Press Enter to submit • Ctrl+C to quit"))

	return boxStyle.Render(b.String())
}

func (l LockScreen) inputView(in textinput.Model, focused bool) string {
	if focused {
		return focusedInputStyle.Render(in.View())
	}
	return inputStyle.Render(in.View())
}

func (l *LockScreen) SetError(err string) {
	l.err = err
	l.loading = false
}

func (l *LockScreen) Reset() {
	l.passphraseInput.SetValue("")
	l.confirmInput.SetValue("")
	l.err = ""
	l.loading = false
	l.focusIndex = 0
	l.updateFocus()
}

func (l LockScreen) Err() string { return l.err }
func (l LockScreen) IsNewWallet() bool { return l.isNewWallet }
