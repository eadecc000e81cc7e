package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"circles/internal/challenge"
	"circles/internal/flow"
	"circles/internal/logging"
	"circles/internal/onboarding"
)

const (
	gridColumns   = 4
	submitTimeout = 30 * time.Second
	hiddenWord    = "•••••"
)

var stepTitles = map[onboarding.Kind]string{
	onboarding.KindUsername:  "Pick a username",
	onboarding.KindEmail:     "Your email",
	onboarding.KindPrimer:    "Before we start",
	onboarding.KindPhrase:    "Your magic words",
	onboarding.KindChallenge: "Check your magic words",
	onboarding.KindAvatar:    "Profile picture",
}

// OnboardingScreen walks a new user through account creation.
type OnboardingScreen struct {
	session *onboarding.Session
	flow    *flow.Controller[tea.Cmd]
	dir     Directory
	log     logging.Logger

	usernameInput textinput.Model
	emailInput    textinput.Model
	avatarInput   textinput.Model

	spinner  spinner.Model
	cursor   int
	checking bool
	err      string
	width    int
}

func NewOnboardingScreen(session *onboarding.Session, dir Directory, saver onboarding.WalletSaver, passphrase string, log logging.Logger) OnboardingScreen {
	username := textinput.New()
	username.Placeholder = "alice"
	username.CharLimit = 24
	username.Width = 40
	username.Focus()

	email := textinput.New()
	email.Placeholder = "alice@example.com"
	email.Width = 40

	avatar := textinput.New()
	avatar.Placeholder = "https://example.com/me.png (optional)"
	avatar.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = successStyle

	complete := func(v flow.Values) tea.Cmd {
		sub, err := session.Submit(v)
		if err != nil {
			return func() tea.Msg { return AccountFailMsg{Err: err} }
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
			defer cancel()

			acc, err := sub.Run(ctx, dir, saver, passphrase)
			if err != nil {
				return AccountFailMsg{Err: err}
			}
			return AccountCreatedMsg{Account: *acc}
		}
	}

	return OnboardingScreen{
		session:       session,
		flow:          flow.New[tea.Cmd](session.Steps(), nil, complete),
		dir:           dir,
		log:           log,
		usernameInput: username,
		emailInput:    email,
		avatarInput:   avatar,
		spinner:       sp,
	}
}

func (o OnboardingScreen) Init() tea.Cmd {
	return textinput.Blink
}

func (o OnboardingScreen) current() onboarding.Step {
	return o.flow.Current().(onboarding.Step)
}

func (o OnboardingScreen) Update(msg tea.Msg) (OnboardingScreen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		return o, nil

	case spinner.TickMsg:
		if !o.flow.Pending() {
			return o, nil
		}
		var cmd tea.Cmd
		o.spinner, cmd = o.spinner.Update(msg)
		return o, cmd

	case UsernameCheckedMsg:
		return o.handleUsernameChecked(msg)

	case AccountCreatedMsg:
		o.flow.Settle(nil)
		o.err = ""
		return o, nil

	case AccountFailMsg:
		o.flow.Settle(msg.Err)
		o.err = onboarding.FailureText(msg.Err)
		return o, nil

	case tea.KeyMsg:
		if o.flow.Pending() || o.flow.Done() {
			return o, nil
		}
		return o.handleKey(msg)
	}

	return o, nil
}

func (o OnboardingScreen) handleKey(msg tea.KeyMsg) (OnboardingScreen, tea.Cmd) {
	step := o.current()

	switch {
	case key.Matches(msg, keys.Enter):
		return o.advance()

	case key.Matches(msg, keys.Back):
		if o.flow.Retreat() {
			o.err = ""
			o.cursor = 0
			return o, o.focusCurrent()
		}
		return o, nil

	case key.Matches(msg, keys.NewWords) && step.Kind == onboarding.KindChallenge:
		if err := onboarding.NewWords(o.session, o.flow, step.Challenge); err != nil {
			o.log.Error(context.Background(), "failed to renew recovery phrase", "error", err)
			o.err = "Could not create new words: " + onboarding.FormatError(err)
			return o, nil
		}
		o.log.Info(context.Background(), "recovery phrase renewed")
		o.err = ""
		o.cursor = 0
		return o, nil
	}

	o.err = ""
	switch step.Kind {
	case onboarding.KindUsername, onboarding.KindEmail, onboarding.KindAvatar:
		return o.updateInput(step.Kind, msg)

	case onboarding.KindPrimer:
		if key.Matches(msg, keys.Toggle) {
			o.flow.UpdateValues(onboarding.Toggle(o.flow.Values(), onboarding.FieldPrimerAck))
		}

	case onboarding.KindPhrase:
		if key.Matches(msg, keys.Toggle) {
			o.flow.UpdateValues(onboarding.Toggle(o.flow.Values(), onboarding.FieldPhraseSaved))
		}

	case onboarding.KindChallenge:
		o.updateChallenge(step.Challenge, msg)
	}
	return o, nil
}

func (o OnboardingScreen) updateInput(kind onboarding.Kind, msg tea.KeyMsg) (OnboardingScreen, tea.Cmd) {
	var cmd tea.Cmd
	switch kind {
	case onboarding.KindUsername:
		o.usernameInput, cmd = o.usernameInput.Update(msg)
		o.flow.UpdateValues(flow.Values{onboarding.FieldUsername: strings.TrimSpace(o.usernameInput.Value())})
	case onboarding.KindEmail:
		o.emailInput, cmd = o.emailInput.Update(msg)
		o.flow.UpdateValues(flow.Values{onboarding.FieldEmail: strings.TrimSpace(o.emailInput.Value())})
	case onboarding.KindAvatar:
		o.avatarInput, cmd = o.avatarInput.Update(msg)
		o.flow.UpdateValues(flow.Values{onboarding.FieldAvatarURL: strings.TrimSpace(o.avatarInput.Value())})
	}
	return o, cmd
}

func (o *OnboardingScreen) updateChallenge(e *challenge.Engine, msg tea.KeyMsg) {
	size := e.Size()
	switch {
	case key.Matches(msg, keys.Left):
		o.cursor = max(0, o.cursor-1)
	case key.Matches(msg, keys.Right):
		o.cursor = min(size-1, o.cursor+1)
	case key.Matches(msg, keys.Up):
		if o.cursor-gridColumns >= 0 {
			o.cursor -= gridColumns
		}
	case key.Matches(msg, keys.Down):
		if o.cursor+gridColumns < size {
			o.cursor += gridColumns
		}
	case key.Matches(msg, keys.Toggle):
		if !e.Clickable(o.cursor) {
			return
		}
		switch e.Click(o.cursor) {
		case challenge.OutcomeCorrect:
			o.log.Debug(context.Background(), "challenge solved", "attempts_left", e.AttemptsRemaining())
		case challenge.OutcomeWrong:
			if e.Phase() == challenge.PhaseExhausted {
				o.err = "Out of attempts. Press ctrl+n for new magic words."
			} else {
				o.err = fmt.Sprintf("That's not it. %d attempts left.", e.AttemptsRemaining())
			}
		}
		o.flow.Refresh()
	}
}

func (o OnboardingScreen) advance() (OnboardingScreen, tea.Cmd) {
	step := o.current()
	values := o.flow.Values()

	if step.NeedsVerification(values) {
		if o.checking {
			return o, nil
		}
		o.checking = true
		return o, checkUsername(o.dir, values[onboarding.FieldUsername])
	}

	cmd, out := o.flow.Advance()
	switch out {
	case flow.OutcomeBlocked:
		o.err = blockedText(step.Kind)
		return o, nil
	case flow.OutcomeMoved:
		o.err = ""
		o.cursor = 0
		return o, o.focusCurrent()
	}

	o.err = ""
	o.log.Info(context.Background(), "submitting account", "username", values[onboarding.FieldUsername])
	return o, tea.Batch(cmd, o.spinner.Tick)
}

func checkUsername(dir Directory, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		ok, err := dir.UsernameAvailable(ctx, username)
		return UsernameCheckedMsg{Username: username, Available: ok, Err: err}
	}
}

func (o OnboardingScreen) handleUsernameChecked(msg UsernameCheckedMsg) (OnboardingScreen, tea.Cmd) {
	o.checking = false
	if msg.Username != o.flow.Value(onboarding.FieldUsername) {
		return o, nil
	}

	switch {
	case msg.Err != nil:
		o.log.Warn(context.Background(), "username check failed", "username", msg.Username, "error", msg.Err)
		o.err = "Could not check username: " + onboarding.FormatError(msg.Err)
		return o, nil
	case !msg.Available:
		o.err = fmt.Sprintf("%q is already taken", msg.Username)
		return o, nil
	}

	o.flow.UpdateValues(flow.Values{onboarding.FieldUsernameVerified: strings.ToLower(msg.Username)})
	if o.flow.Index() != onboarding.IndexUsername {
		return o, nil
	}
	return o.advance()
}

func blockedText(kind onboarding.Kind) string {
	switch kind {
	case onboarding.KindUsername:
		return "Usernames are 3 to 24 letters or digits"
	case onboarding.KindEmail:
		return "Enter a valid email address"
	case onboarding.KindPrimer, onboarding.KindPhrase:
		return "Tick the box to continue"
	case onboarding.KindChallenge:
		return "Find the word first"
	case onboarding.KindAvatar:
		return "Avatar must be an http(s) URL or empty"
	}
	return ""
}

func (o *OnboardingScreen) focusCurrent() tea.Cmd {
	o.usernameInput.Blur()
	o.emailInput.Blur()
	o.avatarInput.Blur()

	switch o.current().Kind {
	case onboarding.KindUsername:
		return o.usernameInput.Focus()
	case onboarding.KindEmail:
		return o.emailInput.Focus()
	case onboarding.KindAvatar:
		return o.avatarInput.Focus()
	}
	return nil
}

func (o OnboardingScreen) View() string {
	var b strings.Builder
	step := o.current()

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d/%d)", stepTitles[step.Kind], o.flow.Index()+1, o.flow.Len())))
	b.WriteString("\n")

	switch step.Kind {
	case onboarding.KindUsername:
		b.WriteString("Username:\n")
		b.WriteString(focusedInputStyle.Render(o.usernameInput.View()))
		if o.checking {
			b.WriteString("\n")
			b.WriteString(mutedStyle.Render("Checking availability..."))
		}
	case onboarding.KindEmail:
		b.WriteString("Email:\n")
		b.WriteString(focusedInputStyle.Render(o.emailInput.View()))
	case onboarding.KindPrimer:
		b.WriteString(renderMarkdown(primerText, o.contentWidth()))
		b.WriteString("\n\n")
		b.WriteString(checkbox(o.flow.Value(onboarding.FieldPrimerAck), "I understand"))
	case onboarding.KindPhrase:
		b.WriteString(subtitleStyle.Render("Write these words down in order."))
		b.WriteString("\n")
		b.WriteString(o.phraseGrid())
		b.WriteString("\n\n")
		b.WriteString(checkbox(o.flow.Value(onboarding.FieldPhraseSaved), "I have saved my magic words"))
	case onboarding.KindChallenge:
		b.WriteString(o.challengeView(step.Challenge))
	case onboarding.KindAvatar:
		b.WriteString("Avatar URL:\n")
		b.WriteString(focusedInputStyle.Render(o.avatarInput.View()))
	}

	if o.err != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("⚠ " + o.err))
	}

	if o.flow.Pending() {
		b.WriteString("\n\n")
		b.WriteString(o.spinner.View() + " Creating your account...")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(o.helpLine(step)))

	return boxStyle.Render(b.String())
}

func (o OnboardingScreen) helpLine(step onboarding.Step) string {
	parts := []string{"enter: continue"}
	if o.flow.CanRetreat() {
		parts = append(parts, "esc: back")
	}
	switch step.Kind {
	case onboarding.KindPrimer, onboarding.KindPhrase:
		parts = append(parts, "space: tick")
	case onboarding.KindChallenge:
		parts = append(parts, "arrows: move", "space: pick", "ctrl+n: new magic words")
	}
	return strings.Join(parts, " • ")
}

func (o OnboardingScreen) contentWidth() int {
	if o.width == 0 {
		return 64
	}
	return min(72, max(20, o.width-10))
}

func checkbox(value, label string) string {
	if value == onboarding.Checked {
		return successStyle.Render("[x] " + label)
	}
	return "[ ] " + label
}

func (o OnboardingScreen) phraseGrid() string {
	phrase := o.session.Phrase()
	cells := make([]string, phrase.Len())
	for i, w := range phrase {
		cells[i] = wordStyle.Render(fmt.Sprintf("%2d. %s", i+1, w))
	}
	return grid(cells)
}

func (o OnboardingScreen) challengeView(e *challenge.Engine) string {
	var b strings.Builder
	phrase := o.session.Phrase()
	st := e.State()

	fmt.Fprintf(&b, "Where is the word %q?\n", phrase[st.TargetIndex])
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d attempts left", st.AttemptsRemaining)))
	b.WriteString("\n\n")

	cells := make([]string, e.Size())
	for i := range cells {
		switch {
		case e.Revealed(i):
			cells[i] = revealedWordStyle.Render(fmt.Sprintf("%2d. %s", i+1, phrase[i]))
		case i == o.cursor && e.Clickable(i):
			cells[i] = cursorWordStyle.Render(fmt.Sprintf("%2d. %s", i+1, hiddenWord))
		case i == st.LastClicked && !st.Correct:
			cells[i] = wrongWordStyle.Render(fmt.Sprintf("%2d. %s", i+1, hiddenWord))
		default:
			cells[i] = hiddenWordStyle.Render(fmt.Sprintf("%2d. %s", i+1, hiddenWord))
		}
	}
	b.WriteString(grid(cells))

	if e.Phase() == challenge.PhaseCorrect {
		b.WriteString("\n\n")
		b.WriteString(successStyle.Render("✓ Correct! Press enter to continue."))
	}
	return b.String()
}

func grid(cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString(c)
		if (i+1)%gridColumns == 0 && i+1 < len(cells) {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (o OnboardingScreen) Step() int { return o.flow.Index() }
func (o OnboardingScreen) Pending() bool { return o.flow.Pending() }
func (o OnboardingScreen) Done() bool { return o.flow.Done() }
func (o OnboardingScreen) Err() string { return o.err }
func (o OnboardingScreen) Cursor() int { return o.cursor }
