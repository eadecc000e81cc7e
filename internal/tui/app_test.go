package tui

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles/internal/config"
	"circles/internal/core"
	"circles/internal/crypto"
	"circles/internal/models"
	"circles/internal/notify"
	"circles/internal/onboarding"
	"circles/internal/storage"
	"circles/internal/wallet"
)

const (
	testPassphrase = "correct horse battery"
	cmdTimeout     = 100 * time.Millisecond
)

var testParams = crypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32}

type fakeDirectory struct {
	mu        sync.Mutex
	users     []models.Identity
	taken     map[string]bool
	createErr error
	created   []models.AccountRequest
	queries   []string
}

func (f *fakeDirectory) Search(_ context.Context, query string) ([]models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	var out []models.Identity
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeDirectory) CreateAccount(_ context.Context, req models.AccountRequest) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	acc := models.NewAccount(req)
	return &acc, nil
}

func (f *fakeDirectory) UsernameAvailable(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.taken[strings.ToLower(username)], nil
}

func (f *fakeDirectory) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "wallet.db"), storage.WithKDFParams(testParams))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestApp(t *testing.T, store *storage.Store, dir *fakeDirectory) App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SearchDebounce = time.Millisecond
	cfg.NotificationLifetime = time.Hour
	return *NewApp(store, dir, cfg, nil)
}

// collect runs cmd and everything it batches, returning the messages that
// arrive before the timeout. Timers such as cursor blinks never make it.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	results := make(chan tea.Msg, 256)
	pending := 0
	launch := func(c tea.Cmd) {
		if c == nil {
			return
		}
		pending++
		go func() { results <- c() }()
	}
	launch(cmd)

	deadline := time.After(cmdTimeout)
	var out []tea.Msg
	for pending > 0 {
		select {
		case msg := <-results:
			pending--
			switch msg := msg.(type) {
			case nil, spinner.TickMsg:
			case tea.BatchMsg:
				for _, c := range msg {
					launch(c)
				}
			default:
				out = append(out, msg)
			}
		case <-deadline:
			return out
		}
	}
	return out
}

// send feeds msgs to a and keeps feeding whatever they produce.
func send(t *testing.T, a App, msgs ...tea.Msg) App {
	t.Helper()
	queue := append([]tea.Msg(nil), msgs...)
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 500, "message loop did not settle")
		msg := queue[0]
		queue = queue[1:]
		m, cmd := a.Update(msg)
		a = m.(App)
		queue = append(queue, collect(cmd)...)
	}
	return a
}

func press(name string) tea.KeyMsg {
	switch name {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	}
	panic("unknown key " + name)
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func lastNotification(t *testing.T, a App) notify.Notification {
	t.Helper()
	notes := a.Notifications()
	require.NotEmpty(t, notes)
	return notes[len(notes)-1]
}

// startOnboarding chooses a passphrase on the lock screen of a fresh wallet.
func startOnboarding(t *testing.T, a App) App {
	t.Helper()
	require.True(t, a.lockScreen.IsNewWallet())
	a = send(t, a, typeText(testPassphrase), press("tab"), typeText(testPassphrase), press("enter"))
	require.Equal(t, stateOnboarding, a.state, "lock error: %s", a.lockScreen.Err())
	return a
}

func solveChallenge(t *testing.T, a App) App {
	t.Helper()
	step := a.onboardingScreen.current()
	require.Equal(t, onboarding.KindChallenge, step.Kind)
	for range step.Challenge.Target() {
		a = send(t, a, press("right"))
	}
	require.Equal(t, step.Challenge.Target(), a.onboardingScreen.Cursor())
	return send(t, a, press("space"))
}

// walkToChallenge fills every step up to the first challenge.
func walkToChallenge(t *testing.T, a App) App {
	t.Helper()
	a = send(t, a, typeText("alice"), press("enter"))
	require.Equal(t, onboarding.IndexEmail, a.onboardingScreen.Step(), a.onboardingScreen.Err())
	a = send(t, a, typeText("alice@example.com"), press("enter"))
	require.Equal(t, onboarding.IndexPrimer, a.onboardingScreen.Step(), a.onboardingScreen.Err())
	a = send(t, a, press("space"), press("enter"))
	require.Equal(t, onboarding.IndexPhrase, a.onboardingScreen.Step())
	a = send(t, a, press("space"), press("enter"))
	require.Equal(t, onboarding.IndexChallenge1, a.onboardingScreen.Step())
	return a
}

func finishOnboarding(t *testing.T, a App) App {
	t.Helper()
	a = walkToChallenge(t, a)
	a = solveChallenge(t, a)
	a = send(t, a, press("enter"))
	require.Equal(t, onboarding.IndexChallenge2, a.onboardingScreen.Step())
	a = solveChallenge(t, a)
	a = send(t, a, press("enter"))
	require.Equal(t, onboarding.IndexAvatar, a.onboardingScreen.Step())
	return send(t, a, press("enter"))
}

func TestApp_OnboardingCreatesAccount(t *testing.T) {
	store := newTestStore(t)
	dir := &fakeDirectory{}
	a := startOnboarding(t, newTestApp(t, store, dir))

	a = finishOnboarding(t, a)

	require.Equal(t, stateMain, a.state)
	require.Len(t, dir.created, 1)
	req := dir.created[0]
	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "alice@example.com", req.Email)
	assert.Empty(t, req.AvatarURL)
	assert.True(t, wallet.IsAddress(req.SafeAddress))

	assert.True(t, store.HasWallet())
	addr, err := store.Address()
	require.NoError(t, err)
	assert.Equal(t, req.SafeAddress, addr)
	assert.Equal(t, addr, a.homeScreen.Address())

	acc, err := store.Account()
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	store.Lock()
	_, err = store.Unlock(testPassphrase)
	require.NoError(t, err)

	n := lastNotification(t, a)
	assert.Equal(t, notify.Success, n.Type)
	assert.Contains(t, n.Text, "@alice")
	assert.Contains(t, a.View(), "@alice")
}

func TestApp_PassphraseRules(t *testing.T) {
	a := newTestApp(t, newTestStore(t), &fakeDirectory{})

	a = send(t, a, typeText("short"), press("tab"), typeText("short"), press("enter"))
	assert.Equal(t, stateLocked, a.state)
	assert.Contains(t, a.lockScreen.Err(), "at least 8")

	a.lockScreen.Reset()
	a = send(t, a, typeText("longenough1"), press("tab"), typeText("longenough2"), press("enter"))
	assert.Equal(t, stateLocked, a.state)
	assert.Equal(t, "Passphrases do not match", a.lockScreen.Err())
}

func TestOnboarding_UsernameTaken(t *testing.T) {
	dir := &fakeDirectory{taken: map[string]bool{"bob": true}}
	a := startOnboarding(t, newTestApp(t, newTestStore(t), dir))

	a = send(t, a, typeText("Bob"), press("enter"))
	assert.Equal(t, onboarding.IndexUsername, a.onboardingScreen.Step())
	assert.Contains(t, a.onboardingScreen.Err(), "already taken")

	a = send(t, a, typeText("by"), press("enter"))
	assert.Equal(t, onboarding.IndexEmail, a.onboardingScreen.Step(), a.onboardingScreen.Err())
}

func TestOnboarding_InvalidUsernameBlocked(t *testing.T) {
	a := startOnboarding(t, newTestApp(t, newTestStore(t), &fakeDirectory{}))

	a = send(t, a, typeText("a!"), press("enter"))
	assert.Equal(t, onboarding.IndexUsername, a.onboardingScreen.Step())
	assert.Equal(t, blockedText(onboarding.KindUsername), a.onboardingScreen.Err())
}

func TestOnboarding_ChallengeHidesBack(t *testing.T) {
	a := startOnboarding(t, newTestApp(t, newTestStore(t), &fakeDirectory{}))
	a = walkToChallenge(t, a)

	a = send(t, a, press("esc"))
	assert.Equal(t, onboarding.IndexChallenge1, a.onboardingScreen.Step())
	assert.NotContains(t, a.onboardingScreen.View(), "esc: back")
}

func TestOnboarding_ExhaustedChallenge(t *testing.T) {
	a := startOnboarding(t, newTestApp(t, newTestStore(t), &fakeDirectory{}))
	a = walkToChallenge(t, a)
	e := a.onboardingScreen.current().Challenge

	wrong := (e.Target() + 1) % e.Size()
	for range wrong {
		a = send(t, a, press("right"))
	}
	for range 3 {
		a = send(t, a, press("space"))
	}
	assert.Equal(t, 0, e.AttemptsRemaining())
	assert.Contains(t, a.onboardingScreen.Err(), "Out of attempts")

	a = send(t, a, press("enter"))
	assert.Equal(t, onboarding.IndexChallenge1, a.onboardingScreen.Step())
}

func TestOnboarding_NewWordsReturnsToPrimer(t *testing.T) {
	a := startOnboarding(t, newTestApp(t, newTestStore(t), &fakeDirectory{}))
	a = walkToChallenge(t, a)
	before := a.onboardingScreen.session.Phrase()

	a = send(t, a, press("ctrl+n"))
	assert.Equal(t, onboarding.IndexPrimer, a.onboardingScreen.Step())
	assert.NotEqual(t, before, a.onboardingScreen.session.Phrase())
	assert.Empty(t, a.onboardingScreen.flow.Value(onboarding.FieldPrimerAck))
	assert.Empty(t, a.onboardingScreen.flow.Value(onboarding.FieldPhraseSaved))

	// Earlier answers survive.
	assert.Equal(t, "alice", a.onboardingScreen.flow.Value(onboarding.FieldUsername))

	a = send(t, a, press("enter"))
	assert.Equal(t, onboarding.IndexPrimer, a.onboardingScreen.Step())
}

func TestOnboarding_FailureKeepsValuesForRetry(t *testing.T) {
	store := newTestStore(t)
	dir := &fakeDirectory{}
	dir.setCreateErr(&core.APIError{StatusCode: 409, Code: core.CodeUsernameTaken, Message: "username is already registered"})
	a := startOnboarding(t, newTestApp(t, store, dir))

	a = finishOnboarding(t, a)

	require.Equal(t, stateOnboarding, a.state)
	assert.Equal(t, onboarding.IndexAvatar, a.onboardingScreen.Step())
	assert.False(t, a.onboardingScreen.Pending())
	assert.False(t, store.HasWallet())

	n := lastNotification(t, a)
	assert.Equal(t, notify.Error, n.Type)
	assert.Equal(t, "Signup failed: username is already registered", n.Text)

	dir.setCreateErr(nil)
	a = send(t, a, press("enter"))
	require.Equal(t, stateMain, a.state)
	require.Len(t, dir.created, 1)
	assert.Equal(t, "alice", dir.created[0].Username)
}

func createWallet(t *testing.T, store *storage.Store) string {
	t.Helper()
	key, err := wallet.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, store.CreateWallet(testPassphrase, key))
	addr, err := key.Address()
	require.NoError(t, err)
	require.NoError(t, store.SaveAccount(models.NewAccount(models.AccountRequest{
		Username:    "carol",
		Email:       "carol@example.com",
		SafeAddress: addr,
	})))
	store.Lock()
	return addr
}

func unlocked(t *testing.T, dir *fakeDirectory) (App, string) {
	t.Helper()
	store := newTestStore(t)
	addr := createWallet(t, store)
	a := newTestApp(t, store, dir)
	a = send(t, a, typeText(testPassphrase), press("enter"))
	require.Equal(t, stateMain, a.state, a.lockScreen.Err())
	return a, addr
}

func TestApp_Unlock(t *testing.T) {
	store := newTestStore(t)
	addr := createWallet(t, store)
	a := newTestApp(t, store, &fakeDirectory{})
	require.False(t, a.lockScreen.IsNewWallet())

	a = send(t, a, typeText("wrong passphrase"), press("enter"))
	assert.Equal(t, stateLocked, a.state)
	assert.Equal(t, "Wrong passphrase", a.lockScreen.Err())

	a.lockScreen.Reset()
	a = send(t, a, typeText(testPassphrase), press("enter"))
	require.Equal(t, stateMain, a.state)
	assert.Equal(t, addr, a.homeScreen.Address())
	assert.Contains(t, a.View(), "@carol")
	assert.Contains(t, a.View(), "never")

	a = send(t, a, press("ctrl+l"))
	assert.Equal(t, stateLocked, a.state)
	assert.False(t, store.IsUnlocked())
}

func TestSend_SearchSelectAndDraft(t *testing.T) {
	dir := &fakeDirectory{}
	a, self := unlocked(t, dir)
	dave := models.Identity{Username: "dave", SafeAddress: "0x1111111111111111111111111111111111111111"}
	dir.users = []models.Identity{
		{Username: "carol", SafeAddress: self},
		{Username: "Dan", SafeAddress: "0x2222222222222222222222222222222222222222"},
		dave,
	}

	a = send(t, a, press("tab"))
	require.Equal(t, TabSend, a.ActiveTab())

	a = send(t, a, typeText("d"))
	results := a.sendScreen.Search().Results()
	require.Len(t, results, 2)
	assert.Equal(t, "Dan", results[0].Username)
	assert.Equal(t, "dave", results[1].Username)

	a = send(t, a, press("down"), press("enter"))
	require.True(t, a.sendScreen.Confirming())
	assert.Equal(t, dave, a.sendScreen.Recipient())

	// Tab moves between fields while confirming instead of switching tabs.
	a = send(t, a, typeText("-1"), press("enter"))
	assert.True(t, a.sendScreen.Confirming())
	assert.Contains(t, a.sendScreen.Err(), "Amount")

	a.sendScreen.amountInput.SetValue("")
	a = send(t, a, typeText("2.5"), press("tab"), typeText("pizza"), press("enter"))
	assert.Equal(t, TabSend, a.ActiveTab())
	assert.False(t, a.sendScreen.Confirming())

	n := lastNotification(t, a)
	assert.Equal(t, notify.Success, n.Type)
	assert.Equal(t, "Payment prepared: 2.5 CRC to "+dave.SafeAddress+" (pizza)", n.Text)
}

func TestSend_LookupFinishesWhileOnHome(t *testing.T) {
	dave := models.Identity{Username: "dave", SafeAddress: "0x1111111111111111111111111111111111111111"}
	dir := &fakeDirectory{users: []models.Identity{dave}}
	a, _ := unlocked(t, dir)
	a = send(t, a, press("tab"))

	m, cmd := a.Update(typeText("d"))
	a = m.(App)
	pending := collect(cmd)
	require.NotEmpty(t, pending)
	require.True(t, a.sendScreen.Search().Loading())

	a = send(t, a, press("tab"))
	require.Equal(t, TabHome, a.ActiveTab())
	a = send(t, a, pending...)

	a = send(t, a, press("tab"))
	require.Equal(t, TabSend, a.ActiveTab())
	assert.False(t, a.sendScreen.Search().Loading())
	assert.Equal(t, []models.Identity{dave}, a.sendScreen.Search().Results())
	assert.Equal(t, []string{"d"}, dir.queries)
	assert.NotContains(t, a.View(), "Searching...")
}

func TestSend_AddressLiteralSkipsSearch(t *testing.T) {
	dir := &fakeDirectory{}
	a, _ := unlocked(t, dir)
	a = send(t, a, press("tab"))

	addr := "0x3333333333333333333333333333333333333333"
	a = send(t, a, typeText(addr))

	require.True(t, a.sendScreen.Confirming())
	assert.Equal(t, addr, a.sendScreen.Recipient().SafeAddress)
	assert.Empty(t, dir.queries)

	a = send(t, a, press("esc"))
	assert.False(t, a.sendScreen.Confirming())
}

func TestApp_NotificationsExpireAndDismiss(t *testing.T) {
	a, _ := unlocked(t, &fakeDirectory{})

	a = send(t, a, StatusMsg{Message: "first"}, StatusMsg{Message: "second", IsError: true})
	notes := a.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, notify.Info, notes[0].Type)
	assert.Equal(t, notify.Error, notes[1].Type)
	assert.Contains(t, a.View(), "second")

	a = send(t, a, expireNotificationMsg{ID: notes[0].ID})
	require.Len(t, a.Notifications(), 1)

	a = send(t, a, press("ctrl+d"))
	assert.Empty(t, a.Notifications())
}
