package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"circles/internal/config"
	"circles/internal/crypto"
	"circles/internal/logging"
	"circles/internal/models"
	"circles/internal/notify"
	"circles/internal/onboarding"
	"circles/internal/search"
	"circles/internal/storage"
	"circles/internal/wallet"
)

type Tab int

const (
	TabHome Tab = iota
	TabSend
)

var tabNames = []string{"Home", "Send"}

type state int

const (
	stateLocked state = iota
	stateOnboarding
	stateMain
)

// Directory is the remote side the TUI talks to.
type Directory interface {
	search.Searcher
	onboarding.AccountCreator
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// WalletStore is the local wallet database.
type WalletStore interface {
	onboarding.WalletSaver
	HasWallet() bool
	Unlock(passphrase string) (wallet.PrivateKey, error)
	Lock()
	Address() (string, error)
	Account() (*models.Account, error)
	LastPayout() (time.Time, error)
}

type App struct {
	store WalletStore
	dir   Directory
	cfg   *config.Config
	log   logging.Logger

	state     state
	activeTab Tab
	width     int
	height    int

	lockScreen       LockScreen
	onboardingScreen OnboardingScreen
	homeScreen       HomeScreen
	sendScreen       SendScreen

	notes *notify.Queue
	help  help.Model
}

func NewApp(store WalletStore, dir Directory, cfg *config.Config, log logging.Logger) *App {
	if log == nil {
		log = logging.Discard()
	}
	return &App{
		store:      store,
		dir:        dir,
		cfg:        cfg,
		log:        log,
		lockScreen: NewLockScreen(!store.HasWallet()),
		notes:      notify.NewQueue(cfg.NotificationLifetime),
		help:       help.New(),
	}
}

func (a App) Init() tea.Cmd {
	return a.lockScreen.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		if a.state == stateOnboarding {
			a.onboardingScreen, _ = a.onboardingScreen.Update(msg)
		}
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			a.store.Lock()
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.help.ShowAll = !a.help.ShowAll
			return a, nil
		case key.Matches(msg, keys.Dismiss):
			a.notes.DismissOldest()
			return a, nil
		}

		if a.state == stateMain {
			switch {
			case key.Matches(msg, keys.Lock):
				a.store.Lock()
				a.state = stateLocked
				a.lockScreen = NewLockScreen(false)
				a.log.Info(context.Background(), "wallet locked")
				return a, a.lockScreen.Init()
			case key.Matches(msg, keys.Tab) && !a.sendScreen.Confirming():
				a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
				return a, nil
			case key.Matches(msg, keys.Copy):
				return a, copyToClipboard(a.homeScreen.Address(), "Address")
			}
		}

	case UnlockRequestMsg:
		return a, unlock(a.store, msg.Passphrase)

	case UnlockFailMsg:
		a.log.Warn(context.Background(), "unlock failed", "error", msg.Err)
		if errors.Is(msg.Err, crypto.ErrDecryptionFailed) {
			a.lockScreen.SetError("Wrong passphrase")
		} else {
			a.lockScreen.SetError(msg.Err.Error())
		}
		return a, nil

	case UnlockSuccessMsg:
		a.log.Info(context.Background(), "wallet unlocked")
		return a, loadHome(a.store)

	case InitRequestMsg:
		return a.startOnboarding(msg.Passphrase)

	case HomeLoadedMsg:
		return a.enterMain(msg)

	case HomeLoadFailMsg:
		a.log.Error(context.Background(), "failed to load wallet", "error", msg.Err)
		a.lockScreen.SetError("Failed to load wallet: " + msg.Err.Error())
		return a, a.notify(notify.Options{Text: "Failed to load wallet: " + msg.Err.Error(), Type: notify.Error})

	case AccountCreatedMsg:
		a.onboardingScreen, _ = a.onboardingScreen.Update(msg)
		a.log.Info(context.Background(), "account created", "username", msg.Account.Username, "address", msg.Account.SafeAddress)
		return a, tea.Batch(
			a.notify(notify.Options{Text: "Welcome to Circles, @" + msg.Account.Username + "!", Type: notify.Success}),
			loadHome(a.store),
		)

	case AccountFailMsg:
		a.onboardingScreen, _ = a.onboardingScreen.Update(msg)
		a.log.Error(context.Background(), "account creation failed", "error", msg.Err)
		return a, a.notify(notify.Options{Text: onboarding.FailureText(msg.Err), Type: notify.Error})

	case DraftReadyMsg:
		a.log.Info(context.Background(), "payment drafted", "to", msg.Draft.To, "amount", msg.Draft.Amount)
		return a, a.notify(notify.Options{Text: "Payment prepared: " + msg.Draft.String(), Type: notify.Success})

	case StatusMsg:
		t := notify.Info
		if msg.IsError {
			t = notify.Error
		}
		return a, a.notify(notify.Options{Text: msg.Message, Type: t})

	case expireNotificationMsg:
		a.notes.Remove(msg.ID)
		return a, nil
	}

	var cmd tea.Cmd
	switch a.state {
	case stateLocked:
		a.lockScreen, cmd = a.lockScreen.Update(msg)
	case stateOnboarding:
		a.onboardingScreen, cmd = a.onboardingScreen.Update(msg)
	case stateMain:
		// Search timers and results keep flowing while another tab is shown.
		if _, isKey := msg.(tea.KeyMsg); !isKey || a.activeTab == TabSend {
			a.sendScreen, cmd = a.sendScreen.Update(msg)
		}
	}
	return a, cmd
}

func (a App) startOnboarding(passphrase string) (App, tea.Cmd) {
	session, err := onboarding.NewSession(
		onboarding.WithBudget(a.cfg.AttemptBudget),
		onboarding.WithUsernameVerification(),
	)
	if err != nil {
		a.log.Error(context.Background(), "failed to start onboarding", "error", err)
		a.lockScreen.SetError(err.Error())
		return a, nil
	}

	a.onboardingScreen = NewOnboardingScreen(session, a.dir, a.store, passphrase, a.log)
	a.onboardingScreen, _ = a.onboardingScreen.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
	a.state = stateOnboarding
	return a, a.onboardingScreen.Init()
}

func (a App) enterMain(msg HomeLoadedMsg) (App, tea.Cmd) {
	a.homeScreen = NewHomeScreen(msg)
	a.sendScreen = NewSendScreen(search.New(a.dir,
		search.WithDelay(a.cfg.SearchDebounce),
		search.WithLimit(a.cfg.MaxSearchResults),
		search.WithSelf(msg.Address),
		search.WithAddressValidator(wallet.IsAddress),
		search.WithLogger(a.log.With("component", "search")),
	))
	a.onboardingScreen = OnboardingScreen{}
	a.state = stateMain
	a.activeTab = TabHome
	return a, nil
}

func unlock(store WalletStore, passphrase string) tea.Cmd {
	return func() tea.Msg {
		if _, err := store.Unlock(passphrase); err != nil {
			return UnlockFailMsg{Err: err}
		}
		return UnlockSuccessMsg{}
	}
}

func loadHome(store WalletStore) tea.Cmd {
	return func() tea.Msg {
		address, err := store.Address()
		if err != nil {
			return HomeLoadFailMsg{Err: err}
		}
		acc, err := store.Account()
		if err != nil && !errors.Is(err, storage.ErrNoAccount) {
			return HomeLoadFailMsg{Err: err}
		}
		payout, err := store.LastPayout()
		if err != nil {
			return HomeLoadFailMsg{Err: err}
		}
		return HomeLoadedMsg{Address: address, Account: acc, LastPayout: payout}
	}
}

func copyToClipboard(text, label string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return StatusMsg{Message: "Failed to copy: " + err.Error(), IsError: true}
		}
		return StatusMsg{Message: label + " copied!"}
	}
}

// notify queues a notification and schedules its expiry.
func (a App) notify(opts notify.Options) tea.Cmd {
	n := a.notes.Add(opts)
	return tea.Tick(n.Lifetime, func(time.Time) tea.Msg {
		return expireNotificationMsg{ID: n.ID}
	})
}

func (a App) View() string {
	switch a.state {
	case stateLocked:
		return a.place(a.lockScreen.View())
	case stateOnboarding:
		return a.place(a.onboardingScreen.View())
	}

	var b strings.Builder
	b.WriteString(a.renderTabs())
	b.WriteString("\n\n")

	switch a.activeTab {
	case TabHome:
		b.WriteString(a.homeScreen.View())
	case TabSend:
		b.WriteString(a.sendScreen.View())
	}

	if n := a.renderNotifications(); n != "" {
		b.WriteString("\n\n")
		b.WriteString(n)
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(a.help.View(keys)))
	return b.String()
}

func (a App) place(content string) string {
	if n := a.renderNotifications(); n != "" {
		content = lipgloss.JoinVertical(lipgloss.Center, content, "", n)
	}
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}

func (a App) renderTabs() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if Tab(i) == a.activeTab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a App) renderNotifications() string {
	visible := a.notes.Visible()
	if len(visible) == 0 {
		return ""
	}
	lines := make([]string, len(visible))
	for i, n := range visible {
		c := notificationColor(n.Type)
		lines[i] = notificationStyle.BorderForeground(c).Foreground(c).Render(n.Text)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (a App) Notifications() []notify.Notification { return a.notes.Visible() }
func (a App) ActiveTab() Tab { return a.activeTab }
