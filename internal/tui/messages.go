package tui

import (
	"time"

	"circles/internal/models"
	"circles/internal/payment"
)

type UnlockRequestMsg struct {
	Passphrase string
}

// InitRequestMsg starts onboarding with the passphrase that will protect the
// new wallet.
type InitRequestMsg struct {
	Passphrase string
}

type UnlockSuccessMsg struct{}

type UnlockFailMsg struct {
	Err error
}

type HomeLoadedMsg struct {
	Address    string
	Account    *models.Account
	LastPayout time.Time
}

type HomeLoadFailMsg struct {
	Err error
}

type UsernameCheckedMsg struct {
	Username  string
	Available bool
	Err       error
}

type AccountCreatedMsg struct {
	Account models.Account
}

type AccountFailMsg struct {
	Err error
}

type DraftReadyMsg struct {
	Draft payment.Draft
}

type StatusMsg struct {
	Message string
	IsError bool
}

type expireNotificationMsg struct {
	ID string
}
