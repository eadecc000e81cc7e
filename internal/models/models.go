package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is a directory entry resolving a username to a safe address.
type Identity struct {
	SafeAddress string `json:"safe_address"`
	Username    string `json:"username,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SameAddress compares two hex addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// AccountRequest is what the onboarding flow submits to create an account.
type AccountRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	SafeAddress string `json:"safe_address"`
}

type Account struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	SafeAddress string    `json:"safe_address"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewAccount(req AccountRequest) Account {
	return Account{
		ID:          uuid.NewString(),
		Username:    req.Username,
		Email:       req.Email,
		AvatarURL:   req.AvatarURL,
		SafeAddress: req.SafeAddress,
		CreatedAt:   time.Now().UTC(),
	}
}

func (a Account) Identity() Identity {
	return Identity{
		SafeAddress: a.SafeAddress,
		Username:    a.Username,
		AvatarURL:   a.AvatarURL,
	}
}

// Service is a directory service found on the local network.
type Service struct {
	Name string
	Host string
	Port int
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
