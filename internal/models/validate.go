package models

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9]{3,24}$`)

var (
	ErrInvalidUsername  = errors.New("username must be 3-24 letters or digits")
	ErrInvalidEmail     = errors.New("email address is not valid")
	ErrInvalidAvatarURL = errors.New("avatar must be an http(s) URL")
	ErrMissingAddress   = errors.New("safe address is required")
)

func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// ValidEmail accepts a bare address only, no display name.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ValidAvatarURL accepts an empty string, the avatar being optional.
func ValidAvatarURL(s string) bool {
	if s == "" {
		return true
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r AccountRequest) Validate() error {
	switch {
	case !ValidUsername(r.Username):
		return ErrInvalidUsername
	case !ValidEmail(r.Email):
		return ErrInvalidEmail
	case !ValidAvatarURL(r.AvatarURL):
		return ErrInvalidAvatarURL
	case r.SafeAddress == "":
		return ErrMissingAddress
	}
	return nil
}

func (r AccountRequest) String() string {
	return fmt.Sprintf("%s <%s> %s", r.Username, r.Email, r.SafeAddress)
}
