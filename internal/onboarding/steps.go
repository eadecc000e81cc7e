package onboarding

import (
	"fmt"
	"strings"

	"circles/internal/challenge"
	"circles/internal/flow"
	"circles/internal/models"
)

type Kind int

const (
	KindUsername Kind = iota
	KindEmail
	KindPrimer
	KindPhrase
	KindChallenge
	KindAvatar
)

func (k Kind) String() string {
	switch k {
	case KindUsername:
		return "username"
	case KindEmail:
		return "email"
	case KindPrimer:
		return "primer"
	case KindPhrase:
		return "phrase"
	case KindChallenge:
		return "challenge"
	case KindAvatar:
		return "avatar"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value keys shared by all steps.
const (
	FieldUsername         = "username"
	FieldUsernameVerified = "username_verified"
	FieldEmail            = "email"
	FieldPrimerAck        = "primer_ack"
	FieldPhraseSaved      = "phrase_saved"
	FieldAvatarURL        = "avatar_url"
)

// Checked is the value stored for a ticked checkbox.
const Checked = "yes"

// Positions of the steps in Steps().
const (
	IndexUsername = iota
	IndexEmail
	IndexPrimer
	IndexPhrase
	IndexChallenge1
	IndexChallenge2
	IndexAvatar
)

// Step is one page of the onboarding flow. Challenge steps carry their own
// engine; every other kind is judged from the accumulated values alone.
type Step struct {
	Kind      Kind
	Challenge *challenge.Engine

	verifyUsername bool
}

func (s Step) Valid(v flow.Values) bool {
	switch s.Kind {
	case KindUsername:
		name := v[FieldUsername]
		if !models.ValidUsername(name) {
			return false
		}
		return !s.verifyUsername || v[FieldUsernameVerified] == strings.ToLower(name)
	case KindEmail:
		return models.ValidEmail(v[FieldEmail])
	case KindPrimer:
		return v[FieldPrimerAck] == Checked
	case KindPhrase:
		return v[FieldPhraseSaved] == Checked
	case KindChallenge:
		return s.Challenge != nil && s.Challenge.CanAdvance()
	case KindAvatar:
		return models.ValidAvatarURL(v[FieldAvatarURL])
	}
	return false
}

// HidesBack keeps the user from peeking at the phrase mid-challenge.
func (s Step) HidesBack() bool {
	return s.Kind == KindChallenge
}

// NeedsVerification reports whether the username in v still has to be
// confirmed free by the directory before the step can be left.
func (s Step) NeedsVerification(v flow.Values) bool {
	return s.Kind == KindUsername && s.verifyUsername &&
		models.ValidUsername(v[FieldUsername]) &&
		v[FieldUsernameVerified] != strings.ToLower(v[FieldUsername])
}

// ResetAcks clears the checkboxes that confirm the phrase was recorded.
func ResetAcks() flow.Values {
	return flow.Values{FieldPrimerAck: "", FieldPhraseSaved: ""}
}

func Toggle(v flow.Values, field string) flow.Values {
	if v[field] == Checked {
		return flow.Values{field: ""}
	}
	return flow.Values{field: Checked}
}
