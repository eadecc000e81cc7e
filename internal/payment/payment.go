// Package payment validates the fields of an outgoing transfer draft.
package payment

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const MaxNoteLength = 100

var noteRe = regexp.MustCompile(`^[\w\s!?:\-.,_*%@#&+)(]+$`)

var (
	ErrInvalidAmount = errors.New("amount must be a number greater than or equal to zero")
	ErrInvalidNote   = fmt.Errorf("note may hold up to %d letters, digits, spaces and simple punctuation", MaxNoteLength)
)

// ValidNote reports whether note is acceptable as a payment reference.
func ValidNote(note string) bool {
	return utf8.RuneCountInString(note) <= MaxNoteLength && noteRe.MatchString(note)
}

func ValidAmount(s string) bool {
	_, err := ParseAmount(s)
	return err == nil
}

func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// Draft is a transfer the user has confirmed but that has not been submitted.
type Draft struct {
	To     string
	Amount float64
	Note   string
}

func NewDraft(to, amount, note string) (Draft, error) {
	v, err := ParseAmount(amount)
	if err != nil {
		return Draft{}, err
	}
	if note != "" && !ValidNote(note) {
		return Draft{}, ErrInvalidNote
	}
	return Draft{To: to, Amount: v, Note: note}, nil
}

func (d Draft) String() string {
	s := strconv.FormatFloat(d.Amount, 'f', -1, 64) + " CRC to " + d.To
	if d.Note != "" {
		s += " (" + d.Note + ")"
	}
	return s
}
