// Package onboarding wires the recovery phrase, the challenge engines and the
// step gate into the account creation flow.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"circles/internal/challenge"
	"circles/internal/core"
	"circles/internal/flow"
	"circles/internal/models"
	"circles/internal/storage"
	"circles/internal/wallet"
)

// Session owns the key and phrase for one run of the flow. The phrase is
// derived once and reused by every step until the user asks for new words.
type Session struct {
	mu     sync.Mutex
	key    wallet.PrivateKey
	phrase wallet.Phrase

	generate       func() (wallet.PrivateKey, error)
	budget         int
	rng            *rand.Rand
	verifyUsername bool

	challenges []*challenge.Engine

	// created is the directory's record once CreateAccount has succeeded.
	created *models.Account
}

type Option func(*Session)

func WithBudget(n int) Option {
	return func(s *Session) {
		s.budget = n
	}
}

func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rng = r
	}
}

func WithKeyGenerator(fn func() (wallet.PrivateKey, error)) Option {
	return func(s *Session) {
		s.generate = fn
	}
}

// WithUsernameVerification requires the directory to confirm the username is
// free before the username step can be left.
func WithUsernameVerification() Option {
	return func(s *Session) {
		s.verifyUsername = true
	}
}

func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		generate: wallet.GenerateKey,
		budget:   challenge.DefaultBudget,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.derive(); err != nil {
		return nil, err
	}

	var engineOpts []challenge.Option
	engineOpts = append(engineOpts, challenge.WithBudget(s.budget))
	if s.rng != nil {
		engineOpts = append(engineOpts, challenge.WithRand(s.rng))
	}
	for range 2 {
		s.challenges = append(s.challenges, challenge.New(s.phrase.Len(), engineOpts...))
	}
	return s, nil
}

func (s *Session) derive() error {
	key, err := s.generate()
	if err != nil {
		return fmt.Errorf("failed to generate wallet key: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet.Zero(s.key[:])
	s.key = key
	s.phrase = wallet.ToPhrase(key)
	return nil
}

// Steps returns the flow pages in order.
func (s *Session) Steps() []flow.Step {
	return []flow.Step{
		Step{Kind: KindUsername, verifyUsername: s.verifyUsername},
		Step{Kind: KindEmail},
		Step{Kind: KindPrimer},
		Step{Kind: KindPhrase},
		Step{Kind: KindChallenge, Challenge: s.challenges[0]},
		Step{Kind: KindChallenge, Challenge: s.challenges[1]},
		Step{Kind: KindAvatar},
	}
}

// Renew derives a new key and phrase and re-arms every challenge against it.
func (s *Session) Renew() (wallet.Phrase, error) {
	return s.renew(nil)
}

func (s *Session) renew(skip *challenge.Engine) (wallet.Phrase, error) {
	if err := s.derive(); err != nil {
		return nil, err
	}
	phrase := s.Phrase()
	for _, e := range s.challenges {
		if e != skip {
			e.Reset(phrase.Len())
		}
	}
	return phrase, nil
}

// renewer re-arms every engine except the one asking, which resets itself.
type renewer struct {
	session *Session
	caller  *challenge.Engine
}

func (r renewer) Renew() (wallet.Phrase, error) {
	return r.session.renew(r.caller)
}

// NewWords handles "I need new magic words" from a challenge step: the phrase
// is replaced, the confirmations are withdrawn and the flow goes back to the
// primer.
func NewWords[T any](s *Session, c *flow.Controller[T], e *challenge.Engine) error {
	if _, err := e.RequestNewPhrase(renewer{session: s, caller: e}); err != nil {
		return err
	}
	c.UpdateValues(ResetAcks())
	c.JumpTo(IndexPrimer)
	return nil
}

func (s *Session) Phrase() wallet.Phrase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.phrase)
}

func (s *Session) Address() (string, error) {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()
	return key.Address()
}

func (s *Session) Challenges() []*challenge.Engine {
	return s.challenges
}

// AccountCreator registers the account with the directory.
type AccountCreator interface {
	CreateAccount(ctx context.Context, req models.AccountRequest) (*models.Account, error)
}

// WalletSaver persists the key and account locally once the directory has
// accepted them.
type WalletSaver interface {
	CreateWallet(passphrase string, key wallet.PrivateKey) error
	SaveAccount(acc models.Account) error
	Address() (string, error)
}

// Submission is a snapshot of everything needed to create the account, taken
// when the user finishes the flow.
type Submission struct {
	Request models.AccountRequest
	key     wallet.PrivateKey
	session *Session
}

func (s *Session) Submit(values flow.Values) (Submission, error) {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()

	address, err := key.Address()
	if err != nil {
		return Submission{}, err
	}
	return Submission{
		Request: models.AccountRequest{
			Username:    values[FieldUsername],
			Email:       values[FieldEmail],
			AvatarURL:   values[FieldAvatarURL],
			SafeAddress: address,
		},
		key:     key,
		session: s,
	}, nil
}

func (s *Session) account(address string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created == nil || !models.SameAddress(s.created.SafeAddress, address) {
		return nil
	}
	acc := *s.created
	return &acc
}

func (s *Session) remember(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = &acc
}

// Run creates the account remotely, then stores the encrypted key and the
// account locally. A retry after a local failure reuses the account the
// directory already accepted and a wallet already saved for the same address.
func (sub Submission) Run(ctx context.Context, creator AccountCreator, saver WalletSaver, passphrase string) (*models.Account, error) {
	var acc *models.Account
	if sub.session != nil {
		acc = sub.session.account(sub.Request.SafeAddress)
	}
	if acc == nil {
		created, err := creator.CreateAccount(ctx, sub.Request)
		if err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		acc = created
		if sub.session != nil {
			sub.session.remember(*acc)
		}
	}

	if err := saver.CreateWallet(passphrase, sub.key); err != nil {
		if !errors.Is(err, storage.ErrWalletExists) || !sub.walletSaved(saver) {
			return nil, fmt.Errorf("failed to save wallet: %w", err)
		}
	}
	if err := saver.SaveAccount(*acc); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	return acc, nil
}

func (sub Submission) walletSaved(saver WalletSaver) bool {
	addr, err := saver.Address()
	return err == nil && models.SameAddress(addr, sub.Request.SafeAddress)
}

// FormatError renders err for the signup failure notification.
func FormatError(err error) string {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Code
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// FailureText is the notification shown when account creation fails.
func FailureText(err error) string {
	return "Signup failed: " + FormatError(err)
}
