package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"circles/internal/crypto"
	"circles/internal/models"
	"circles/internal/wallet"

	bolt "go.etcd.io/bbolt"
)

var (
	metaBucket    = []byte("meta")
	walletBucket  = []byte("wallet")
	accountBucket = []byte("account")
	cacheBucket   = []byte("cache")

	keySchemaVersion = []byte("schema_version")
	keyWalletSalt    = []byte("salt")
	keyWalletKeyEnc  = []byte("key_enc")
	keyWalletAddress = []byte("address")
	keyAccount       = []byte("account")
	keyLastPayout    = []byte("last_payout")
)

const schemaVersion = "1"

var (
	ErrNoWallet     = errors.New("no wallet stored")
	ErrWalletExists = errors.New("a wallet is already stored")
	ErrLocked       = errors.New("wallet is locked")
	ErrNoAccount    = errors.New("no account stored")
)

type Store struct {
	db     *bolt.DB
	dbPath string
	params crypto.Params

	mu  sync.RWMutex
	key *wallet.PrivateKey
}

type Option func(*Store)

// WithKDFParams overrides the passphrase key derivation cost.
func WithKDFParams(p crypto.Params) Option {
	return func(s *Store) {
		s.params = p
	}
}

func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, dbPath: dbPath, params: crypto.DefaultParams}
	for _, opt := range opts {
		opt(s)
	}

	if err := initBuckets(db, metaBucket, walletBucket, accountBucket, cacheBucket); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func openDB(dbPath string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func initBuckets(db *bolt.DB, buckets ...[]byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return nil
		}
		if meta.Get(keySchemaVersion) == nil {
			if err := meta.Put(keySchemaVersion, []byte(schemaVersion)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	s.Lock()
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) HasWallet() bool {
	var ok bool
	s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(walletBucket).Get(keyWalletKeyEnc) != nil
		return nil
	})
	return ok
}

// CreateWallet encrypts key under passphrase and stores it. The store is
// left unlocked with key.
func (s *Store) CreateWallet(passphrase string, key wallet.PrivateKey) error {
	address, err := key.Address()
	if err != nil {
		return err
	}

	salt, keyEnc, err := s.params.Seal(passphrase, key[:])
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(walletBucket)
		if b.Get(keyWalletKeyEnc) != nil {
			return ErrWalletExists
		}
		if err := b.Put(keyWalletSalt, salt); err != nil {
			return err
		}
		if err := b.Put(keyWalletKeyEnc, keyEnc); err != nil {
			return err
		}
		return b.Put(keyWalletAddress, []byte(address))
	})
	if err != nil {
		return fmt.Errorf("failed to store wallet: %w", err)
	}

	s.setKey(key)
	return nil
}

func (s *Store) Unlock(passphrase string) (wallet.PrivateKey, error) {
	var salt, keyEnc []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(walletBucket)
		salt = copyBytes(b.Get(keyWalletSalt))
		keyEnc = copyBytes(b.Get(keyWalletKeyEnc))
		return nil
	})
	if err != nil {
		return wallet.PrivateKey{}, fmt.Errorf("failed to read wallet: %w", err)
	}
	if salt == nil || keyEnc == nil {
		return wallet.PrivateKey{}, ErrNoWallet
	}

	plaintext, err := s.params.Open(passphrase, salt, keyEnc)
	if err != nil {
		return wallet.PrivateKey{}, err
	}
	defer wallet.Zero(plaintext)

	var key wallet.PrivateKey
	if len(plaintext) != len(key) {
		return key, fmt.Errorf("%w: stored key has %d bytes", wallet.ErrInvalidKey, len(plaintext))
	}
	copy(key[:], plaintext)

	s.setKey(key)
	return key, nil
}

func (s *Store) setKey(key wallet.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = &key
}

func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		wallet.Zero(s.key[:])
		s.key = nil
	}
}

func (s *Store) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

func (s *Store) PrivateKey() (wallet.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return wallet.PrivateKey{}, ErrLocked
	}
	return *s.key, nil
}

// Address returns the stored safe address. It does not require unlocking.
func (s *Store) Address() (string, error) {
	var addr string
	err := s.db.View(func(tx *bolt.Tx) error {
		addr = string(tx.Bucket(walletBucket).Get(keyWalletAddress))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read wallet: %w", err)
	}
	if addr == "" {
		return "", ErrNoWallet
	}
	return addr, nil
}

// Wipe removes the wallet, the account and cached values.
func (s *Store) Wipe() error {
	s.Lock()
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{walletBucket, accountBucket, cacheBucket} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveAccount(acc models.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to serialize account: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountBucket).Put(keyAccount, data)
	})
}

func (s *Store) Account() (*models.Account, error) {
	var acc models.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(accountBucket).Get(keyAccount)
		if data == nil {
			return ErrNoAccount
		}
		return json.Unmarshal(data, &acc)
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// LastPayout returns when the last payout was recorded, or the unix epoch if
// none was. Values written by older clients as unix milliseconds are
// converted and rewritten.
func (s *Store) LastPayout() (time.Time, error) {
	var raw string
	s.db.View(func(tx *bolt.Tx) error {
		raw = string(tx.Bucket(cacheBucket).Get(keyLastPayout))
		return nil
	})
	if raw == "" {
		return time.Unix(0, 0).UTC(), nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		if err := s.SetLastPayout(t); err != nil {
			return time.Time{}, err
		}
		return t, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last payout %q: %w", raw, err)
	}
	return t, nil
}

func (s *Store) SetLastPayout(t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(keyLastPayout, []byte(t.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *Store) RemoveLastPayout() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Delete(keyLastPayout)
	})
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
