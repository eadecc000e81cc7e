package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"circles/internal/models"

	bolt "go.etcd.io/bbolt"
)

var (
	usersBucket     = []byte("users")
	addressesBucket = []byte("addresses")
)

var (
	ErrUsernameTaken = errors.New("username is already taken")
	ErrAddressTaken  = errors.New("safe address is already registered")
	ErrUserNotFound  = errors.New("user not found")
)

// Directory is the server-side registry of accounts. Users are keyed by
// lower-cased username; a second bucket indexes safe addresses.
type Directory struct {
	db *bolt.DB
}

func OpenDirectory(dbPath string) (*Directory, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initBuckets(db, metaBucket, usersBucket, addressesBucket); err != nil {
		db.Close()
		return nil, err
	}
	return &Directory{db: db}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

func userKey(username string) []byte {
	return []byte(strings.ToLower(username))
}

func addressKey(address string) []byte {
	return []byte(strings.ToLower(address))
}

// Register stores acc unless its username or safe address is already in use.
func (d *Directory) Register(acc models.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to serialize account: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(usersBucket)
		addrs := tx.Bucket(addressesBucket)

		if users.Get(userKey(acc.Username)) != nil {
			return ErrUsernameTaken
		}
		if addrs.Get(addressKey(acc.SafeAddress)) != nil {
			return ErrAddressTaken
		}
		if err := users.Put(userKey(acc.Username), data); err != nil {
			return err
		}
		return addrs.Put(addressKey(acc.SafeAddress), userKey(acc.Username))
	})
}

func (d *Directory) Get(username string) (*models.Account, error) {
	var acc models.Account
	err := d.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(usersBucket).Get(userKey(username))
		if data == nil {
			return ErrUserNotFound
		}
		return json.Unmarshal(data, &acc)
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (d *Directory) UsernameTaken(username string) bool {
	var taken bool
	d.db.View(func(tx *bolt.Tx) error {
		taken = tx.Bucket(usersBucket).Get(userKey(username)) != nil
		return nil
	})
	return taken
}

// Search returns up to limit identities whose username contains query,
// case-insensitively. Prefix matches are scanned first using the cursor.
func (d *Directory) Search(query string, limit int) ([]models.Identity, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}

	var out []models.Identity
	seen := map[string]bool{}
	add := func(k, v []byte) error {
		var acc models.Account
		if err := json.Unmarshal(v, &acc); err != nil {
			return err
		}
		seen[string(k)] = true
		out = append(out, acc.Identity())
		return nil
	}

	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(usersBucket).Cursor()
		prefix := []byte(q)
		for k, v := c.Seek(prefix); k != nil && len(out) < limit && strings.HasPrefix(string(k), q); k, v = c.Next() {
			if err := add(k, v); err != nil {
				return err
			}
		}
		for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
			if seen[string(k)] || !strings.Contains(string(k), q) {
				continue
			}
			if err := add(k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search directory: %w", err)
	}
	return out, nil
}
