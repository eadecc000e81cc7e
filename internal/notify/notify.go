// Package notify keeps the queue of transient user-facing notifications.
package notify

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

const DefaultLifetime = 5 * time.Second

type Type string

const (
	Success Type = "success"
	Info    Type = "info"
	Warning Type = "warning"
	Error   Type = "error"
)

type Notification struct {
	ID        string
	Text      string
	Type      Type
	Lifetime  time.Duration
	CreatedAt time.Time
	Dismissed bool
}

// Options describe a notification to add. Zero Type means Info and zero
// Lifetime means the queue default.
type Options struct {
	Text     string
	Type     Type
	Lifetime time.Duration
}

type Queue struct {
	lifetime time.Duration
	now      func() time.Time
	items    []Notification
}

func NewQueue(lifetime time.Duration) *Queue {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Queue{lifetime: lifetime, now: time.Now}
}

func (q *Queue) Add(opts Options) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Text:      opts.Text,
		Type:      opts.Type,
		Lifetime:  opts.Lifetime,
		CreatedAt: q.now(),
	}
	if n.Type == "" {
		n.Type = Info
	}
	if n.Lifetime <= 0 {
		n.Lifetime = q.lifetime
	}
	q.items = append(q.items, n)
	return n
}

func (q *Queue) Success(format string, args ...any) Notification {
	return q.Add(Options{Text: fmt.Sprintf(format, args...), Type: Success})
}

func (q *Queue) Error(format string, args ...any) Notification {
	return q.Add(Options{Text: fmt.Sprintf(format, args...), Type: Error})
}

// Dismiss hides a notification without forgetting it.
func (q *Queue) Dismiss(id string) bool {
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].Dismissed = true
			return true
		}
	}
	return false
}

func (q *Queue) Remove(id string) bool {
	n := len(q.items)
	q.items = slices.DeleteFunc(q.items, func(it Notification) bool { return it.ID == id })
	return len(q.items) != n
}

func (q *Queue) RemoveAll() {
	q.items = nil
}

// DismissOldest hides the oldest visible notification.
func (q *Queue) DismissOldest() bool {
	for i := range q.items {
		if !q.items[i].Dismissed {
			q.items[i].Dismissed = true
			return true
		}
	}
	return false
}

// Visible returns the notifications that are not dismissed, oldest first.
func (q *Queue) Visible() []Notification {
	out := make([]Notification, 0, len(q.items))
	for _, it := range q.items {
		if !it.Dismissed {
			out = append(out, it)
		}
	}
	return out
}

func (q *Queue) All() []Notification {
	return slices.Clone(q.items)
}

func (q *Queue) Len() int {
	return len(q.items)
}
