package notify

import (
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
)

// Level is the severity of a notice.
type Level int

const (
	Info Level = iota
	Success
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

var lifetimes = map[Level]time.Duration{
	Info:    5 * time.Second,
	Success: 5 * time.Second,
	Warn:    8 * time.Second,
	Error:   10 * time.Second,
}

const historySize = 50

// Notice is a user-visible notification.
type Notice struct {
	Text    string
	Level   Level
	At      time.Time
	Expires time.Time
}

// Center holds the current notice, a bounded history and a watch channel.
type Center struct {
	mu      sync.RWMutex
	current Notice
	history []Notice
	watchCh chan Notice
	bus     *bus.Bus
	now     func() time.Time
}

// New creates a notification centre.
func New() *Center {
	return &Center{
		watchCh: make(chan Notice, 8),
		now:     time.Now,
	}
}

// Info posts an info notice.
func (c *Center) Info(msg string) { c.post(msg, Info) }

// Success posts a success notice.
func (c *Center) Success(msg string) { c.post(msg, Success) }

// Warn posts a warning notice.
func (c *Center) Warn(msg string) { c.post(msg, Warn) }

// Error posts an error notice.
func (c *Center) Error(msg string) { c.post(msg, Error) }

func (c *Center) post(msg string, level Level) {
	now := c.now()
	n := Notice{
		Text:    msg,
		Level:   level,
		At:      now,
		Expires: now.Add(lifetimes[level]),
	}
	c.mu.Lock()
	c.current = n
	c.history = append(c.history, n)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.mu.Unlock()
	select {
	case c.watchCh <- n:
	default:
	}
	if b := c.publisher(); b != nil {
		b.Emit(bus.NoticePosted, n)
	}
}

// PublishTo makes every later notice also go out on b as a bus.NoticePosted event.
func (c *Center) PublishTo(b *bus.Bus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus = b
}

func (c *Center) publisher() *bus.Bus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bus
}

// Current returns the active notice, or nil once it has expired.
func (c *Center) Current() *Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current.Text == "" || c.now().After(c.current.Expires) {
		return nil
	}
	n := c.current
	return &n
}

// History returns a copy of recent notices, oldest first.
func (c *Center) History() []Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Notice, len(c.history))
	copy(out, c.history)
	return out
}

// Last returns the most recent notice regardless of expiry.
func (c *Center) Last() (Notice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return Notice{}, false
	}
	return c.history[len(c.history)-1], true
}

// Watch returns a channel that receives notices as they are posted.
func (c *Center) Watch() <-chan Notice {
	return c.watchCh
}
