// Package config holds the per-IP budgets for each endpoint class. Budgets
// are written as "requests/window", for example "3/5m".
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"warden/internal/ratelimit/models"
)

type Limit struct {
	Requests int
	Window   time.Duration
}

// ParseLimit reads "N/duration". A bare unit such as "10/m" means one of it.
func ParseLimit(s string) (Limit, error) {
	n, w, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Limit{}, fmt.Errorf("rate limit %q: want requests/window", s)
	}
	requests, err := strconv.Atoi(n)
	if err != nil || requests <= 0 {
		return Limit{}, fmt.Errorf("rate limit %q: requests must be a positive integer", s)
	}
	if w != "" && (w[0] < '0' || w[0] > '9') {
		w = "1" + w
	}
	window, err := time.ParseDuration(w)
	if err != nil || window <= 0 {
		return Limit{}, fmt.Errorf("rate limit %q: window must be a positive duration", s)
	}
	return Limit{Requests: requests, Window: window}, nil
}

// UnmarshalText lets env decoding fill a Limit directly.
func (l *Limit) UnmarshalText(text []byte) error {
	parsed, err := ParseLimit(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Requests, l.Window)
}

type Config struct {
	limits map[models.EndpointClass]Limit
}

func DefaultConfig() *Config {
	return &Config{limits: map[models.EndpointClass]Limit{
		models.ClassCredential: {Requests: 3, Window: 5 * time.Minute},
		models.ClassVerify:     {Requests: 10, Window: time.Minute},
		models.ClassAdmin:      {Requests: 20, Window: time.Minute},
	}}
}

// With overrides the budget of class. Zero limits are ignored.
func (c *Config) With(class models.EndpointClass, l Limit) *Config {
	if l.Requests > 0 && l.Window > 0 {
		c.limits[class] = l
	}
	return c
}

// For returns the budget of class. Unknown classes get the credential budget,
// the strictest one.
func (c *Config) For(class models.EndpointClass) Limit {
	if l, ok := c.limits[class]; ok {
		return l
	}
	return c.limits[models.ClassCredential]
}
