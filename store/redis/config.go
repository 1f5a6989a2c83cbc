// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package redis

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/kvcoord/internal/validation"
)

// the hash tag keeps every key of the store in one cluster slot, which the
// commit script requires
const defaultPrefix = "{kvcoord}:"

// Config holds configuration for the Redis backing store.
type Config struct {
	// Context specifies the execution context used while connecting.
	// If nil, context.Background() will be used.
	Context context.Context
	// Addrs are the Redis addresses. A single address connects to a
	// standalone server, several to a cluster. Required.
	Addrs []string
	// Username and Password authenticate the client.
	Username string
	Password string
	// DB selects the database of a standalone server.
	DB int
	// Prefix is prepended to every key. It must contain a hash tag when the
	// store runs against a cluster. Defaults to {kvcoord}:.
	Prefix string
	// Timeout bounds every read and commit round trip. Defaults to 5s.
	Timeout time.Duration
	// TLS configures the client transport security.
	TLS *tls.Config
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(len(c.Addrs) > 0, "Addrs must not be empty").
		AddAssertion(c.DB >= 0, "DB must not be negative").
		AddValidator(validation.NewEmptyStringValidator("Prefix", c.Prefix)).
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultPrefix
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}
