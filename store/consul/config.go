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

package consul

import (
	"context"
	"strings"
	"time"

	"github.com/tochemey/kvcoord/internal/validation"
)

const (
	defaultAddress = "127.0.0.1:8500"
	defaultPrefix  = "kvcoord"
)

// Config defines the configuration options for the Consul backing store.
type Config struct {
	// Context specifies the execution context for Consul operations.
	// If nil, context.Background() will be used.
	Context context.Context
	// Address is the address of the Consul agent to connect to.
	// Default: "127.0.0.1:8500"
	Address string
	// Datacenter specifies the Consul datacenter to use.
	// If empty, the agent's default datacenter is used.
	Datacenter string
	// Token is the Consul ACL token used for authenticated requests.
	Token string
	// Prefix is the KV folder holding every key of the store.
	// Default: "kvcoord"
	Prefix string
	// Timeout specifies the maximum duration for Consul requests.
	// Default: 10s
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize ensures the configuration is valid and sets defaults.
func (config *Config) Sanitize() {
	if config.Context == nil {
		config.Context = context.Background()
	}

	if strings.TrimSpace(config.Address) == "" {
		config.Address = defaultAddress
	}

	config.Prefix = strings.Trim(strings.TrimSpace(config.Prefix), "/")
	if config.Prefix == "" {
		config.Prefix = defaultPrefix
	}

	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (config *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Address", config.Address)).
		AddValidator(validation.NewEmptyStringValidator("Prefix", config.Prefix)).
		AddValidator(validation.NewPositiveDurationValidator("Timeout", config.Timeout)).
		Validate()
}
