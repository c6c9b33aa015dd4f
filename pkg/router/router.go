// Copyright 2024 The vireo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
)

// Router defines stanza routing interface towards remote endpoints.
// Routing is best effort: a delivery failure never affects the state
// that originated the stanza.
type Router interface {
	// Route routes stanza towards its destination endpoint.
	Route(ctx context.Context, stanza stravaganza.Stanza) error

	// Start starts router.
	Start(ctx context.Context) error

	// Stop stops router.
	Stop(ctx context.Context) error
}

// Config contains router configuration parameters.
type Config struct {
	// Type specifies router type (nop or gateway).
	Type string `fig:"type" default:"nop"`

	// Gateway contains delivery gateway configuration.
	Gateway GatewayConfig `fig:"gateway"`
}

// New returns an initialized Router derived from cfg configuration.
func New(cfg Config, logger kitlog.Logger) (Router, error) {
	switch cfg.Type {
	case nopType:
		return NewNop(logger), nil
	case gatewayType:
		return NewGateway(cfg.Gateway, logger), nil
	default:
		return nil, fmt.Errorf("router: unrecognized router type: %s", cfg.Type)
	}
}
