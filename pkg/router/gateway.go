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
	"net/http"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/sony/gobreaker"
)

const gatewayType = "gateway"

// GatewayConfig contains delivery gateway configuration parameters.
type GatewayConfig struct {
	// URL is the gateway endpoint to which stanzas are posted.
	URL string `fig:"url"`

	// AuthToken is injected as Authorization header on every request.
	AuthToken string `fig:"auth_token"`

	// RequestTimeout is the per request timeout value.
	RequestTimeout time.Duration `fig:"request_timeout" default:"10s"`
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type gatewayRouter struct {
	cfg    GatewayConfig
	cb     *gobreaker.CircuitBreaker
	client httpClient
	logger kitlog.Logger
}

// NewGateway returns a router that posts routed stanzas to an
// external delivery gateway, guarded by a circuit breaker.
func NewGateway(cfg GatewayConfig, logger kitlog.Logger) Router {
	return &gatewayRouter{
		cfg:    cfg,
		cb:     gobreaker.NewCircuitBreaker(gobreaker.Settings{}),
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

func (r *gatewayRouter) Route(ctx context.Context, stanza stravaganza.Stanza) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, strings.NewReader(stanza.String()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml")
	if len(r.cfg.AuthToken) > 0 {
		req.Header.Set("Authorization", r.cfg.AuthToken)
	}
	_, err = r.cb.Execute(func() (interface{}, error) {
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("router: gateway response status code: %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

func (r *gatewayRouter) Start(_ context.Context) error {
	level.Info(r.logger).Log("msg", "started gateway router", "url", r.cfg.URL)
	return nil
}

func (r *gatewayRouter) Stop(_ context.Context) error {
	level.Info(r.logger).Log("msg", "stopped gateway router")
	return nil
}
