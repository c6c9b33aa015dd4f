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

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
)

const nopType = "nop"

type nopRouter struct {
	logger kitlog.Logger
}

// NewNop returns a router that drops all routed stanzas.
func NewNop(logger kitlog.Logger) Router {
	return &nopRouter{logger: logger}
}

func (r *nopRouter) Route(_ context.Context, stanza stravaganza.Stanza) error {
	level.Debug(r.logger).Log("msg", "dropped stanza", "from", stanza.Attribute(stravaganza.From), "to", stanza.Attribute(stravaganza.To))
	return nil
}

func (r *nopRouter) Start(_ context.Context) error { return nil }

func (r *nopRouter) Stop(_ context.Context) error { return nil }
