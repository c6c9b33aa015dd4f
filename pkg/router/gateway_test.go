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
	"io/ioutil"
	"net/http"
	"strings"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	xmpputil "github.com/vireo-im/vireo/pkg/util/xmpp"
)

type httpClientMock struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *httpClientMock) Do(req *http.Request) (*http.Response, error) { return m.DoFunc(req) }

func TestGatewayRouter_Route(t *testing.T) {
	// given
	var reqBody string
	cl := &httpClientMock{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			b, _ := ioutil.ReadAll(req.Body)
			reqBody = string(b)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       ioutil.NopCloser(strings.NewReader("")),
			}, nil
		},
	}
	r := &gatewayRouter{
		cfg:    GatewayConfig{URL: "http://localhost:8090"},
		cb:     gobreaker.NewCircuitBreaker(gobreaker.Settings{}),
		client: cl,
		logger: kitlog.NewNopLogger(),
	}

	// when
	fromJID, _ := jid.NewWithString("ortuman@vireo.im", true)
	toJID, _ := jid.NewWithString("noelia@jabber.org", true)
	pr := xmpputil.MakePresence(fromJID, toJID, stravaganza.SubscribeType, nil)

	err := r.Route(context.Background(), pr)

	// then
	require.NoError(t, err)
	require.Contains(t, reqBody, `to="noelia@jabber.org"`)
	require.Contains(t, reqBody, `type="subscribe"`)
}

func TestGatewayRouter_RouteError(t *testing.T) {
	// given
	cl := &httpClientMock{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       ioutil.NopCloser(strings.NewReader("")),
			}, nil
		},
	}
	r := &gatewayRouter{
		cfg:    GatewayConfig{URL: "http://localhost:8090"},
		cb:     gobreaker.NewCircuitBreaker(gobreaker.Settings{}),
		client: cl,
		logger: kitlog.NewNopLogger(),
	}

	// when
	fromJID, _ := jid.NewWithString("ortuman@vireo.im", true)
	toJID, _ := jid.NewWithString("noelia@jabber.org", true)
	pr := xmpputil.MakePresence(fromJID, toJID, stravaganza.UnsubscribeType, nil)

	err := r.Route(context.Background(), pr)

	// then
	require.Error(t, err)
}
