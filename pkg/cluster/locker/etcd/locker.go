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

package etcdlocker

import (
	"context"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/vireo-im/vireo/pkg/cluster/locker"
	etcdv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// Config contains etcd locker configuration.
type Config struct {
	Endpoints   []string      `fig:"endpoints" default:"[http://localhost:2379]"`
	DialTimeout time.Duration `fig:"dial_timeout" default:"20s"`
}

type etcdLock struct {
	mu *concurrency.Mutex
}

func (m *etcdLock) Release(ctx context.Context) error { return m.mu.Unlock(ctx) }

type etcdLocker struct {
	cfg    Config
	cli    *etcdv3.Client
	ss     *concurrency.Session
	logger kitlog.Logger
}

// New returns a new initialized etcd locker.
func New(cfg Config, logger kitlog.Logger) locker.Locker {
	return &etcdLocker{cfg: cfg, logger: logger}
}

func (l *etcdLocker) AcquireLock(ctx context.Context, lockID string) (locker.Lock, error) {
	mu := concurrency.NewMutex(l.ss, lockID)
	if err := mu.Lock(ctx); err != nil {
		return nil, err
	}
	return &etcdLock{mu: mu}, nil
}

func (l *etcdLocker) Start(_ context.Context) error {
	cli, err := etcdv3.New(etcdv3.Config{
		Endpoints:   l.cfg.Endpoints,
		DialTimeout: l.cfg.DialTimeout,
	})
	if err != nil {
		return err
	}
	ss, err := concurrency.NewSession(cli)
	if err != nil {
		return err
	}
	l.cli = cli
	l.ss = ss
	level.Info(l.logger).Log("msg", "started etcd locker")
	return nil
}

func (l *etcdLocker) Stop(_ context.Context) error {
	if err := l.ss.Close(); err != nil {
		return err
	}
	if err := l.cli.Close(); err != nil {
		return err
	}
	level.Info(l.logger).Log("msg", "stopped etcd locker")
	return nil
}
