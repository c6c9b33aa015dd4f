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

package vireo

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vireo-im/vireo/pkg/cache"
	"github.com/vireo-im/vireo/pkg/cluster/locker"
	etcdlocker "github.com/vireo-im/vireo/pkg/cluster/locker/etcd"
	"github.com/vireo-im/vireo/pkg/hook"
	"github.com/vireo-im/vireo/pkg/log"
	"github.com/vireo-im/vireo/pkg/roster"
	"github.com/vireo-im/vireo/pkg/router"
	"github.com/vireo-im/vireo/pkg/storage"
	"github.com/vireo-im/vireo/pkg/storage/repository"
	"github.com/vireo-im/vireo/pkg/version"
)

const (
	defaultShutdownTimeout = time.Second * 30

	envConfigFile = "VIREO_CONFIG_FILE"
)

const usageStr = `
Usage: vireo [options]
Server Options:
    --config <file>    Configuration file path
Common Options:
    --help             Show this message
    --version          Print version information
`

type starter interface {
	Start(ctx context.Context) error
}

type stopper interface {
	Stop(ctx context.Context) error
}

// Vireo is the root data structure for the vireo roster server.
type Vireo struct {
	output io.Writer
	args   []string

	hk     *hook.Hooks
	rep    repository.Repository
	store  cache.Cache
	locker locker.Locker
	router router.Router
	rosMng *roster.Manager

	starters []starter
	stoppers []stopper

	waitStopCh chan os.Signal

	logger kitlog.Logger
}

// New makes a new Vireo instance.
func New(output io.Writer, args []string) *Vireo {
	return &Vireo{
		output:     output,
		args:       args,
		waitStopCh: make(chan os.Signal, 1),
	}
}

// Run starts vireo running, and blocks until it stops.
func (v *Vireo) Run() error {
	fs := flag.NewFlagSet("vireo", flag.ExitOnError)
	fs.SetOutput(v.output)

	var configFile string
	var showVersion, showUsage bool

	fs.BoolVar(&showUsage, "help", false, "Show this message")
	fs.BoolVar(&showVersion, "version", false, "Print version information.")
	fs.StringVar(&configFile, "config", "config.yaml", "Configuration file path.")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(v.output, "%s\n", usageStr)
	}
	_ = fs.Parse(v.args[1:])

	if showUsage {
		fs.Usage()
		return nil
	}
	if showVersion {
		_, _ = fmt.Fprintf(v.output, "vireo version: %v\n", version.Version)
		return nil
	}
	// if present, override config file url with env var
	if envCfgFile := os.Getenv(envConfigFile); len(envCfgFile) > 0 {
		configFile = envCfgFile
	}
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	v.logger = log.NewDefaultLogger(cfg.Logger.Level, cfg.Logger.Format)

	level.Info(v.logger).Log("msg", "vireo is starting...",
		"version", version.Version,
		"go_ver", runtime.Version(),
		"go_os", runtime.GOOS,
		"go_arch", runtime.GOARCH,
	)
	v.hk = hook.NewHooks()

	if err := v.initLocker(cfg.Cluster); err != nil {
		return err
	}
	if err := v.initCache(cfg.Cache); err != nil {
		return err
	}
	if err := v.initRepository(cfg.Storage); err != nil {
		return err
	}
	if err := v.initRouter(cfg.Router); err != nil {
		return err
	}
	if cfg.Roster.Enabled {
		v.initRosterManager(cfg.Roster)
	}
	v.registerStartStopper(newHTTPServer(cfg.HTTPPort, v.logger))

	if err := v.bootstrap(); err != nil {
		return err
	}
	sig := v.waitForStopSignal()
	level.Info(v.logger).Log("msg", "received stop signal... shutting down...",
		"signal", sig.String(),
	)
	return v.shutdown()
}

// RosterManager returns the roster manager instance, nil when the roster
// subsystem is disabled.
func (v *Vireo) RosterManager() *roster.Manager {
	return v.rosMng
}

func (v *Vireo) initLocker(cfg ClusterConfig) error {
	switch cfg.Type {
	case "etcd":
		v.locker = etcdlocker.New(cfg.Etcd, v.logger)
	case "memory":
		v.locker = locker.NewMemoryLocker()
	default:
		return fmt.Errorf("vireo: unrecognized locker type: %s", cfg.Type)
	}
	v.registerStartStopper(v.locker)
	return nil
}

func (v *Vireo) initCache(cfg cache.Config) error {
	store, err := cache.New(cfg, v.logger)
	if err != nil {
		return err
	}
	v.store = store
	v.registerStartStopper(v.store)
	return nil
}

func (v *Vireo) initRepository(cfg storage.Config) error {
	rep, err := storage.New(cfg, v.logger)
	if err != nil {
		return err
	}
	v.rep = rep
	v.registerStartStopper(v.rep)
	return nil
}

func (v *Vireo) initRouter(cfg router.Config) error {
	rt, err := router.New(cfg, v.logger)
	if err != nil {
		return err
	}
	v.router = rt
	v.registerStartStopper(v.router)
	return nil
}

func (v *Vireo) initRosterManager(cfg roster.Config) {
	v.rosMng = roster.NewManager(cfg, v.rep, v.store, v.locker, v.router, v.hk, v.logger)
	v.registerStartStopper(v.rosMng)
}

func (v *Vireo) registerStartStopper(ss interface{}) {
	if st, ok := ss.(starter); ok {
		v.starters = append(v.starters, st)
	}
	if st, ok := ss.(stopper); ok {
		v.stoppers = append(v.stoppers, st)
	}
}

func (v *Vireo) bootstrap() error {
	// spin up all service subsystems
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, s := range v.starters {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vireo) shutdown() error {
	// wait until application has stopped
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	// stop subsystems in reverse order
	for i := len(v.stoppers) - 1; i >= 0; i-- {
		if err := v.stoppers[i].Stop(ctx); err != nil {
			return err
		}
	}
	level.Info(v.logger).Log("msg", "stopped vireo")
	return nil
}

func (v *Vireo) waitForStopSignal() os.Signal {
	signal.Notify(v.waitStopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return <-v.waitStopCh
}
