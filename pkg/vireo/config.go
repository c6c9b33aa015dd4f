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
	"path/filepath"

	"github.com/kkyr/fig"
	"github.com/vireo-im/vireo/pkg/cache"
	etcdlocker "github.com/vireo-im/vireo/pkg/cluster/locker/etcd"
	"github.com/vireo-im/vireo/pkg/roster"
	"github.com/vireo-im/vireo/pkg/router"
	"github.com/vireo-im/vireo/pkg/storage"
)

// LoggerConfig defines logger configuration.
type LoggerConfig struct {
	Level  string `fig:"level" default:"debug"`
	Format string `fig:"format"`
}

// ClusterConfig defines cluster configuration.
type ClusterConfig struct {
	// Type selects locker type (memory or etcd).
	Type string            `fig:"type" default:"memory"`
	Etcd etcdlocker.Config `fig:"etcd"`
}

// Config defines vireo application configuration.
type Config struct {
	Logger LoggerConfig `fig:"logger"`

	HTTPPort int `fig:"http_port" default:"6060"`

	Cluster ClusterConfig  `fig:"cluster"`
	Storage storage.Config `fig:"storage"`
	Cache   cache.Config   `fig:"cache"`
	Router  router.Config  `fig:"router"`
	Roster  roster.Config  `fig:"roster"`
}

func loadConfig(configFile string) (*Config, error) {
	var cfg Config
	file := filepath.Base(configFile)
	dir := filepath.Dir(configFile)

	err := fig.Load(&cfg, fig.File(file), fig.Dirs(dir))
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
