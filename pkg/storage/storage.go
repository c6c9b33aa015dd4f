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

package storage

import (
	"fmt"

	kitlog "github.com/go-kit/log"
	measuredrepository "github.com/vireo-im/vireo/pkg/storage/measured"
	memoryrepository "github.com/vireo-im/vireo/pkg/storage/memory"
	pgsqlrepository "github.com/vireo-im/vireo/pkg/storage/pgsql"
	"github.com/vireo-im/vireo/pkg/storage/repository"
)

const (
	pgSQLRepositoryType  = "pgsql"
	memoryRepositoryType = "memory"
)

// Config contains storage configuration.
type Config struct {
	Type  string                 `fig:"type" default:"memory"`
	PgSQL pgsqlrepository.Config `fig:"pgsql"`
}

// New returns an initialized measured repository of the configured type.
func New(cfg Config, logger kitlog.Logger) (repository.Repository, error) {
	switch cfg.Type {
	case pgSQLRepositoryType:
		return measuredrepository.New(pgsqlrepository.New(cfg.PgSQL, logger)), nil

	case memoryRepositoryType:
		return measuredrepository.New(memoryrepository.New()), nil

	default:
		return nil, fmt.Errorf("unrecognized repository type: %s", cfg.Type)
	}
}
