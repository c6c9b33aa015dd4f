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

package roster

import "github.com/vireo-im/vireo/pkg/util/pool"

// Config contains roster subsystem configuration.
type Config struct {
	// Enabled tells whether the roster subsystem is active.
	Enabled bool `fig:"enabled" default:"true"`

	// Versioning enables per account roster versioning. When enabled every
	// persistent mutation touches the account roster version.
	Versioning bool `fig:"versioning"`

	// Domain is the local server domain. Account bare JIDs are derived
	// from it, and any peer address outside of it is treated as remote.
	Domain string `fig:"domain" default:"localhost"`

	// Pool configures the fan-out worker pool.
	Pool pool.Config `fig:"pool"`
}
