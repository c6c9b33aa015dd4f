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

import "errors"

var (
	// ErrAccountNotFound is returned when an operation targets a non
	// registered account.
	ErrAccountNotFound = errors.New("roster: account not found")

	// ErrContactNotFound is returned when an operation targets a peer
	// address not present in the roster.
	ErrContactNotFound = errors.New("roster: contact not found")
)
