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

package repository

import (
	"context"

	usermodel "github.com/vireo-im/vireo/pkg/model/user"
)

// User defines account directory provider interface.
type User interface {
	// FetchUser retrieves an account snapshot from the directory.
	// If the account does not exist nil is returned.
	FetchUser(ctx context.Context, username string) (*usermodel.User, error)

	// UserExists tells whether a given account exists.
	UserExists(ctx context.Context, username string) (bool, error)

	// FetchUsernames retrieves every registered account username.
	// This full directory enumeration backs the everybody visibility policy
	// only; every other path uses narrower queries.
	FetchUsernames(ctx context.Context) ([]string, error)
}
