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

package rostermodel

import (
	"bytes"
	"encoding/gob"
)

// Version represents a roster version entity.
type Version struct {
	Version int
}

// versionGob strips Version's codec methods so gob encodes the raw fields
// instead of recursing back into MarshalBinary/UnmarshalBinary.
type versionGob Version

// MarshalBinary satisfies model.Codec interface.
func (v *Version) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode((*versionGob)(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary satisfies model.Codec interface.
func (v *Version) UnmarshalBinary(b []byte) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode((*versionGob)(v))
}
