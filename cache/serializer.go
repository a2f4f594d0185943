// Copyright The Flatcache Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Serializer converts values to and from record payload bytes. The engine
// only frames payloads; the serializer decides what a value looks like on
// disk. Which serializer is in effect is fixed at engine construction.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// StoredKinds names the value kinds this serializer can store, reported
	// through Capabilities.
	StoredKinds() []string
}

// RawSerializer is the pass-through mode: callers hand the engine
// pre-serialized bytes (or strings) and read them back unchanged. It is the
// default serializer.
type RawSerializer struct{}

func (RawSerializer) Marshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("cache: raw serializer stores []byte or string, got %T", v)
	}
}

func (RawSerializer) Unmarshal(data []byte, v any) error {
	switch out := v.(type) {
	case *[]byte:
		*out = append([]byte(nil), data...)
		return nil
	case *string:
		*out = string(data)
		return nil
	default:
		return fmt.Errorf("cache: raw serializer reads into *[]byte or *string, got %T", v)
	}
}

func (RawSerializer) StoredKinds() []string {
	return []string{"bytes", "string"}
}

// CBORSerializer stores arbitrary Go values as CBOR.
type CBORSerializer struct{}

func (CBORSerializer) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (CBORSerializer) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func (CBORSerializer) StoredKinds() []string {
	return []string{"nil", "bool", "integer", "float", "string", "bytes", "array", "map", "struct"}
}
