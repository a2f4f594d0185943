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
	"time"
)

// filenameBudget is the portable limit on a single filename component.
const filenameBudget = 255

// Capabilities describe what a store configured with a given set of options
// can do. They are derived from the options and memoized by the engine until
// ApplyOptions invalidates them.
type Capabilities struct {
	// MaxKeyLength is the longest storable key: the 255-byte filename
	// budget minus the suffix dot, the longer of the two suffixes, and the
	// namespace prefix if one is configured.
	MaxKeyLength int

	// SupportedMetadata lists the metadata fields reads can return.
	SupportedMetadata []string

	// StoredKinds names the value kinds the configured serializer stores.
	StoredKinds []string

	// TTLPrecision is the expiry resolution: one second.
	TTLPrecision time.Duration

	// StaticTTL is always true: TTL is global per store, per-key overrides
	// are not supported.
	StaticTTL bool
}

func computeCapabilities(o Options, ser Serializer) (Capabilities, error) {
	suffixLen := len(o.Suffix)
	if len(o.TagSuffix) > suffixLen {
		suffixLen = len(o.TagSuffix)
	}

	maxKey := filenameBudget - 1 - suffixLen
	if o.Namespace != "" {
		maxKey -= len(o.Namespace) + len(o.NamespaceSeparator)
	}
	if maxKey < 1 {
		return Capabilities{}, &ConfigurationError{
			Msg: fmt.Sprintf("namespace %q leaves no room for keys within the %d-byte filename budget", o.Namespace, filenameBudget),
		}
	}

	return Capabilities{
		MaxKeyLength:      maxKey,
		SupportedMetadata: []string{"atime", "ctime", "mtime", "filesize", "filespec"},
		StoredKinds:       ser.StoredKinds(),
		TTLPrecision:      time.Second,
		StaticTTL:         true,
	}, nil
}
