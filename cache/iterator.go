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
	"path/filepath"
	"strings"
)

// IteratorMode selects what Current returns while iterating.
type IteratorMode int

const (
	// CurrentAsKey yields the decoded logical key.
	CurrentAsKey IteratorMode = iota

	// CurrentAsValue yields the entry payload via a full engine read.
	CurrentAsValue

	// CurrentAsSelf yields the iterator handle itself, for chained access
	// to Key and the cursor.
	CurrentAsSelf
)

// Iterator is a restartable, single-pass-per-rewind traversal over the
// record files matching a namespace/prefix shard glob. It is a thin adapter
// over the native glob facility: Next, Valid and Rewind delegate to the
// underlying match cursor with no lookahead of its own.
//
// Entries created or removed after a rewind are not reflected until the
// next rewind.
type Iterator struct {
	engine *Engine
	mode   IteratorMode

	pattern     string
	stripPrefix string
	stripSuffix string

	matches []string
	pos     int
}

// Iterate returns an iterator over the entries of the current namespace
// whose keys start with prefix (empty prefix matches all). The iterator is
// positioned at the first match.
func (e *Engine) Iterate(prefix string, mode IteratorMode) (*Iterator, error) {
	o := e.Options()
	nsPrefix := o.namespacePrefix()
	escaped := globEscape(nsPrefix)

	it := &Iterator{
		engine:      e,
		mode:        mode,
		pattern:     shardPattern(o, escaped, escaped+globEscape(prefix)+"*."+globEscape(o.Suffix)),
		stripPrefix: nsPrefix,
		stripSuffix: "." + o.Suffix,
	}
	if err := it.Rewind(); err != nil {
		return nil, err
	}
	return it, nil
}

// Rewind restarts the traversal with a fresh directory listing.
func (it *Iterator) Rewind() error {
	matches, err := filepath.Glob(it.pattern)
	if err != nil {
		return err
	}
	it.matches = matches
	it.pos = 0
	return nil
}

// Valid reports whether the cursor is on a match.
func (it *Iterator) Valid() bool {
	return it.pos < len(it.matches)
}

// Next advances the cursor.
func (it *Iterator) Next() {
	it.pos++
}

// Key returns the logical key at the cursor: the filename with the
// namespace prefix stripped from the front and the record suffix from the
// end. It returns "" past the end.
func (it *Iterator) Key() string {
	if !it.Valid() {
		return ""
	}
	base := filepath.Base(it.matches[it.pos])
	base = strings.TrimSuffix(base, it.stripSuffix)
	return strings.TrimPrefix(base, it.stripPrefix)
}

// Current returns the element at the cursor per the iterator mode: the key,
// the payload bytes read through the engine, or the iterator itself. In
// value mode an entry that expired or vanished since the rewind yields nil.
func (it *Iterator) Current() (any, error) {
	if !it.Valid() {
		return nil, nil
	}
	switch it.mode {
	case CurrentAsValue:
		payload, ok, err := it.engine.GetRaw(it.Key())
		if err != nil || !ok {
			return nil, err
		}
		return payload, nil
	case CurrentAsSelf:
		return it, nil
	default:
		return it.Key(), nil
	}
}
