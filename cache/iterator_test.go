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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectKeys(t *testing.T, it *Iterator) []string {
	t.Helper()
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, it.Key())
	}
	sort.Strings(keys)
	return keys
}

func TestIteratorKeys(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) {
		o.Namespace = "ns"
		o.DirLevel = 2
	})

	for _, key := range []string{"sess_1", "sess_2", "user_1"} {
		_, err := e.Set(key, "v")
		require.NoError(t, err)
	}

	it, err := e.Iterate("", CurrentAsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess_1", "sess_2", "user_1"}, collectKeys(t, it))

	t.Run("prefix filter", func(t *testing.T) {
		it, err := e.Iterate("sess_", CurrentAsKey)
		require.NoError(t, err)
		assert.Equal(t, []string{"sess_1", "sess_2"}, collectKeys(t, it))
	})

	t.Run("rewind restarts the traversal", func(t *testing.T) {
		it, err := e.Iterate("", CurrentAsKey)
		require.NoError(t, err)
		first := collectKeys(t, it)
		assert.False(t, it.Valid())

		require.NoError(t, it.Rewind())
		assert.Equal(t, first, collectKeys(t, it))
	})
}

func TestIteratorNamespaceIsolation(t *testing.T) {
	dir := t.TempDir()
	for _, ns := range []string{"ns1", "ns2"} {
		opts := DefaultOptions()
		opts.CacheDir = dir
		opts.Namespace = ns
		e, err := New(opts)
		require.NoError(t, err)
		_, err = e.Set("k-"+ns, "v")
		require.NoError(t, err)
	}

	opts := DefaultOptions()
	opts.CacheDir = dir
	opts.Namespace = "ns1"
	e, err := New(opts)
	require.NoError(t, err)

	it, err := e.Iterate("", CurrentAsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"k-ns1"}, collectKeys(t, it))
}

func TestIteratorValues(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Set("k", "the value")
	require.NoError(t, err)

	it, err := e.Iterate("", CurrentAsValue)
	require.NoError(t, err)
	require.True(t, it.Valid())

	current, err := it.Current()
	require.NoError(t, err)
	assert.Equal(t, []byte("the value"), current)
}

func TestIteratorSelf(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Set("k", "v")
	require.NoError(t, err)

	it, err := e.Iterate("", CurrentAsSelf)
	require.NoError(t, err)
	require.True(t, it.Valid())

	current, err := it.Current()
	require.NoError(t, err)
	assert.Same(t, it, current)
}

func TestIteratorExhausted(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	it, err := e.Iterate("", CurrentAsKey)
	require.NoError(t, err)
	assert.False(t, it.Valid())
	assert.Empty(t, it.Key())

	current, err := it.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}
