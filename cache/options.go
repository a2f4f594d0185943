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
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flatcache/flatcache-go/filespec"
)

// Options configure a cache store. Options are mutable at runtime: the
// engine re-reads them on every operation and Engine.ApplyOptions swaps them
// atomically, invalidating derived state (capabilities, total-space memo).
type Options struct {
	// CacheDir is the root of the cache directory tree, shared by every
	// process using the store.
	CacheDir string

	// Namespace scopes keys; empty means no namespace. A non-empty
	// namespace, joined with NamespaceSeparator, prefixes every shard
	// directory and filename the store owns.
	Namespace string

	// NamespaceSeparator joins the namespace to filenames. Default "-".
	NamespaceSeparator string

	// DirLevel is the shard nesting depth, 0 through 16. Default 1.
	DirLevel int

	// TTL is the store-wide time to live; zero or negative means entries
	// never expire. Per-key overrides are not supported.
	TTL time.Duration

	// FileLocking enables advisory locks around record reads and writes.
	// Default true.
	FileLocking bool

	// Suffix and TagSuffix name the record and tag files, without the dot.
	// Defaults "cache" and "tag".
	Suffix    string
	TagSuffix string

	// DirPermission and FilePermission, when set, are applied (XOR Umask)
	// to created shard directories and record files. When unset, directory
	// creation uses a single recursive create with a default mode and files
	// keep the mode they were created with.
	DirPermission  *os.FileMode
	FilePermission *os.FileMode

	// Umask is XOR'd against the explicit permissions above.
	Umask os.FileMode
}

// DefaultOptions returns the option defaults. CacheDir has no default and
// must be set by the caller.
func DefaultOptions() Options {
	return Options{
		NamespaceSeparator: "-",
		DirLevel:           1,
		FileLocking:        true,
		Suffix:             "cache",
		TagSuffix:          "tag",
	}
}

// Validate checks the options for configuration errors. It is called by
// Engine.New and Engine.ApplyOptions; invalid options are rejected outright,
// never clamped.
func (o Options) Validate() error {
	if o.CacheDir == "" {
		return &ConfigurationError{Msg: "cache directory is not set"}
	}
	if o.DirLevel < 0 || o.DirLevel > filespec.MaxDirLevel {
		return &ConfigurationError{Msg: fmt.Sprintf("dir level %d out of range [0, %d]", o.DirLevel, filespec.MaxDirLevel)}
	}
	if o.Suffix == "" || o.TagSuffix == "" {
		return &ConfigurationError{Msg: "record and tag suffixes must not be empty"}
	}
	if o.Suffix == o.TagSuffix {
		return &ConfigurationError{Msg: "record and tag suffixes must differ"}
	}
	if o.DirPermission != nil && *o.DirPermission&^os.ModePerm != 0 {
		return &ConfigurationError{Msg: fmt.Sprintf("invalid directory permission bits %o", *o.DirPermission)}
	}
	if o.FilePermission != nil && *o.FilePermission&^os.ModePerm != 0 {
		return &ConfigurationError{Msg: fmt.Sprintf("invalid file permission bits %o", *o.FilePermission)}
	}
	if o.Umask&^os.ModePerm != 0 {
		return &ConfigurationError{Msg: fmt.Sprintf("invalid umask bits %o", o.Umask)}
	}
	return nil
}

// optionsFile is the YAML schema for LoadOptions. Pointer fields
// distinguish "absent, keep the default" from an explicit zero. The TTL is
// given in Go duration syntax ("90s", "5m").
type optionsFile struct {
	CacheDir           *string `yaml:"cache_dir"`
	Namespace          *string `yaml:"namespace"`
	NamespaceSeparator *string `yaml:"namespace_separator"`
	DirLevel           *int    `yaml:"dir_level"`
	TTL                *string `yaml:"ttl"`
	FileLocking        *bool   `yaml:"file_locking"`
	Suffix             *string `yaml:"suffix"`
	TagSuffix          *string `yaml:"tag_suffix"`
	DirPermission      *uint32 `yaml:"dir_permission"`
	FilePermission     *uint32 `yaml:"file_permission"`
	Umask              *uint32 `yaml:"umask"`
}

// LoadOptions reads options from a YAML file, applied over the defaults,
// and validates the result.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("cache: read options file: %w", err)
	}
	var f optionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Options{}, fmt.Errorf("cache: parse options file: %w", err)
	}

	o := DefaultOptions()
	if f.CacheDir != nil {
		o.CacheDir = *f.CacheDir
	}
	if f.Namespace != nil {
		o.Namespace = *f.Namespace
	}
	if f.NamespaceSeparator != nil {
		o.NamespaceSeparator = *f.NamespaceSeparator
	}
	if f.DirLevel != nil {
		o.DirLevel = *f.DirLevel
	}
	if f.TTL != nil {
		ttl, err := time.ParseDuration(*f.TTL)
		if err != nil {
			return Options{}, fmt.Errorf("cache: parse ttl: %w", err)
		}
		o.TTL = ttl
	}
	if f.FileLocking != nil {
		o.FileLocking = *f.FileLocking
	}
	if f.Suffix != nil {
		o.Suffix = *f.Suffix
	}
	if f.TagSuffix != nil {
		o.TagSuffix = *f.TagSuffix
	}
	if f.DirPermission != nil {
		perm := os.FileMode(*f.DirPermission)
		o.DirPermission = &perm
	}
	if f.FilePermission != nil {
		perm := os.FileMode(*f.FilePermission)
		o.FilePermission = &perm
	}
	if f.Umask != nil {
		o.Umask = os.FileMode(*f.Umask)
	}

	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// namespacePrefix is the literal filename prefix for the configured
// namespace, or empty when no namespace is set.
func (o Options) namespacePrefix() string {
	if o.Namespace == "" {
		return ""
	}
	return o.Namespace + o.NamespaceSeparator
}
