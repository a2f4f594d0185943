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

//go:build !linux && !darwin

package fsys

import "os"

// Advisory locking is unavailable on this platform; concurrent writers from
// multiple processes are not coordinated. Locks report as acquired so the
// engine's write path proceeds unprotected rather than failing.
func flockFile(_ *os.File, _, _ bool) (acquired bool, err error) {
	return true, nil
}

func funlockFile(_ *os.File) {}

func statAccessTime(path string) (int64, error) {
	return 0, &MetadataError{Path: path, Field: "atime", Err: ErrUnsupported}
}

func statCreateTime(path string) (int64, error) {
	return 0, &MetadataError{Path: path, Field: "ctime", Err: ErrUnsupported}
}

func diskAvailableBytes(string) (int64, error) {
	return 0, ErrUnsupported
}

func diskTotalBytes(string) (int64, error) {
	return 0, ErrUnsupported
}
