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

//go:build linux || darwin

package fsys

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// flockFile takes an advisory flock on f. With nonBlocking set it returns
// acquired=false instead of waiting when the lock is held elsewhere.
func flockFile(f *os.File, exclusive, nonBlocking bool) (acquired bool, err error) {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if nonBlocking {
		how |= unix.LOCK_NB
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		if nonBlocking && (errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func funlockFile(f *os.File) {
	// Unlock failures are ignored: the lock is released on close anyway.
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
