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

// Package record frames cache entries for storage.
//
// A record is an ASCII decimal expiry timestamp (Unix seconds), a newline,
// then the raw payload bytes. The payload is binary-safe and may itself
// contain newlines; only the first newline delimits the header. Entries
// without an expiry carry the NoExpiry sentinel in the header.
package record

import (
	"bytes"
	"math"
	"strconv"
	"time"
)

// NoExpiry is the header value for records that never expire.
const NoExpiry int64 = math.MaxInt64

// MalformedError indicates a record that cannot be interpreted: the header
// delimiter is missing, the header is not numeric, or the payload failed to
// deserialize. Malformed records are surfaced to the caller, never silently
// treated as absent.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := "record: malformed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Encode frames payload with an expiry header. A ttl of zero or less means
// the record never expires. Otherwise the expiry is now plus ttl rounded
// half-up to whole seconds, clamped to be non-negative.
func Encode(payload []byte, ttl time.Duration, now time.Time) []byte {
	expiry := NoExpiry
	if ttl > 0 {
		seconds := int64(math.Floor(ttl.Seconds() + 0.5))
		expiry = now.Unix() + seconds
		if expiry < 0 {
			expiry = 0
		}
	}

	header := strconv.FormatInt(expiry, 10)
	out := make([]byte, 0, len(header)+1+len(payload))
	out = append(out, header...)
	out = append(out, '\n')
	return append(out, payload...)
}

// Decode splits a record into its expiry timestamp and payload. It fails
// with *MalformedError if no newline is present or the header is not a
// decimal integer.
func Decode(data []byte) (expiry int64, payload []byte, err error) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return 0, nil, &MalformedError{Reason: "missing header delimiter"}
	}
	expiry, err = ParseHeader(string(data[:i]))
	if err != nil {
		return 0, nil, err
	}
	return expiry, data[i+1:], nil
}

// ParseHeader interprets a bare header line as an expiry timestamp.
func ParseHeader(line string) (int64, error) {
	expiry, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, &MalformedError{Reason: "non-numeric expiry header", Err: err}
	}
	return expiry, nil
}

// IsExpired reports whether a record with the given expiry timestamp is
// expired at now. The sentinel never expires; precision is one second.
func IsExpired(expiry int64, now time.Time) bool {
	if expiry == NoExpiry {
		return false
	}
	return now.Unix() >= expiry
}
