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

// ConfigurationError indicates invalid options: a directory depth out of
// range, invalid permission bits, a namespace too long for the filename
// budget, or a bulk clear invoked with an empty selector. Configuration
// errors are raised at option-apply or capability-computation time and are
// never silently clamped.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "cache: invalid configuration: " + e.Msg
}
