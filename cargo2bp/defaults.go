// Copyright 2023 Google Inc. All rights reserved.
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

package cargo2bp

import (
	"android/cargo2bp/bp"
)

// hoistDefaults extracts properties shared by every module of a package
// into a rust_defaults module and replaces them with a defaults reference.
// Modules that already carry a defaults property are left alone.
func hoistDefaults(defaultsName string, modules []*bp.Module) []*bp.Module {
	if len(modules) <= 1 {
		return modules
	}
	for _, m := range modules {
		if m.Props.Has("defaults") {
			return modules
		}
	}

	var common []string
	for _, k := range modules[0].Props.Keys() {
		if k == "name" {
			continue
		}
		shared := true
		for _, m := range modules[1:] {
			if !m.Props.Has(k) || !bp.Equal(m.Props.Get(k), modules[0].Props.Get(k)) {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, k)
		}
	}
	if len(common) == 0 {
		return modules
	}

	defaults := bp.NewModule("rust_defaults")
	defaults.Props.Set("name", bp.String(defaultsName))
	for _, k := range common {
		defaults.Props.Set(k, modules[0].Props.Get(k))
		for _, m := range modules {
			m.Props.Delete(k)
		}
	}
	for _, m := range modules {
		m.Props.Set("defaults", bp.Strings(defaultsName))
	}
	return append(modules, defaults)
}
