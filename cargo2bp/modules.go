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
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"android/cargo2bp/bp"
	"android/cargo2bp/config"
	"android/cargo2bp/parser"
)

// Artifact filenames passed to --extern, e.g. liblibc-2cfda327d156e680.rlib.
// The capture is the library stem without the lib prefix.
var externFileRe = regexp.MustCompile(`^lib(.*)-[0-9a-f]+\.(rlib|so|rmeta)$`)

// Crate types that produce a library artifact and may live in an apex.
var libraryCrateTypes = []string{"lib", "rlib", "dylib", "staticlib", "cdylib"}

// Modules expands one crate into build modules: one per crate type, plus a
// rust_test module when the crate was built with --test.
func Modules(c *parser.Crate, cfg *config.Config) ([]*bp.Module, error) {
	pcfg := cfg.PackageCfg(c.PackageName)

	types := append([]string(nil), c.Types...)
	if c.Test {
		types = append(types, "test")
	}

	host := ""
	if !pcfg.IsDeviceSupported() {
		host = "_host"
	}
	rlib := ""
	if pcfg.ForceRlib {
		rlib = "_rlib"
	}

	var out []*bp.Module
	for _, crateType := range types {
		var moduleType, moduleName, stem string
		switch crateType {
		case "bin":
			moduleType = "rust_binary" + host
			moduleName, stem = c.Name, c.Name
		case "lib", "rlib":
			stem = "lib" + c.Name
			moduleType = "rust_library" + rlib + host
			moduleName = stem
		case "dylib":
			stem = "lib" + c.Name
			moduleType = "rust_library" + host + "_dylib"
			moduleName = stem + "_dylib"
		case "cdylib":
			stem = "lib" + c.Name
			moduleType = "rust_ffi" + host + "_shared"
			moduleName = stem + "_shared"
		case "staticlib":
			stem = "lib" + c.Name
			moduleType = "rust_ffi" + host + "_static"
			moduleName = stem + "_static"
		case "proc-macro":
			stem = "lib" + c.Name
			moduleType = "rust_proc_macro"
			moduleName = stem
		case "test":
			suffix := strings.TrimSuffix(strings.ReplaceAll(c.MainSrc, "/", "_"), ".rs")
			stem = c.PackageName + "_test_" + suffix
			moduleType = "rust_test" + host
			moduleName = stem
		default:
			return nil, fmt.Errorf("unexpected crate type: %s", crateType)
		}

		moduleName = cfg.OverrideName(moduleName)
		if inList(moduleName, cfg.ModuleBlocklist) {
			continue
		}

		m := bp.NewModule(moduleType)
		m.Props.Set("name", bp.String(moduleName))
		if stem != moduleName {
			m.Props.Set("stem", bp.String(stem))
		}

		if cfg.GlobalDefaults != "" {
			m.Props.Set("defaults", bp.Strings(cfg.GlobalDefaults))
		}

		if pcfg.IsHostSupported() && pcfg.IsDeviceSupported() && moduleType != "rust_proc_macro" {
			m.Props.Set("host_supported", bp.Bool(true))
		}

		m.Props.Set("crate_name", bp.String(c.Name))
		m.Props.Set("cargo_env_compat", bp.Bool(true))
		if c.Version != "" {
			m.Props.Set("cargo_pkg_version", bp.String(c.Version))
		}

		if crateType == "test" {
			m.Props.Set("test_suites", bp.Strings("general-tests"))
			m.Props.Set("auto_gen_config", bp.Bool(true))
			if pcfg.IsHostSupported() {
				m.Props.Object("test_options").Set("unit_test", bp.Bool(!pcfg.NoPresubmit))
			}
		}

		m.Props.Set("srcs", bp.Strings(c.MainSrc))
		m.Props.Set("edition", bp.String(c.Edition))

		if len(c.Features) > 0 {
			m.Props.Set("features", bp.Strings(c.Features...))
		}
		if len(c.Cfgs) > 0 {
			m.Props.Set("cfgs", bp.Strings(c.Cfgs...))
		}

		var flags []string
		if c.CapLints != "" {
			flags = append(flags, c.CapLints)
		}
		flags = append(flags, c.Codegens...)
		if len(flags) > 0 {
			m.Props.Set("flags", bp.Strings(flags...))
		}

		var rustLibs, procMacros []string
		for _, e := range c.Externs {
			if e.Name == "proc_macro" {
				// rustc's built-in crate, not a module.
				continue
			}
			if e.Filename == "" {
				return nil, fmt.Errorf("no filename for extern %s", e.Name)
			}
			// Use the artifact stem, not the extern name: crates like rand
			// alias getrandom_package to libgetrandom-*.rlib, and the
			// module is libgetrandom.
			fm := externFileRe.FindStringSubmatch(e.Filename)
			if fm == nil {
				return nil, fmt.Errorf("bad filename for extern %s: %s", e.Name, e.Filename)
			}
			switch fm[2] {
			case "rlib", "rmeta":
				rustLibs = append(rustLibs, fm[1])
			case "so":
				// Assume .so files are always proc-macros. May not always
				// be right.
				procMacros = append(procMacros, fm[1])
			}
		}
		if libs := processDeps(rustLibs, cfg, pcfg); len(libs) > 0 {
			m.Props.Set("rustlibs", bp.Strings(libs...))
		}
		if libs := processDeps(procMacros, cfg, pcfg); len(libs) > 0 {
			m.Props.Set("proc_macros", bp.Strings(libs...))
		}
		if libs := processDeps(c.StaticLibs, cfg, pcfg); len(libs) > 0 {
			m.Props.Set("static_libs", bp.Strings(libs...))
		}
		if libs := processDeps(c.SharedLibs, cfg, pcfg); len(libs) > 0 {
			m.Props.Set("shared_libs", bp.Strings(libs...))
		}

		if len(cfg.ApexAvailable) > 0 && inList(crateType, libraryCrateTypes) {
			m.Props.Set("apex_available", bp.Strings(cfg.ApexAvailable...))
		}

		if pcfg.AddModuleBlock != "" {
			data, err := os.ReadFile(pcfg.AddModuleBlock)
			if err != nil {
				return nil, fmt.Errorf("failed to read add_module_block: %w", err)
			}
			m.RawBlock = strings.TrimRight(string(data), "\n")
		}

		out = append(out, m)
	}
	return out, nil
}

// processDeps turns bare library stems into module names: prepend lib,
// apply the rename table, drop blocklisted deps, and sort.
func processDeps(stems []string, cfg *config.Config, pcfg *config.PackageConfig) []string {
	var out []string
	for _, s := range stems {
		name := cfg.OverrideName("lib" + s)
		if inList(name, pcfg.DepBlocklist) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func inList(s string, list []string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
