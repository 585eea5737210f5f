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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"android/cargo2bp/bp"
	"android/cargo2bp/config"
	"android/cargo2bp/parser"
)

func libCrate() *parser.Crate {
	return &parser.Crate{
		Name:        "foo",
		PackageName: "foo",
		Version:     "0.1.0",
		Types:       []string{"lib"},
		Features:    []string{"bar"},
		Edition:     "2021",
		PackageDir:  "foo",
		MainSrc:     "src/lib.rs",
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func TestModulesSimpleLibrary(t *testing.T) {
	cfg := &config.Config{
		ApexAvailable: []string{"//apex_available:platform", "//apex_available:anyapex"},
	}
	ms, err := Modules(libCrate(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 {
		t.Fatalf("got %d modules, want 1", len(ms))
	}

	expected := `rust_library {
name: "libfoo",
host_supported: true,
crate_name: "foo",
cargo_env_compat: true,
cargo_pkg_version: "0.1.0",
srcs: ["src/lib.rs"],
edition: "2021",
features: ["bar"],
apex_available: ["//apex_available:platform", "//apex_available:anyapex"],
}
`
	if got := ms[0].String(); got != expected {
		t.Errorf("module text mismatch (-want +got):\n%s", cmp.Diff(expected, got))
	}
}

func TestModulesCrateTypeMapping(t *testing.T) {
	testCases := []struct {
		desc       string
		types      []string
		test       bool
		pkg        config.PackageConfig
		moduleType string
		name       string
		stem       string // empty when no stem property is expected
	}{
		{
			desc:       "bin",
			types:      []string{"bin"},
			moduleType: "rust_binary",
			name:       "foo",
		},
		{
			desc:       "bin host only",
			types:      []string{"bin"},
			pkg:        config.PackageConfig{DeviceSupported: boolPtr(false)},
			moduleType: "rust_binary_host",
			name:       "foo",
		},
		{
			desc:       "lib",
			types:      []string{"lib"},
			moduleType: "rust_library",
			name:       "libfoo",
		},
		{
			desc:       "rlib forced",
			types:      []string{"rlib"},
			pkg:        config.PackageConfig{ForceRlib: true},
			moduleType: "rust_library_rlib",
			name:       "libfoo",
		},
		{
			desc:       "dylib",
			types:      []string{"dylib"},
			moduleType: "rust_library_dylib",
			name:       "libfoo_dylib",
			stem:       "libfoo",
		},
		{
			desc:       "cdylib",
			types:      []string{"cdylib"},
			moduleType: "rust_ffi_shared",
			name:       "libfoo_shared",
			stem:       "libfoo",
		},
		{
			desc:       "staticlib",
			types:      []string{"staticlib"},
			moduleType: "rust_ffi_static",
			name:       "libfoo_static",
			stem:       "libfoo",
		},
		{
			desc:       "proc-macro",
			types:      []string{"proc-macro"},
			moduleType: "rust_proc_macro",
			name:       "libfoo",
		},
		{
			desc:       "test",
			test:       true,
			moduleType: "rust_test",
			name:       "foo_test_src_lib",
		},
	}
	for _, tc := range testCases {
		c := libCrate()
		c.Types = tc.types
		c.Test = tc.test
		pkg := tc.pkg
		cfg := &config.Config{Package: map[string]*config.PackageConfig{"foo": &pkg}}

		ms, err := Modules(c, cfg)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.desc, err)
			continue
		}
		if len(ms) != 1 {
			t.Errorf("%s: got %d modules, want 1", tc.desc, len(ms))
			continue
		}
		m := ms[0]
		if m.Type != tc.moduleType {
			t.Errorf("%s: module type = %q, want %q", tc.desc, m.Type, tc.moduleType)
		}
		if m.Name() != tc.name {
			t.Errorf("%s: name = %q, want %q", tc.desc, m.Name(), tc.name)
		}
		if got := m.Props.GetString("stem"); got != tc.stem {
			t.Errorf("%s: stem = %q, want %q", tc.desc, got, tc.stem)
		}
	}
}

func TestModulesProcMacroNeverHostSupported(t *testing.T) {
	c := libCrate()
	c.Types = []string{"proc-macro"}
	ms, err := Modules(c, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if ms[0].Props.Has("host_supported") {
		t.Error("proc-macro module should not set host_supported")
	}
}

func TestModulesTestProperties(t *testing.T) {
	c := libCrate()
	c.Types = nil
	c.Test = true
	c.MainSrc = "tests/it.rs"

	cfg := &config.Config{Package: map[string]*config.PackageConfig{
		"foo": {NoPresubmit: true},
	}}
	ms, err := Modules(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	m := ms[0]
	if m.Name() != "foo_test_tests_it" {
		t.Errorf("name = %q, want foo_test_tests_it", m.Name())
	}
	if !bp.Equal(m.Props.Get("test_suites"), bp.Strings("general-tests")) {
		t.Errorf("test_suites = %v", m.Props.Get("test_suites"))
	}
	if !bp.Equal(m.Props.Get("auto_gen_config"), bp.Bool(true)) {
		t.Errorf("auto_gen_config = %v", m.Props.Get("auto_gen_config"))
	}
	if !bp.Equal(m.Props.Object("test_options").Get("unit_test"), bp.Bool(false)) {
		t.Error("no_presubmit should turn off test_options.unit_test")
	}
}

func TestModulesLibAndTest(t *testing.T) {
	// A --crate-type lib invocation and a --test invocation may both hit
	// the same crate; the test flag just adds a module.
	c := libCrate()
	c.Types = []string{"lib"}
	c.Test = true
	ms, err := Modules(c, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d modules, want 2", len(ms))
	}
	if ms[0].Type != "rust_library" || ms[1].Type != "rust_test" {
		t.Errorf("module types = %q, %q", ms[0].Type, ms[1].Type)
	}
}

func TestModulesDependencyRewriting(t *testing.T) {
	c := libCrate()
	c.Externs = []parser.Extern{
		{Name: "serde", Filename: "libserde-1a2b3c4d5e6f7a8b.rlib"},
		{Name: "zeta", Filename: "libzeta-deadbeef00112233.rmeta"},
		{Name: "blocked", Filename: "libblocked-0123456789abcdef.rlib"},
		{Name: "derive_helper", Filename: "libderive_helper-cafebabe01234567.so"},
		{Name: "proc_macro"},
	}
	c.StaticLibs = []string{"z"}
	c.SharedLibs = []string{"ssl"}

	cfg := &config.Config{
		ModuleNameOverrides: map[string]string{"libserde": "libserde_renamed"},
		Package: map[string]*config.PackageConfig{
			"foo": {DepBlocklist: []string{"libblocked"}},
		},
	}
	ms, err := Modules(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	m := ms[0]

	if want := bp.Strings("libserde_renamed", "libzeta"); !bp.Equal(m.Props.Get("rustlibs"), want) {
		t.Errorf("rustlibs = %v", m.Props.Get("rustlibs"))
	}
	if want := bp.Strings("libderive_helper"); !bp.Equal(m.Props.Get("proc_macros"), want) {
		t.Errorf("proc_macros = %v", m.Props.Get("proc_macros"))
	}
	if want := bp.Strings("libz"); !bp.Equal(m.Props.Get("static_libs"), want) {
		t.Errorf("static_libs = %v", m.Props.Get("static_libs"))
	}
	if want := bp.Strings("libssl"); !bp.Equal(m.Props.Get("shared_libs"), want) {
		t.Errorf("shared_libs = %v", m.Props.Get("shared_libs"))
	}
}

func TestModulesExternErrors(t *testing.T) {
	testCases := []struct {
		desc   string
		extern parser.Extern
	}{
		{"missing filename", parser.Extern{Name: "serde"}},
		{"unparseable filename", parser.Extern{Name: "serde", Filename: "serde.rlib"}},
	}
	for _, tc := range testCases {
		c := libCrate()
		c.Externs = []parser.Extern{tc.extern}
		if _, err := Modules(c, &config.Config{}); err == nil {
			t.Errorf("%s: expected error, got none", tc.desc)
		}
	}
}

func TestModulesFlags(t *testing.T) {
	c := libCrate()
	c.CapLints = "allow"
	c.Codegens = []string{"opt-level=3", "lto"}
	ms, err := Modules(c, &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if want := bp.Strings("allow", "opt-level=3", "lto"); !bp.Equal(ms[0].Props.Get("flags"), want) {
		t.Errorf("flags = %v", ms[0].Props.Get("flags"))
	}
}

func TestModulesBlocklistAndOverride(t *testing.T) {
	cfg := &config.Config{
		ModuleNameOverrides: map[string]string{"libfoo": "libfoo_renamed"},
	}
	ms, err := Modules(libCrate(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	m := ms[0]
	if m.Name() != "libfoo_renamed" {
		t.Errorf("name = %q, want libfoo_renamed", m.Name())
	}
	// The stem keeps the artifact name stable under the rename.
	if got := m.Props.GetString("stem"); got != "libfoo" {
		t.Errorf("stem = %q, want libfoo", got)
	}

	cfg = &config.Config{ModuleBlocklist: []string{"libfoo"}}
	ms, err = Modules(libCrate(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 0 {
		t.Errorf("blocklisted crate produced %d modules, want 0", len(ms))
	}
}

func TestModulesApexAvailableOnlyForLibraries(t *testing.T) {
	cfg := &config.Config{ApexAvailable: []string{"//apex_available:platform"}}
	for _, tc := range []struct {
		crateType string
		want      bool
	}{
		{"bin", false},
		{"lib", true},
		{"cdylib", true},
		{"proc-macro", false},
	} {
		c := libCrate()
		c.Types = []string{tc.crateType}
		ms, err := Modules(c, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if got := ms[0].Props.Has("apex_available"); got != tc.want {
			t.Errorf("%s: apex_available present = %v, want %v", tc.crateType, got, tc.want)
		}
	}
}

func TestModulesGlobalDefaults(t *testing.T) {
	cfg := &config.Config{GlobalDefaults: "crosvm_defaults"}
	ms, err := Modules(libCrate(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := bp.Strings("crosvm_defaults"); !bp.Equal(ms[0].Props.Get("defaults"), want) {
		t.Errorf("defaults = %v", ms[0].Props.Get("defaults"))
	}
}

func TestModulesAddModuleBlock(t *testing.T) {
	block := filepath.Join(t.TempDir(), "block.txt")
	if err := os.WriteFile(block, []byte("ld_flags: [\"-z,now\"]\n"), 0666); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Package: map[string]*config.PackageConfig{
		"foo": {AddModuleBlock: block},
	}}
	ms, err := Modules(libCrate(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := `ld_flags: ["-z,now"]`; ms[0].RawBlock != want {
		t.Errorf("raw block = %q, want %q", ms[0].RawBlock, want)
	}
}
