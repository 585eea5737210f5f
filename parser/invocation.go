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

package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// An Extern is a named dependency passed to rustc, optionally with the
// filename of its previously built artifact.
type Extern struct {
	Name     string
	Filename string // empty when rustc was given a bare name
}

// A Crate is the decoded form of one rustc invocation.
//
// There is a 1-to-many relationship between a Cargo.toml file and Crates:
// one package may produce a bin, a lib, and several tests, each its own
// rustc invocation. All of them share PackageName.
type Crate struct {
	Name        string
	PackageName string // from the manifest; differs from Name for tests
	Version     string
	// rustc accepts --crate-type [bin|lib|rlib|dylib|cdylib|staticlib|proc-macro]
	// and cargo may pass several.
	Types      []string
	Test       bool   // --test
	Target     string // --target
	Features   []string
	Cfgs       []string // non-feature --cfg
	Externs    []Extern
	Codegens   []string // -C, filtered
	CapLints   string
	StaticLibs []string
	SharedLibs []string
	EmitList   string
	Edition    string
	PackageDir string // closest ancestor of MainSrc with a Cargo.toml
	MainSrc    string // relative to PackageDir
}

// Code generation options that Soong already controls globally, or that
// only make sense inside cargo's own output layout.
var droppedCodegenPrefixes = []string{
	"codegen-units=",
	"debuginfo=",
	"embed-bitcode=",
	"extra-filename=",
	"incremental=",
	"metadata=",
}

// DecodeRustcInvocation parses the argument text of one rustc invocation
// into a Crate. Package fields (PackageName, Version, Edition) are filled
// in later from the manifest.
func DecodeRustcInvocation(rustcArgs string) (*Crate, error) {
	c := &Crate{}

	args, err := splitArgs(rustcArgs)
	if err != nil {
		return nil, err
	}

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("%s missing its argument", flag)
		}
		return args[i], nil
	}

	seenFeatures := make(map[string]bool)
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--crate-name":
			if c.Name, err = next(arg); err != nil {
				return nil, err
			}
		case arg == "--crate-type":
			t, err := next(arg)
			if err != nil {
				return nil, err
			}
			c.Types = append(c.Types, t)
		case arg == "--test":
			c.Test = true
		case arg == "--target":
			if c.Target, err = next(arg); err != nil {
				return nil, err
			}
		case arg == "--cfg":
			// example: feature="sink"
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			if f, ok := featureName(v); ok {
				if !seenFeatures[f] {
					seenFeatures[f] = true
					c.Features = append(c.Features, f)
				}
			} else {
				c.Cfgs = append(c.Cfgs, v)
			}
		case arg == "--extern":
			// example: proc_macro
			// example: memoffset=/some/path/libmemoffset-2cfda327d156e680.rmeta
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			if name, path, found := strings.Cut(v, "="); found {
				c.Externs = append(c.Externs, Extern{Name: name, Filename: filepath.Base(path)})
			} else {
				c.Externs = append(c.Externs, Extern{Name: v})
			}
		case strings.HasPrefix(arg, "-C"):
			// both "-Cfoo" and "-C foo"
			v := strings.TrimPrefix(arg, "-C")
			if v == "" {
				if v, err = next(arg); err != nil {
					return nil, err
				}
			}
			if keepCodegen(v) {
				c.Codegens = append(c.Codegens, v)
			}
		case arg == "--cap-lints":
			if c.CapLints, err = next(arg); err != nil {
				return nil, err
			}
		case arg == "-L":
			if _, err = next(arg); err != nil {
				return nil, err
			}
		case arg == "-l":
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			if lib, ok := strings.CutPrefix(v, "static="); ok {
				c.StaticLibs = append(c.StaticLibs, lib)
			} else if lib, ok := strings.CutPrefix(v, "dylib="); ok {
				c.SharedLibs = append(c.SharedLibs, lib)
			} else {
				c.SharedLibs = append(c.SharedLibs, v)
			}
		case strings.HasPrefix(arg, "--emit="):
			c.EmitList = strings.TrimPrefix(arg, "--emit=")

		case arg == "--out-dir", arg == "--color":
			if _, err = next(arg); err != nil {
				return nil, err
			}
		case strings.HasPrefix(arg, "--error-format="),
			strings.HasPrefix(arg, "--edition="),
			strings.HasPrefix(arg, "--json="),
			strings.HasPrefix(arg, "-Aclippy"),
			strings.HasPrefix(arg, "-Wclippy"),
			arg == "-W", arg == "-D":
			// ignored

		case !strings.HasPrefix(arg, "-"):
			if err := c.setMainSrc(arg); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("unsupported rustc argument: %q", arg)
		}
	}

	if c.Name == "" {
		return nil, fmt.Errorf("missing --crate-name")
	}
	if c.MainSrc == "" {
		return nil, fmt.Errorf("missing main source file")
	}
	if (len(c.Types) != 0) == c.Test {
		return nil, fmt.Errorf("expected exactly one of either --crate-type or --test")
	}
	if inList("lib", c.Types) && inList("rlib", c.Types) {
		return nil, fmt.Errorf("cannot both have lib and rlib crate types")
	}

	return c, nil
}

// setMainSrc records the positional source file argument, locating the
// owning package directory by walking up to the nearest Cargo.toml.
func (c *Crate) setMainSrc(src string) error {
	dir := filepath.Dir(src)
	for {
		if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no Cargo.toml found in parents of %q", src)
		}
		dir = parent
	}
	rel, err := filepath.Rel(dir, src)
	if err != nil {
		return err
	}
	c.PackageDir = dir
	c.MainSrc = rel
	return nil
}

// splitArgs splits an invocation on whitespace, stripping matching outer
// quotes from simple tokens. Quoted strings containing whitespace would
// have been split apart, so a token with an unbalanced quote is an error.
func splitArgs(s string) ([]string, error) {
	fields := strings.Fields(s)
	args := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, q := range []byte{'"', '\''} {
			if f[0] == q {
				if len(f) >= 2 && f[len(f)-1] == q {
					f = f[1 : len(f)-1]
				} else {
					return nil, fmt.Errorf("can't handle strings with whitespace: %q", f)
				}
			}
		}
		args = append(args, f)
	}
	return args, nil
}

func featureName(cfg string) (string, bool) {
	if f, ok := strings.CutPrefix(cfg, `feature="`); ok {
		return strings.CutSuffix(f, `"`)
	}
	return "", false
}

func keepCodegen(opt string) bool {
	for _, p := range droppedCodegenPrefixes {
		if strings.HasPrefix(opt, p) {
			return false
		}
	}
	// prefer-dynamic does not work with the common -C lto flag.
	return opt != "prefer-dynamic"
}

func inList(s string, list []string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}
