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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/blueprint/proptools"

	"android/cargo2bp/cargo2bp"
	"android/cargo2bp/config"
)

const defaultTarget = "x86_64-unknown-linux-gnu"

var (
	cargoBin      = flag.String("cargo-bin", "", "Path to a cargo binary to use instead of the one in PATH")
	cfgPath       = flag.String("cfg", "", "Config file (required)")
	reuseCargoOut = flag.Bool("reuse-cargo-out", false, "Skip the cargo build commands and reuse the cargo.out file from a previous run")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cargo2bp, a tool to create Android.bp files from a Cargo workspace

The tool runs a verbose cargo build, captures its output to cargo.out, and
translates every rustc invocation it finds into Android.bp modules. It must
be run from the directory containing the workspace Cargo.toml.

Usage: %s --cfg <config> [--cargo-bin <path>] [--reuse-cargo-out]

  -cfg <config>
     The config file steering generation. Required.
  -cargo-bin <path>
     Put the directory of the given cargo binary at the front of PATH, so
     that cargo and its associated rustc are used for the build.
  -reuse-cargo-out
     Don't run cargo; parse the cargo.out left by a previous run.

`, os.Args[0])
	}
	flag.Parse()

	if *cfgPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if flag.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "Unused argument detected:", strings.Join(flag.Args(), " "))
		os.Exit(1)
	}

	if _, err := os.Stat("Cargo.toml"); err != nil {
		fmt.Fprintln(os.Stderr, "Cargo.toml not found; run from the workspace root")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *cargoBin != "" {
		// Putting the directory first also picks up that cargo's rustc,
		// which is what a pinned toolchain wants.
		path := filepath.Dir(*cargoBin) + string(os.PathListSeparator) + os.Getenv("PATH")
		os.Setenv("PATH", path)
	}

	if !*reuseCargoOut {
		if err := runCargoBuilds(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := cargo2bp.Generate("cargo.out", cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCargoBuilds(cfg *config.Config) error {
	out, err := os.Create("cargo.out")
	if err != nil {
		return err
	}
	defer out.Close()

	if err := runCargo(out, "clean"); err != nil {
		return err
	}

	buildArgs := []string{"build", "--target", defaultTarget}
	buildArgs = appendBuildOptions(buildArgs, cfg)
	if err := runCargo(out, buildArgs...); err != nil {
		return err
	}

	if cfg.Tests {
		// Built as a second pass so the first pass shows which
		// dependencies are not test-only.
		testArgs := []string{"build", "--target", defaultTarget, "--tests"}
		testArgs = appendBuildOptions(testArgs, cfg)
		if err := runCargo(out, testArgs...); err != nil {
			return err
		}
	}
	return nil
}

func appendBuildOptions(args []string, cfg *config.Config) []string {
	if cfg.Workspace {
		args = append(args, "--workspace")
		for _, x := range cfg.WorkspaceExcludes {
			args = append(args, "--exclude", x)
		}
	}
	if len(cfg.Features) > 0 {
		args = append(args, "--no-default-features", "--features", strings.Join(cfg.Features, ","))
	}
	return args
}

// runCargo runs one cargo command, recording a marker line and the
// command's combined output into the transcript.
func runCargo(out *os.File, args ...string) error {
	args = append(args, "-v", "--target-dir", "target.tmp")
	fmt.Fprintln(out, "### Running: cargo", strings.Join(proptools.ShellEscapeList(args), " "))

	cmd := exec.Command("cargo", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out.Write(stdout.Bytes())
	out.Write(stderr.Bytes())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargo stderr:\n%s", stderr.String())
		return fmt.Errorf("cargo %s failed: %v", args[0], err)
	}
	return nil
}
