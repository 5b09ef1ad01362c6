//go:build mage

package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	binaryName = "spmigrate"
	cmdPkg     = "./cmd/spmigrate"
	binDir     = "bin"
)

func run(env []string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout, cmd.Stderr, cmd.Stdin = os.Stdout, os.Stderr, os.Stdin
	return cmd.Run()
}

func output(name string, args ...string) string {
	var buf bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout, cmd.Stderr = &buf, &buf
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// raceArgs returns the env and flags for -race, or nothing when NO_RACE=1
func raceArgs() ([]string, []string) {
	if os.Getenv("NO_RACE") == "1" {
		return nil, nil
	}
	return []string{"CGO_ENABLED=1"}, []string{"-race"}
}

// Build compiles the CLI into ./bin with the git version stamped in.
func Build() error {
	version := output("git", "describe", "--tags", "--always", "--dirty")
	if version == "" {
		version = "dev"
	}
	name := binaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	return run(nil, "go", "build", "-trimpath",
		"-ldflags", "-s -w -X spmigrate/cmd/spmigrate/commands.Version="+version,
		"-o", filepath.Join(binDir, name), cmdPkg)
}

// Test runs the unit tests, with the race detector unless NO_RACE=1.
func Test() error {
	env, flags := raceArgs()
	return run(env, "go", append(append([]string{"test"}, flags...), "./...")...)
}

// Cover writes coverage.out and coverage.html.
func Cover() error {
	env, flags := raceArgs()
	args := append(append([]string{"test"}, flags...), "-coverprofile=coverage.out", "./...")
	if err := run(env, "go", args...); err != nil {
		return err
	}
	return run(nil, "go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Lint runs go vet and, when installed, golangci-lint.
func Lint() error {
	if err := run(nil, "go", "vet", "./..."); err != nil {
		return err
	}
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println("golangci-lint not installed, skipping")
		return nil
	}
	return run(nil, "golangci-lint", "run")
}

// Tidy fails when go mod tidy would change go.mod or go.sum.
func Tidy() error {
	before := output("git", "status", "--porcelain", "--", "go.mod", "go.sum")
	if err := run(nil, "go", "mod", "tidy"); err != nil {
		return err
	}
	if after := output("git", "status", "--porcelain", "--", "go.mod", "go.sum"); after != before {
		return fmt.Errorf("go.mod/go.sum not tidy:\n%s", after)
	}
	return nil
}

// Serve starts the resolution API from source.
func Serve() error {
	return run(nil, "go", "run", cmdPkg, "serve")
}

// Sample resolves the sample mapping file offline against a few principals.
func Sample() error {
	return run([]string{"SKIP_TELEMETRY=true"}, "go", "run", cmdPkg, "resolve",
		"--no-journal",
		"--mapping-file", "infrastructure/usermapping/testdata/usermapping_sample.csv",
		"--source-version", "SPO",
		"--input", "-",
	)
}

// Clean removes build output, coverage files and the local journal database.
func Clean() error {
	paths := []string{binDir, "coverage.out", "coverage.html"}
	journals, _ := filepath.Glob(binaryName + ".db*")
	for _, p := range append(paths, journals...) {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

// Verify runs the checks CI runs.
func Verify() error {
	for _, step := range []func() error{Tidy, Lint, Build, Test} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
