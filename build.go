//go:build ignore

// build.go - aqpanel build driver
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, build, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	version = "1.2.0"
	module  = "aqpanel"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	Race    bool
	Version string
}

var (
	rootDir string
	distDir string

	// Executable names (key = cmd directory, value = output name)
	executables = map[string]string{
		"collinearity-report": "collinearity-report",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")

	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); os.IsNotExist(err) {
		panic(fmt.Sprintf("go.mod not found in %s; run build.go from the module root", rootDir))
	}
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	race := flag.Bool("race", true, "Run tests with the race detector")
	ver := flag.String("version", version, "Version stamped into the binary")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{Verbose: *verbose, Race: *race, Version: *ver}

	switch *target {
	case "all":
		runTests(ctx)
		buildAll(ctx)
	case "build":
		buildAll(ctx)
	case "test":
		runTests(ctx)
	case "clean":
		clean(ctx.Verbose)
	case "release":
		buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "     aqpanel - Build System " + version + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func buildAll(ctx *BuildContext) {
	printInfo("Building all executables...")
	if err := os.MkdirAll(distDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create dist directory: %v", err))
		os.Exit(1)
	}
	for name := range executables {
		buildExecutable(name, ctx, "")
	}
	copyConfigFiles(ctx.Verbose)
}

func buildExecutable(name string, ctx *BuildContext, extraFlags string) {
	exeName := executables[name]
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}
	printInfo(fmt.Sprintf("Building %s...", name))

	outputPath := filepath.Join(distDir, exeName)
	ldflags := fmt.Sprintf("-X %s/internal/config.AppVersion=%s %s", module, ctx.Version, extraFlags)

	args := []string{"build"}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "-ldflags", strings.TrimSpace(ldflags), "-o", outputPath, "./cmd/"+name)

	if err := goCommand(ctx.Verbose, args...); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, float64(info.Size())/1024/1024))
	}
}

func runTests(ctx *BuildContext) {
	printInfo("Running Go tests...")
	args := []string{"test"}
	if ctx.Race {
		args = append(args, "-race")
	}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	if err := goCommand(true, args...); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

// Release binaries are stripped
func buildRelease(ctx *BuildContext) {
	printInfo("Building release...")
	clean(ctx.Verbose)
	if err := os.MkdirAll(distDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create dist directory: %v", err))
		os.Exit(1)
	}
	for name := range executables {
		buildExecutable(name, ctx, "-s -w")
	}
	copyConfigFiles(ctx.Verbose)
}

func clean(verbose bool) {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil && !os.IsNotExist(err) {
		printError(fmt.Sprintf("Failed to clean dist directory: %v", err))
	}
	if verbose {
		printInfo("Removed " + distDir)
	}
	printSuccess("Build artifacts cleaned")
}

func copyConfigFiles(verbose bool) {
	src := filepath.Join(rootDir, "configs", "aqpanel.yaml")
	dest := filepath.Join(distDir, "configs", "aqpanel.yaml")
	if err := copyFile(src, dest); err != nil {
		printWarning(fmt.Sprintf("Failed to copy example config: %v", err))
		return
	}
	if verbose {
		printInfo("Copied " + src)
	}
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}

func goCommand(stream bool, args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	if stream {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-race=false] [-version=X.Y.Z]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all       Run tests, then build every executable (default)")
	fmt.Println("  build     Build every executable into dist/")
	fmt.Println("  test      Run all Go tests")
	fmt.Println("  clean     Remove dist/")
	fmt.Println("  release   Clean, then build stripped executables")
}
