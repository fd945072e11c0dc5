package util

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the compiler configuration assembled from command line arguments and an optional configuration file.
type Options struct {
	Src         string // Path to source file.
	Out         string // Path to output file.
	Threads     int    // Thread count.
	Verbose     bool   // Set true if compiler should log statistical data to stderr.
	TokenStream bool   // Set true if compiler should output token stream and exit.
	LLVM        bool   // Set true if the source is LLVM IR or bitcode rather than textual LIR.
	Color       bool   // Set true to let non-interfering virtual registers share Glulx locals.
	NoOpt       bool   // Set true to disable the unsigned division rewrite and store folding.
	Info        string // Path of the per-function info YAML dump. Empty disables the dump.
	EmitLIR     bool   // Set true if compiler should print the parsed LIR and exit.
	Watch       bool   // Set true to recompile whenever the source file changes.
	Progress    bool   // Set true to show a progress bar while compiling functions.
	Config      string // Path to a YAML configuration file.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "glulxc 1.0"

// ---------------------
// ----- Functions -----
// ---------------------

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	opt, err := parseArgs(os.Args[1:])
	if err != nil {
		return opt, err
	}
	if len(opt.Config) > 0 {
		c, err := LoadConfig(opt.Config)
		if err != nil {
			return opt, err
		}
		opt = c.Merge(opt)
	}
	if opt.Threads == 0 {
		opt.Threads = 1
	}
	return opt, nil
}

// parseArgs parses the argument list args. A trailing argument that is not a flag names the source file.
func parseArgs(args []string) (Options, error) {
	opt := Options{}
	if len(args) == 0 {
		return opt, nil
	}
	last := len(args)
	if !strings.HasPrefix(args[last-1], "-") || args[last-1] == "-" {
		opt.Src = args[last-1]
		last--
	}
	for i1 := 0; i1 < last; i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp(os.Stdout)
			os.Exit(0)
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-ll":
			// Input is LLVM IR or bitcode.
			opt.LLVM = true
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		case "-ts":
			// Output token stream.
			opt.TokenStream = true
		case "-color":
			// Colour locals.
			opt.Color = true
		case "-O0":
			// Disable optimising rewrites.
			opt.NoOpt = true
		case "-emit-lir":
			// Print parsed LIR.
			opt.EmitLIR = true
		case "-watch":
			// Recompile on change.
			opt.Watch = true
		case "-progress":
			// Progress bar.
			opt.Progress = true
		case "-o", "-t", "-info", "-config":
			if i1+1 >= last {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected argument to %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				// Output file.
				opt.Out = args[i1+1]
			case "-t":
				// Thread count.
				t, err := parseThreads(args[i1+1])
				if err != nil {
					return opt, err
				}
				opt.Threads = t
			case "-info":
				// Function info dump.
				opt.Info = args[i1+1]
			case "-config":
				// Configuration file.
				opt.Config = args[i1+1]
			}
			i1++
		default:
			return opt, fmt.Errorf("unexpected flag: %s", args[i1])
		}
	}
	return opt, nil
}

// parseThreads parses and range checks a thread count.
func parseThreads(s string) (int, error) {
	t, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("expected integer thread count, got: %s", s)
	}
	if t < 1 || t > maxThreads {
		return 0, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
	}
	return t, nil
}

// printHelp prints a helpful usage message to w.
func printHelp(w io.Writer) {
	tw := tabwriter.NewWriter(w, 6, 1, 1, ' ', 0)
	_, _ = fmt.Fprintln(tw, "usage: glulxc [flags] source")
	_, _ = fmt.Fprintln(tw, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(tw, "--h, --help")
	_, _ = fmt.Fprintln(tw, "-color\tLet virtual registers with disjoint live ranges share Glulx locals.")
	_, _ = fmt.Fprintln(tw, "-config\tPath to a YAML configuration file. Command line flags take precedence.")
	_, _ = fmt.Fprintln(tw, "-emit-lir\tPrint the parsed LIR module and exit.")
	_, _ = fmt.Fprintln(tw, "-info\tPath of a YAML file receiving per-function frame and local information.")
	_, _ = fmt.Fprintln(tw, "-ll\tThe source is LLVM IR or bitcode.")
	_, _ = fmt.Fprintln(tw, "-o\tPath and name of the output file. Defaults to stdout.")
	_, _ = fmt.Fprintln(tw, "-O0\tDisable the unsigned division rewrite and store folding.")
	_, _ = fmt.Fprintln(tw, "-progress\tShow a progress bar while compiling functions.")
	_, _ = fmt.Fprintf(tw, "-t\tNumber of threads to run in parallel. Must be in range [1, %d].\n", maxThreads)
	_, _ = fmt.Fprintln(tw, "-ts\tOutput the tokens of the source code and exit.")
	_, _ = fmt.Fprintln(tw, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(tw, "--v, --version")
	_, _ = fmt.Fprintln(tw, "-vb\tVerbose mode: log compiler statistics to stderr.")
	_, _ = fmt.Fprintln(tw, "-watch\tRecompile whenever the source file changes.")
	_ = tw.Flush()
}
