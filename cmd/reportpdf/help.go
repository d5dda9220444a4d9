package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: reportpdf <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  assemble   Assemble the work items of a job file into a PDF or zip")
	fmt.Fprintln(w, "  serve      Serve report assembly over HTTP")
	fmt.Fprintln(w, "  doctor     Check Chrome, temp directory and attachment store")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'reportpdf help <command>' for details on a specific command.")
}

func printSharedFlags(w io.Writer) {
	fmt.Fprintln(w, "General:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging")
	fmt.Fprintln(w, "  -q, --quiet               Log errors only")
	fmt.Fprintln(w, "      --log-format <s>      Log format: console, json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "  -w, --workers <n>         Browser instances (0 = auto)")
	fmt.Fprintln(w, "      --timeout <d>         Page load timeout, e.g. 30s, 2m")
	fmt.Fprintln(w, "      --style <name>        CSS style name")
	fmt.Fprintln(w, "      --assets <dir>        Directory with styles/ and templates/ overrides")
	fmt.Fprintln(w, "  -p, --page-size <s>       Page size: letter, a4, legal")
	fmt.Fprintln(w, "      --orientation <s>     Orientation: portrait, landscape")
	fmt.Fprintln(w, "      --margin <f>          Margin in inches (0.25-3.0)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Attachments:")
	fmt.Fprintln(w, "      --storage-dir <dir>   Read attachment files from a directory")
	fmt.Fprintln(w, "      --dsn <url>           Read attachment files from Postgres")
}

func printAssembleUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: reportpdf assemble <job.yaml> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Assemble every work item of the job file into one PDF with a bookmark")
	fmt.Fprintln(w, "outline, or into one PDF per item archived as a zip with --bundle.")
	fmt.Fprintln(w, "The output path is printed on stdout.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory (default: next to the job file)")
	fmt.Fprintln(w, "  -b, --bundle              One PDF per work item, zipped")
	fmt.Fprintln(w)
	printSharedFlags(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes: 0 success, 1 general, 2 usage, 3 I/O, 4 browser")
}

func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: reportpdf serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve POST /v1/reports, GET /healthz and GET /metrics.")
	fmt.Fprintln(w, "A client that disconnects aborts its run.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --addr <addr>         Listen address (default from config, :8080)")
	fmt.Fprintln(w)
	printSharedFlags(w)
}

func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: reportpdf doctor [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that reports can be assembled on this machine.")
	fmt.Fprintln(w, "Exits 1 when a check fails; warnings do not fail.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "      --json                Print results as JSON")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --storage-dir <dir>   Check an attachment directory")
	fmt.Fprintln(w, "      --dsn <url>           Check a Postgres attachment store")
}

// runHelp prints help for the command named in args.
func runHelp(args []string, w io.Writer) {
	if len(args) == 0 {
		printUsage(w)
		return
	}
	switch args[0] {
	case "assemble":
		printAssembleUsage(w)
	case "serve":
		printServeUsage(w)
	case "doctor":
		printDoctorUsage(w)
	default:
		fmt.Fprintf(w, "Unknown command: %s\n\n", args[0])
		printUsage(w)
	}
}
