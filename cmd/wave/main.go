package main

import (
	"fmt"
	"os"

	"github.com/wavesend/wavesend/internal/cli/receiver"
	"github.com/wavesend/wavesend/internal/cli/sender"
	"github.com/wavesend/wavesend/internal/termio"
)

const version = "v0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}
	if hasVersionFlag(args) {
		fmt.Fprintf(termio.Stdout(), "wave %s\n", version)
		return
	}

	switch args[0] {
	case "send":
		sender.Run(args[1:])
	case "receive":
		receiver.Run(args[1:])
	default:
		if hasHelpFlag(args) {
			printUsage()
			return
		}
		fmt.Fprintf(termio.Stderr(), "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(termio.Stderr(), "usage: wave <command> [args]")
	fmt.Fprintln(termio.Stderr(), "commands:")
	fmt.Fprintln(termio.Stderr(), "  send a file to another machine")
	fmt.Fprintln(termio.Stderr(), "  receive a file using a session code")
	fmt.Fprintln(termio.Stderr(), "quick examples:")
	fmt.Fprintln(termio.Stderr(), "  wave send report.pdf")
	fmt.Fprintln(termio.Stderr(), "  wave receive 482913 --out-dir ./downloads")
	fmt.Fprintln(termio.Stderr(), "to learn detailed usage:")
	fmt.Fprintln(termio.Stderr(), "  wave send --help")
	fmt.Fprintln(termio.Stderr(), "  wave receive --help")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}
