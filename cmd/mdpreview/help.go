package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Serve a live preview over HTTP and WebSocket")
	fmt.Fprintln(w, "  render     Render a markdown file to HTML")
	fmt.Fprintln(w, "  export     Export a markdown file as md, txt or pdf")
	fmt.Fprintln(w, "  engines    List engines and their readiness")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  doctor     Check the browser and system setup")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mdpreview help <command>' for details on a specific command.")
}

// printCommonUsage prints the flags every command accepts.
func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Log every render cycle")
}

// printRenderFlagsUsage prints the engine selection flags.
func printRenderFlagsUsage(w io.Writer) {
	fmt.Fprintln(w, "Engines:")
	fmt.Fprintln(w, "  -m, --markup <id>         Markup engine: goldmark, gomarkdown")
	fmt.Fprintln(w, "      --math <id>           Math engine: katex, mathjax, none")
	fmt.Fprintln(w, "      --safe                Strip raw HTML from the source")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Styling:")
	fmt.Fprintln(w, "      --css <path>          Extra stylesheet file")
	fmt.Fprintln(w, "      --asset-path <dir>    Custom asset directory")
	fmt.Fprintln(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview serve [file] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve a live preview. With a file, the page is read-only and follows")
	fmt.Fprintln(w, "the file as it is saved. Without one, the page has an editor.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -a, --addr <host:port>    Listen address (default 127.0.0.1:8080)")
	fmt.Fprintln(w, "  -d, --debounce <dur>      Quiet period before a render (default 300ms)")
	fmt.Fprintln(w, "  -w, --workers <n>         Browsers shared by exports (0 = auto)")
	fmt.Fprintln(w, "      --allow-origin <o>    Allowed WebSocket origin, repeatable")
	fmt.Fprintln(w, "      --log-format <s>      Log format: text, json")
	fmt.Fprintln(w)
	printRenderFlagsUsage(w)
	printCommonUsage(w)
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview render <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run one render cycle and print the committed HTML.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file (default stdout)")
	fmt.Fprintln(w)
	printRenderFlagsUsage(w)
	printCommonUsage(w)
}

// printExportUsage prints usage for the export command.
func printExportUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview export <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render a file and export the result. The default file name is")
	fmt.Fprintln(w, "export_<timestamp>.<format> in the current directory.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export:")
	fmt.Fprintln(w, "  -f, --format <s>          Format: md, txt, pdf (default pdf)")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory")
	fmt.Fprintln(w, "  -t, --timeout <dur>       Page load timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page:")
	fmt.Fprintln(w, "  -p, --page-size <s>       Page size: a4, letter, legal")
	fmt.Fprintln(w, "      --margin <f>          Margin in points (0-144)")
	fmt.Fprintln(w)
	printRenderFlagsUsage(w)
	printCommonUsage(w)
}

// printEnginesUsage prints usage for the engines command.
func printEnginesUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview engines [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "List the built-in engines by category and whether each is ready.")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printConfigUsage prints usage for the config command.
func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview config [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the configuration after merging defaults, the config file")
	fmt.Fprintln(w, "and MDPREVIEW_* environment variables, as YAML.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "      --defaults            Print built-in defaults only")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdpreview doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check Chrome, the environment and the temp directory.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "serve":
		printServeUsage(env.Stdout)
	case "render":
		printRenderUsage(env.Stdout)
	case "export":
		printExportUsage(env.Stdout)
	case "engines":
		printEnginesUsage(env.Stdout)
	case "config":
		printConfigUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mdpreview version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mdpreview help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
