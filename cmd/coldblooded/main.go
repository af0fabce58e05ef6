// Command coldblooded manages the shop's inventory, subscriptions and
// storefront, and serves the admin API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
func setupLogger(stdout, stderr io.Writer, logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdout = io.MultiWriter(stdout, f)
		stderr = io.MultiWriter(stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdout, opts),
		stderr: slog.NewTextHandler(stderr, opts),
	}))
	return cleanup, nil
}

// Exit statuses.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errDenied makes a command exit 1 without an extra error line; the
// command has already explained why.
var errDenied = errors.New("denied")

type command struct {
	usage string
	help  string
	run   func(a *app, args []string) error
}

var commands = map[string]command{
	"add":        {"add [-category c] [-qty n] <id> <name> <variant> <price>", "add an item with an explicit id", cmdAdd},
	"new":        {"new [-qty n] <category> <name> <variant> <price>", "add an item with a generated id", cmdNew},
	"list":       {"list [-category c] [-q term]", "print items as JSON", cmdList},
	"sell":       {"sell <id>", "mark an item SOLD (counter sale, no shipping)", cmdSell},
	"ship":       {"ship -zip <code> [-sub SUB-NNNN] <id>", "clear the destination and mark the item SOLD", cmdShip},
	"check":      {"check -zip <code>", "classify shipping safety; exits 1 when DENIED", cmdCheck},
	"reinstate":  {"reinstate <id> <reason>", "return a SOLD item to AVAILABLE", cmdReinstate},
	"feed":       {"feed [-date YYYY-MM-DD] <id> <food type>", "append to an animal's feeding log", cmdFeed},
	"image":      {"image [-publish] <id> <file>", "store a photo for an item", cmdImage},
	"subscribe":  {"subscribe <user> <item> <weeks>", "create a recurring shipment", cmdSubscribe},
	"advance":    {"advance <sub id>", "move a subscription to its next ship date", cmdAdvance},
	"sub-status": {"sub-status <sub id> <ACTIVE|PAUSED|CANCELLED>", "change a subscription's status", cmdSubStatus},
	"subs":       {"subs", "print subscriptions as JSON", cmdSubs},
	"due":        {"due [-as-of YYYY-MM-DD]", "list subscriptions due to ship", cmdDue},
	"lead":       {"lead <name> <email> <message>", "record a storefront lead", cmdLead},
	"leads":      {"leads", "print leads as JSON", cmdLeads},
	"publish":    {"publish", "push the catalog to the storefront repository", cmdPublish},
	"serve":      {"serve [-addr host:port] [-user name]", "run the admin API", cmdServe},
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: coldblooded [-c config.yaml] [-l log file] <command> [flags] [args]

Commands:
`)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-58s %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprint(w, `
Flags:
  -c, -config <path>   config file (default: coldblooded.yaml; missing file uses defaults)
  -l, -log <path>      also write logs to this file
  -h, -help            show this help and exit

Environment variables prefixed CBH_ override the config file, e.g. CBH_GITHUB_TOKEN.
`)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coldblooded", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath string
	fs.StringVar(&configPath, "config", "coldblooded.yaml", "")
	fs.StringVar(&configPath, "c", "coldblooded.yaml", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() { usage(stdout) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return exitUsage
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		if name == "help" {
			usage(stdout)
			return exitOK
		}
		fmt.Fprintf(stderr, "unknown command: %s\n\n", name)
		usage(stderr)
		return exitUsage
	}

	closeLog, err := setupLogger(stdout, stderr, logPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer closeLog()

	a, err := newApp(configPath, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer a.close()

	err = cmd.run(a, fs.Args()[1:])
	var uerr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errDenied):
		return exitError
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "%s\nusage: coldblooded %s\n", uerr.msg, cmd.usage)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}
