// lox CLI - runs scripts, an interactive REPL, the evaluation server and the
// language server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/lox/client"
	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/history"
	"github.com/chazu/lox/manifest"
	"github.com/chazu/lox/server"
	"github.com/chazu/lox/syntax"
)

var log = commonlog.GetLogger("lox.cli")

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args and returns the process exit code.
func run(args []string) int {
	fs := flag.NewFlagSet("lox", flag.ContinueOnError)
	verbose := fs.Int("v", -1, "Log verbosity 0-5 (overrides lox.toml)")
	interactive := fs.Bool("i", false, "Start the REPL even when lox.toml names an entry script")
	dumpTokens := fs.Bool("tokens", false, "Print the token stream and exit")
	dumpAST := fs.Bool("ast", false, "Print the syntax tree and exit")
	noConfig := fs.Bool("no-config", false, "Ignore lox.toml")
	serveMode := fs.Bool("serve", false, "Start the evaluation server (gRPC + Connect HTTP/JSON)")
	servePort := fs.Int("port", 0, "Evaluation server port (used with -serve; default from lox.toml)")
	lspMode := fs.Bool("lsp", false, "Start the language server on stdio")
	remote := fs.String("remote", "", "Evaluate on the server at host:port instead of locally")
	historyPath := fs.String("history", "", "SQLite transcript database (overrides lox.toml)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lox [options] [script]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a lox script, or starts a REPL when no script is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lox                          # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  lox hello.lox                # Run a script\n")
		fmt.Fprintf(os.Stderr, "  lox -ast hello.lox           # Print the syntax tree\n")
		fmt.Fprintf(os.Stderr, "  lox -history ~/.lox.db       # REPL with a persistent transcript\n")
		fmt.Fprintf(os.Stderr, "\nServers:\n")
		fmt.Fprintf(os.Stderr, "  lox -serve -port 8080        # Evaluation server on :8080\n")
		fmt.Fprintf(os.Stderr, "  lox -remote localhost:8080   # REPL against a running server\n")
		fmt.Fprintf(os.Stderr, "  lox -lsp                     # Language server for editors\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return driver.ExitOK
		}
		return driver.ExitUsage
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return driver.ExitUsage
	}

	m := manifest.Default()
	if !*noConfig {
		found, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return driver.ExitUsage
		}
		if found != nil {
			m = found
		}
	}
	if *verbose >= 0 {
		m.Log.Verbosity = *verbose
	}
	if *servePort > 0 {
		m.Server.Addr = fmt.Sprintf(":%d", *servePort)
	}
	if *historyPath != "" {
		m.REPL.History = *historyPath
	}
	configureLogging(m)
	if m.Dir != "" {
		log.Infof("using %s/%s", m.Dir, manifest.FileName)
	}

	switch {
	case *lspMode:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
			return driver.ExitSoftware
		}
		return driver.ExitOK
	case *serveMode:
		return serve(m)
	case *remote != "":
		return runRemote(*remote, fs.Arg(0), m)
	}

	script := fs.Arg(0)
	if script == "" && !*interactive {
		script = m.EntryPath()
	}

	sink := diag.NewConsole(os.Stderr)
	d := driver.New(os.Stdout, sink)

	if script != "" && (*dumpTokens || *dumpAST) {
		return dump(d, script, *dumpTokens)
	}

	for _, prelude := range m.PreludePaths() {
		if res := d.RunFile(prelude); !res.OK() {
			if res.Status == driver.StatusIOError {
				fmt.Fprintf(os.Stderr, "Error: %v\n", res.Err)
			}
			return res.Status.ExitCode()
		}
	}

	if script != "" {
		res := d.RunFile(script)
		if res.Status == driver.StatusIOError {
			fmt.Fprintf(os.Stderr, "Error: %v\n", res.Err)
		}
		return res.Status.ExitCode()
	}

	store, err := openHistory(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if store != nil {
		defer store.Close()
	}

	r := newREPL(d, os.Stdout, os.Stderr, m.REPL.Prompt)
	r.store = store
	r.showAST = *dumpAST
	r.showTokens = *dumpTokens
	if err := r.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIOErr
	}
	return driver.ExitOK
}

func configureLogging(m *manifest.Manifest) {
	var path *string
	if p := m.LogFilePath(); p != "" {
		path = &p
	}
	commonlog.Configure(m.Log.Verbosity, path)
}

func openHistory(m *manifest.Manifest) (*history.Store, error) {
	path := m.HistoryPath()
	if path == "" {
		return nil, nil
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	log.Infof("recording history in %s", store.Path())
	return store, nil
}

// dump prints the tokens or syntax tree of a script without running it.
func dump(d *driver.Driver, path string, tokens bool) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIOErr
	}

	if tokens {
		for _, tok := range d.Tokens(string(source)) {
			fmt.Printf("%4d:%-3d %s\n", tok.Line, tok.Column, tok)
		}
		if d.Flags().HadError() {
			return driver.ExitDataErr
		}
		return driver.ExitOK
	}

	stmts, err := d.Parse(string(source))
	if err != nil {
		return driver.ExitDataErr
	}
	fmt.Println(syntax.Print(stmts))
	return driver.ExitOK
}

// serve runs the evaluation server until it fails.
func serve(m *manifest.Manifest) int {
	var opts []server.Option
	store, err := openHistory(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIOErr
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, server.WithHistory(store))
	}

	srv := server.New(opts...)
	defer srv.Stop()
	if err := srv.ListenAndServe(m.Server.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return driver.ExitSoftware
	}
	return driver.ExitOK
}

// runRemote evaluates a script, or runs a REPL, against a remote server.
func runRemote(addr, script string, m *manifest.Manifest) int {
	c, err := client.Dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIOErr
	}
	defer c.Close()

	if script == "" {
		r := newRemoteREPL(c, os.Stdout, os.Stderr, m.REPL.Prompt)
		if err := r.Run(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return driver.ExitIOErr
		}
		return driver.ExitOK
	}

	source, err := os.ReadFile(script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return driver.ExitIOErr
	}
	res, err := c.Evaluate(context.Background(), "", string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Remote error: %v\n", err)
		return driver.ExitIOErr
	}
	fmt.Print(res.Output)
	for _, d := range res.Diagnostics {
		fmt.Fprintln(os.Stderr, d.Text)
	}
	return remoteExitCode(res.Status)
}

func remoteExitCode(status string) int {
	switch status {
	case driver.StatusOK.String():
		return driver.ExitOK
	case driver.StatusSyntaxError.String():
		return driver.ExitDataErr
	case driver.StatusRuntimeError.String():
		return driver.ExitSoftware
	}
	return driver.ExitIOErr
}
