package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/chazu/lox/client"
	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/history"
	"github.com/chazu/lox/interpreter"
	"github.com/chazu/lox/syntax"
	"github.com/chazu/lox/value"
)

const defaultHistoryLimit = 20

// repl is an interactive loop over either a local driver or a remote server.
// Each line is one unit; globals persist between lines.
type repl struct {
	drv    *driver.Driver
	remote *client.Client

	// session labels history entries locally and names the server-side
	// session remotely.
	session string
	store   *history.Store

	out        io.Writer
	errOut     io.Writer
	sink       diag.Sink
	prompt     string
	transcript bytes.Buffer

	showAST    bool
	showTokens bool
}

func newREPL(d *driver.Driver, out, errOut io.Writer, prompt string) *repl {
	r := &repl{
		drv:     d,
		session: uuid.NewString(),
		out:     out,
		errOut:  errOut,
		sink:    diag.NewConsole(errOut),
		prompt:  prompt,
	}
	d.SetOutput(io.MultiWriter(out, &r.transcript))
	return r
}

func newRemoteREPL(c *client.Client, out, errOut io.Writer, prompt string) *repl {
	return &repl{
		remote: c,
		out:    out,
		errOut: errOut,
		sink:   diag.NewConsole(errOut),
		prompt: prompt,
	}
}

// Run reads lines from in until EOF or an exit command.
func (r *repl) Run(in io.Reader) error {
	if r.remote != nil {
		if err := r.openRemoteSession(); err != nil {
			return err
		}
		defer func() {
			if err := r.remote.DestroySession(context.Background(), r.session); err != nil {
				log.Warningf("destroying session: %v", err)
			}
		}()
		fmt.Fprintf(r.out, "lox REPL on %s (type 'exit' to quit, ':help' for commands)\n", r.remote.Target())
	} else {
		fmt.Fprintln(r.out, "lox REPL (type 'exit' to quit, ':help' for commands)")
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, r.prompt)
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, ":"):
			r.command(line)
		default:
			r.eval(line)
		}
	}

	fmt.Fprintln(r.out)
	return scanner.Err()
}

func (r *repl) eval(line string) {
	if r.showTokens {
		for _, tok := range syntax.Tokenize(line) {
			fmt.Fprintf(r.out, "%4d:%-3d %s\n", tok.Line, tok.Column, tok)
		}
	}
	if r.showAST {
		r.printAST(line, nil)
	}

	if r.remote != nil {
		r.evalRemote(line)
		return
	}

	r.transcript.Reset()
	v, echo, res := r.drv.RunLine(line)
	if echo {
		fmt.Fprintln(r.out, v)
		fmt.Fprintln(&r.transcript, v)
	}
	r.record(line, res.Status, r.transcript.String())
}

func (r *repl) evalRemote(line string) {
	res, err := r.remote.Evaluate(context.Background(), r.session, line)
	if err != nil {
		fmt.Fprintf(r.errOut, "Remote error: %v\n", err)
		return
	}
	io.WriteString(r.out, res.Output)
	if res.HasValue {
		fmt.Fprintln(r.out, res.Value)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintln(r.errOut, d.Text)
	}
}

func (r *repl) openRemoteSession() error {
	id, err := r.remote.CreateSession(context.Background(), "repl")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	r.session = id
	return nil
}

func (r *repl) record(source string, status driver.Status, output string) {
	if r.store == nil {
		return
	}
	entry := history.Entry{
		Session: r.session,
		Source:  source,
		Status:  status.String(),
		Output:  output,
	}
	if _, err := r.store.Record(context.Background(), entry); err != nil {
		log.Warningf("recording history: %v", err)
	}
}

// command handles REPL meta-commands.
func (r *repl) command(line string) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :env              List global variables")
		fmt.Fprintln(r.out, "  :reset            Clear every global variable")
		fmt.Fprintln(r.out, "  :save FILE        Save globals to FILE")
		fmt.Fprintln(r.out, "  :load FILE        Load globals from FILE")
		fmt.Fprintln(r.out, "  :history [N]      Show the last N lines of this session")
		fmt.Fprintln(r.out, "  :sessions         List sessions in the history database")
		fmt.Fprintln(r.out, "  :ast SOURCE       Print the syntax tree of SOURCE")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
	case ":env":
		r.listGlobals()
	case ":reset":
		r.reset()
	case ":save":
		if r.localOnly(name) && r.requireArg(name, arg) {
			r.save(arg)
		}
	case ":load":
		if r.localOnly(name) && r.requireArg(name, arg) {
			r.load(arg)
		}
	case ":history":
		if r.localOnly(name) {
			r.showHistory(arg)
		}
	case ":sessions":
		if r.localOnly(name) {
			r.listSessions()
		}
	case ":ast":
		if r.requireArg(name, arg) {
			r.printAST(arg, r.sink)
		}
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", name)
	}
}

func (r *repl) localOnly(name string) bool {
	if r.remote != nil {
		fmt.Fprintf(r.out, "%s is not available in remote mode\n", name)
		return false
	}
	return true
}

func (r *repl) requireArg(name, arg string) bool {
	if arg == "" {
		fmt.Fprintf(r.out, "Usage: %s ARG (type :help for commands)\n", name)
		return false
	}
	return true
}

func (r *repl) listGlobals() {
	var lines []string
	if r.remote != nil {
		globals, err := r.remote.Globals(context.Background(), r.session)
		if err != nil {
			fmt.Fprintf(r.errOut, "Remote error: %v\n", err)
			return
		}
		for name, x := range globals {
			v, err := value.FromAny(x)
			if err != nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s = %#v", name, v))
		}
		sort.Strings(lines)
	} else {
		for _, b := range r.drv.Environment().Globals() {
			lines = append(lines, fmt.Sprintf("%s = %#v", b.Name, b.Value))
		}
	}

	if len(lines) == 0 {
		fmt.Fprintln(r.out, "(no globals)")
		return
	}
	for _, l := range lines {
		fmt.Fprintln(r.out, l)
	}
}

func (r *repl) reset() {
	if r.remote != nil {
		if err := r.remote.DestroySession(context.Background(), r.session); err != nil {
			log.Warningf("destroying session: %v", err)
		}
		if err := r.openRemoteSession(); err != nil {
			fmt.Fprintf(r.errOut, "Remote error: %v\n", err)
			return
		}
	} else {
		r.drv.ResetEnvironment()
	}
	fmt.Fprintln(r.out, "Globals cleared")
}

func (r *repl) save(path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	err = interpreter.SaveSnapshot(f, r.drv.Environment())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "Saved %d globals to %s\n", len(r.drv.Environment().Globals()), path)
}

func (r *repl) load(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	defer f.Close()

	if err := interpreter.LoadSnapshot(f, r.drv.Environment()); err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "Loaded globals from %s\n", path)
}

func (r *repl) showHistory(arg string) {
	if r.store == nil {
		fmt.Fprintln(r.out, "History is disabled (set [repl] history in lox.toml or pass -history)")
		return
	}

	limit := defaultHistoryLimit
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			fmt.Fprintf(r.out, "Usage: :history [N]\n")
			return
		}
		limit = n
	}

	entries, err := r.store.Recent(context.Background(), r.session, limit)
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	// Recent is newest first; print in the order the lines were entered.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(r.out, "%4d  %-13s %s\n", e.ID, e.Status, e.Source)
	}
}

func (r *repl) listSessions() {
	if r.store == nil {
		fmt.Fprintln(r.out, "History is disabled (set [repl] history in lox.toml or pass -history)")
		return
	}
	sessions, err := r.store.Sessions(context.Background())
	if err != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", err)
		return
	}
	for _, id := range sessions {
		marker := " "
		if id == r.session {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s\n", marker, id)
	}
}

// printAST prints source as an expression if it is one, otherwise as a
// program. Syntax errors go to sink, which may be nil.
func (r *repl) printAST(source string, sink diag.Sink) {
	scan := diag.NewFlags(nil)
	tokens := syntax.NewScanner(source, scan).ScanTokens()
	if !scan.HadError() {
		if expr, err := syntax.NewParser(tokens, nil).ParseExpression(); err == nil {
			fmt.Fprintln(r.out, syntax.Print(expr))
			return
		}
	}

	stmts, err := syntax.ParseProgram(source, sink)
	if err != nil {
		return
	}
	fmt.Fprintln(r.out, syntax.Print(stmts))
}
