package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/syntax"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lox-lsp"

var lspLog = commonlog.GetLogger("lox.lsp")

// keywordDocs is shown on hover and as completion detail.
var keywordDocs = map[string]string{
	"and":    "Logical and. Returns the left operand if it is falsey, otherwise the right.",
	"or":     "Logical or. Returns the left operand if it is truthy, otherwise the right.",
	"var":    "Declares a variable in the current scope: `var name = value;`",
	"print":  "Prints the display form of a value followed by a newline.",
	"if":     "Conditional: `if (cond) stmt else stmt`",
	"else":   "Alternative branch of an `if`.",
	"while":  "Loops while the condition is truthy: `while (cond) stmt`",
	"for":    "C-style loop: `for (init; cond; incr) stmt`",
	"true":   "Boolean true.",
	"false":  "Boolean false.",
	"nil":    "The absence of a value.",
	"class":  "Reserved word.",
	"fun":    "Reserved word.",
	"return": "Reserved word.",
	"super":  "Reserved word.",
	"this":   "Reserved word.",
}

// LspServer provides editor features for lox source files. Documents are
// analysed with the scanner and parser only; nothing is executed.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new language server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("lox LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	lspLog.Info("lox LSP shutting down")
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(text, word), nil
}

// declaration is a `var` statement found in a document.
type declaration struct {
	Name string
	Line int // 1-based
}

// declarations returns every name introduced by `var`, first occurrence only.
func declarations(text string) []declaration {
	tokens := syntax.Tokenize(text)
	seen := map[string]bool{}
	var out []declaration
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].Type != syntax.TokenVar || tokens[i+1].Type != syntax.TokenIdentifier {
			continue
		}
		name := tokens[i+1].Lexeme
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, declaration{Name: name, Line: tokens[i+1].Line})
	}
	return out
}

func complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	keywords := make([]string, 0, len(syntax.Keywords))
	for kw := range syntax.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			kind := protocol.CompletionItemKindKeyword
			detail := "keyword"
			name := kw
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	for _, d := range declarations(text) {
		if strings.HasPrefix(d.Name, prefix) && d.Name != prefix {
			kind := protocol.CompletionItemKindVariable
			detail := fmt.Sprintf("var (line %d)", d.Line)
			name := d.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func hover(text, word string) *protocol.Hover {
	var b strings.Builder
	if doc, ok := keywordDocs[word]; ok {
		fmt.Fprintf(&b, "**%s**\n\n%s", word, doc)
	} else {
		for _, d := range declarations(text) {
			if d.Name == word {
				fmt.Fprintf(&b, "```lox\nvar %s\n```\n\nDeclared on line %d.", d.Name, d.Line)
				break
			}
		}
	}
	if b.Len() == 0 {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := analyze(text)
	lspLog.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// analyze scans and parses text. Parser errors are ranged over the offending
// token; scanner errors cover the whole line they were found on.
func analyze(text string) []protocol.Diagnostic {
	var scanErrs diag.Collector
	tokens := syntax.NewScanner(text, &scanErrs).ScanTokens()
	p := syntax.NewParser(tokens, nil)
	p.Parse()

	diagnostics := []protocol.Diagnostic{}
	lines := strings.Split(text, "\n")

	for _, d := range scanErrs.Diagnostics() {
		line := protocol.UInteger(max(d.Line-1, 0))
		end := 0
		if int(line) < len(lines) {
			end = len(lines[line])
		}
		diagnostics = append(diagnostics, newDiagnostic(protocol.Range{
			Start: protocol.Position{Line: line, Character: 0},
			End:   protocol.Position{Line: line, Character: protocol.UInteger(end)},
		}, d.Message))
	}

	for _, e := range p.Errors() {
		tok := e.Token
		line := protocol.UInteger(max(tok.Line-1, 0))
		start := protocol.UInteger(max(tok.Column-1, 0))
		diagnostics = append(diagnostics, newDiagnostic(protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: start + protocol.UInteger(len(tok.Lexeme))},
		}, "Error"+e.Where()+": "+e.Message))
	}

	return diagnostics
}

func newDiagnostic(r protocol.Range, message string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range:    r,
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := min(int(pos.Character), len(line))

	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
