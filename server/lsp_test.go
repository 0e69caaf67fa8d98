package server

import (
	"errors"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/stackcheck/pkg/stackcheck"
)

const testDoc = `.class public Main
.super java/lang/Object

.method public static f()I
  aconst_null
  ireturn
.end method

.method public static g()V
  iconst_1
  iconst_2
  iadd
  pop
  return
.end method
`

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "  iconst_1\n  ia"
	pos := protocol.Position{Line: 1, Character: 4}
	prefix := extractPrefix(text, pos)
	if prefix != "ia" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "ia")
	}
}

func TestExtractPrefix_Underscore(t *testing.T) {
	text := "iconst_"
	pos := protocol.Position{Line: 0, Character: 7}
	prefix := extractPrefix(text, pos)
	if prefix != "iconst_" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "iconst_")
	}
}

func TestExtractPrefix_StopsAtColon(t *testing.T) {
	text := "Loop:iad"
	pos := protocol.Position{Line: 0, Character: 8}
	prefix := extractPrefix(text, pos)
	if prefix != "iad" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "iad")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "iadd"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle", "  invokevirtual Foo/bar()V", protocol.Position{Line: 0, Character: 6}, "invokevirtual"},
		{"at end", "  iadd", protocol.Position{Line: 0, Character: 6}, "iadd"},
		{"underscore", "  iconst_1", protocol.Position{Line: 0, Character: 4}, "iconst_1"},
		{"second line", "iconst_1\n  ireturn", protocol.Position{Line: 1, Character: 3}, "ireturn"},
		{"crlf", "iconst_1\r\n  pop\r\n", protocol.Position{Line: 1, Character: 5}, "pop"},
		{"blank", "   ", protocol.Position{Line: 0, Character: 1}, ""},
		{"beyond document", "iadd", protocol.Position{Line: 3, Character: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose(t *testing.T) {
	diags := diagnose(stackcheck.New(), testDoc)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1: %+v", len(diags), diags)
	}

	d := diags[0]
	if d.Message != "ireturn needs int on stack" {
		t.Errorf("message = %q", d.Message)
	}
	if d.Range.Start.Line != 5 || d.Range.End.Line != 5 {
		t.Errorf("line = %d, want 5 (0-based)", d.Range.Start.Line)
	}
	if d.Range.Start.Character != 2 || d.Range.End.Character != 9 {
		t.Errorf("columns = %d..%d, want 2..9", d.Range.Start.Character, d.Range.End.Character)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("severity should be Error")
	}
	if d.Source == nil || *d.Source != lspName {
		t.Error("source should be set")
	}
}

func TestDiagnose_Clean(t *testing.T) {
	diags := diagnose(stackcheck.New(), ".method public static h()V\n  return\n.end method\n")
	if diags == nil || len(diags) != 0 {
		t.Errorf("clean document should yield an empty, non-nil list, got %#v", diags)
	}
}

func TestDiagnose_Ignored(t *testing.T) {
	diags := diagnose(stackcheck.New(stackcheck.WithIgnored("ireturn")), testDoc)
	if len(diags) != 0 {
		t.Errorf("ignored ireturn still reported: %+v", diags)
	}
}

// ---------------------------------------------------------------------------
// Completion and hover
// ---------------------------------------------------------------------------

func TestLSP_Complete(t *testing.T) {
	lsp := NewLSP(nil, nil)
	defer lsp.worker.Stop()

	items := lsp.complete("iad")
	if len(items) != 1 || items[0].Label != "iadd" {
		t.Fatalf("complete(iad) = %+v, want [iadd]", items)
	}
	if items[0].Kind == nil || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Error("completion kind should be Keyword")
	}
	if items[0].Detail == nil || !strings.Contains(*items[0].Detail, "pushes int") {
		t.Errorf("completion detail = %v", items[0].Detail)
	}
}

func TestLSP_CompleteFamily(t *testing.T) {
	lsp := NewLSP(nil, nil)
	defer lsp.worker.Stop()

	var family *protocol.CompletionItem
	for _, item := range lsp.complete("if_i") {
		item := item
		if item.Label == "if_icmp*" {
			family = &item
		}
	}
	if family == nil {
		t.Fatal("complete(if_i) should offer the if_icmp* family")
	}
	if family.InsertText == nil || *family.InsertText != "if_icmp" {
		t.Errorf("family insert text = %v, want if_icmp", family.InsertText)
	}
}

func TestLSP_Hover(t *testing.T) {
	lsp := NewLSP(nil, []string{"checkcast"})
	defer lsp.worker.Stop()

	hover := lsp.hover("iadd")
	if hover == nil {
		t.Fatal("hover for iadd should return a result")
	}
	mc, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	if !strings.Contains(mc.Value, "pops int int (top first), pushes int") {
		t.Errorf("hover = %q", mc.Value)
	}
	if !strings.Contains(mc.Value, "iadd needs 2 ints") {
		t.Errorf("hover should show the violation message: %q", mc.Value)
	}

	mc = lsp.hover("checkcast").Contents.(protocol.MarkupContent)
	if !strings.Contains(mc.Value, "ignored") {
		t.Errorf("hover for ignored mnemonic = %q", mc.Value)
	}

	if lsp.hover("nop") != nil {
		t.Error("hover for unmodelled mnemonic should be nil")
	}
}

func TestLSP_HoverHandler(t *testing.T) {
	lsp := NewLSP(nil, nil)
	defer lsp.worker.Stop()

	lsp.docs["file:///Main.j"] = testDoc
	params := &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///Main.j"},
			Position:     protocol.Position{Line: 11, Character: 4},
		},
	}
	hover, err := lsp.textDocumentHover(nil, params)
	if err != nil {
		t.Fatal(err)
	}
	if hover == nil {
		t.Fatal("hover over iadd should return a result")
	}

	params.TextDocument.URI = "file:///Unknown.j"
	if hover, _ := lsp.textDocumentHover(nil, params); hover != nil {
		t.Error("hover in unknown document should be nil")
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

func TestWorker_Do(t *testing.T) {
	w := NewWorker(stackcheck.New())
	defer w.Stop()

	result, err := w.Do(func(sim *stackcheck.Simulator) any {
		return diagnose(sim, testDoc)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if diags := result.([]protocol.Diagnostic); len(diags) != 1 {
		t.Errorf("diagnostics = %d, want 1", len(diags))
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker(stackcheck.New())
	defer w.Stop()

	_, err := w.Do(func(*stackcheck.Simulator) any {
		panic("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}

	// The worker keeps serving after a panic.
	if v, err := w.Do(func(*stackcheck.Simulator) any { return 1 }); err != nil || v != 1 {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorker_Stopped(t *testing.T) {
	w := NewWorker(stackcheck.New())
	w.Stop()
	w.Stop()

	_, err := w.Do(func(*stackcheck.Simulator) any { return nil })
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop = %v, want ErrWorkerStopped", err)
	}
}
