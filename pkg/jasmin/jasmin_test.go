package jasmin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func loadSample(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "Main.j"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestParseInstruction(t *testing.T) {
	tests := []struct {
		raw          string
		wantOK       bool
		wantMnemonic string
		wantOperands string
	}{
		{"  iconst_0", true, "iconst_0", ""},
		{"\tinvokestatic Main/fib(I)I", true, "invokestatic", "Main/fib(I)I"},
		{"  ldc\t\"hello world\"", true, "ldc", "\"hello world\""},
		{"L12:", true, "L12:", ""},
		{"", false, "", ""},
		{"    ", false, "", ""},
		{"; a comment", false, "", ""},
		{"  .limit stack 4", false, "", ""},
		{".var 0 is x I from L0 to L1", false, "", ""},
		{".line 12", false, "", ""},
		{".catch java/lang/Exception from L1 to L2 using L3", false, "", ""},
		{".end method", false, "", ""},
	}

	for _, tt := range tests {
		in, ok := ParseInstruction(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("ParseInstruction(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if in.Mnemonic != tt.wantMnemonic {
			t.Errorf("ParseInstruction(%q) mnemonic = %q, want %q", tt.raw, in.Mnemonic, tt.wantMnemonic)
		}
		if in.Operands != tt.wantOperands {
			t.Errorf("ParseInstruction(%q) operands = %q, want %q", tt.raw, in.Operands, tt.wantOperands)
		}
		if in.Raw != tt.raw {
			t.Errorf("ParseInstruction(%q) raw = %q, want unchanged", tt.raw, in.Raw)
		}
	}
}

func TestInstructionIsLabel(t *testing.T) {
	in, _ := ParseInstruction("L1:")
	if !in.IsLabel() {
		t.Error("L1: should be a label")
	}
	in, _ = ParseInstruction("goto L1")
	if in.IsLabel() {
		t.Error("goto L1 should not be a label")
	}
}

func TestMethods(t *testing.T) {
	methods := Methods(loadSample(t))

	want := []struct {
		sig   string
		start int
		lines int
	}{
		{"<init>()V", 4, 4},
		{"fibonacci(I)I", 10, 19},
		{"printAutomata(Ljava/util/HashMap;)V", 31, 8},
		{"printAutomata(I)V", 41, 3},
		{"main([Ljava/lang/String;)V", 46, 7},
	}
	if len(methods) != len(want) {
		t.Fatalf("Methods found %d methods, want %d", len(methods), len(want))
	}
	for i, w := range want {
		m := methods[i]
		if m.Signature() != w.sig {
			t.Errorf("method %d signature = %q, want %q", i, m.Signature(), w.sig)
		}
		if m.StartLine != w.start {
			t.Errorf("%s start line = %d, want %d", w.sig, m.StartLine, w.start)
		}
		if len(m.Lines) != w.lines {
			t.Errorf("%s has %d lines, want %d", w.sig, len(m.Lines), w.lines)
		}
	}
}

func TestMethodsUnterminatedBlock(t *testing.T) {
	src := ".method public static a()V\n  return\n.method public static b()V\n  return\n"
	methods := Methods(src)
	if len(methods) != 2 {
		t.Fatalf("found %d methods, want 2", len(methods))
	}
	if len(methods[0].Lines) != 2 {
		t.Errorf("a() has %d lines, want 2 (bounded by next declaration)", len(methods[0].Lines))
	}
	// b runs to end of input, including the trailing empty line
	if len(methods[1].Lines) != 3 {
		t.Errorf("b() has %d lines, want 3", len(methods[1].Lines))
	}
}

func TestLocate(t *testing.T) {
	src := loadSample(t)

	tests := []struct {
		name, desc string
		wantSig    string
	}{
		{"fibonacci", "", "fibonacci(I)I"},
		{"printAutomata", "", "printAutomata(Ljava/util/HashMap;)V"},
		{"printAutomata", "(I)V", "printAutomata(I)V"},
		{"printAutomata", "I)V", "printAutomata(I)V"},
		{"printAutomata", "(Ljava/util/HashMap;)V", "printAutomata(Ljava/util/HashMap;)V"},
	}
	for _, tt := range tests {
		m, err := Locate(src, tt.name, tt.desc)
		if err != nil {
			t.Errorf("Locate(%q, %q) error: %v", tt.name, tt.desc, err)
			continue
		}
		if m.Signature() != tt.wantSig {
			t.Errorf("Locate(%q, %q) = %q, want %q", tt.name, tt.desc, m.Signature(), tt.wantSig)
		}
		if m.Lines[0] != ".method public static "+tt.wantSig {
			t.Errorf("Locate(%q, %q) first line = %q, want declaration", tt.name, tt.desc, m.Lines[0])
		}
	}
}

func TestLocateNotFound(t *testing.T) {
	src := loadSample(t)
	for _, tc := range [][2]string{
		{"missing", ""},
		{"fibonacci", "(J)J"},
		{"fib", ""},
	} {
		if _, err := Locate(src, tc[0], tc[1]); !errors.Is(err, ErrMethodNotFound) {
			t.Errorf("Locate(%q, %q) error = %v, want ErrMethodNotFound", tc[0], tc[1], err)
		}
	}
}

func TestStackLimit(t *testing.T) {
	m, err := Locate(loadSample(t), "fibonacci", "")
	if err != nil {
		t.Fatal(err)
	}
	n, ok := m.StackLimit()
	if !ok || n != 4 {
		t.Errorf("StackLimit = (%d, %v), want (4, true)", n, ok)
	}

	m, _ = Locate(loadSample(t), "<init>", "")
	if _, ok := m.StackLimit(); ok {
		t.Error("<init> declares no stack limit")
	}
}
