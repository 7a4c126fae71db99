package hubsync

import (
	"bytes"
	"strings"
	"testing"
)

func TestMappingsCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"mappings"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Expected no error but have: %v", err)
	}
	csv := out.String()
	if !strings.HasPrefix(csv, "Label,Source Property,Destination Property,Disposition,Transform,Safe Fallback") {
		t.Errorf("Expected CSV header but have: %q", csv)
	}
	if !strings.Contains(csv, "Email,email,email,synced") {
		t.Errorf("Expected email row from embedded defaults but have: %q", csv)
	}
	if !strings.Contains(csv, "skipped") {
		t.Errorf("Expected skipped rows from embedded defaults but have: %q", csv)
	}
}

func TestRootCommandPrintsHelp(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(nil)

	if err := root.Execute(); err != nil {
		t.Fatalf("Expected no error but have: %v", err)
	}
	if !strings.Contains(out.String(), "serve") || !strings.Contains(out.String(), "mappings") {
		t.Errorf("Expected help listing subcommands but have: %q", out.String())
	}
}
