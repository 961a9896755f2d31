package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateHash_SkipsInfra(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, err := GenerateHash(root)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Join(root, "infra"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "infra", "main.go"), []byte("package infra"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := GenerateHash(root)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Errorf("infra change altered hash: %s != %s", before, after)
	}

	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main // edit"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := GenerateHash(root)
	if err != nil {
		t.Fatal(err)
	}
	if changed == before {
		t.Error("source change did not alter hash")
	}
}
