package identity

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// Key selection must stay descriptor-only: it may never resolve or read
// private key material.
func TestArchitecture_FiltersNeverResolvePrivateKeys(t *testing.T) {
	forbidden := map[string]struct{}{
		"Get":              {},
		"GetResolve":       {},
		"PrivateKeyData":   {},
		"Sign":             {},
		"DerivePrivateKey": {},
	}

	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve current test file path")
	}
	file := filepath.Join(filepath.Dir(currentFile), "filters.go")

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, file, nil, 0)
	if err != nil {
		t.Fatalf("parse file %s: %v", file, err)
	}
	var violations []string
	ast.Inspect(node, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if _, isForbidden := forbidden[sel.Sel.Name]; isForbidden {
			pos := fset.Position(sel.Sel.Pos())
			violations = append(violations, fmt.Sprintf("filters.go:%d calls %s", pos.Line, sel.Sel.Name))
		}
		return true
	})

	if len(violations) == 0 {
		return
	}
	t.Fatalf("key selection must not touch private keys:\n- %s", strings.Join(violations, "\n- "))
}
