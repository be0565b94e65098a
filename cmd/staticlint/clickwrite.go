package main

import (
	"go/ast"
	"go/token"
	"go/types"
	"path"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// clickOwners are the package names allowed to write URLRecord.Clicks.
var clickOwners = map[string]bool{
	"storage":    true,
	"repository": true,
}

// ClickWriteAnalyzer reports writes to URLRecord.Clicks outside the store packages.
var ClickWriteAnalyzer = &analysis.Analyzer{
	Name:     "clickwrite",
	Doc:      "reports writes to URLRecord.Clicks outside storage and repository",
	Run:      runClickWrite,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

func runClickWrite(pass *analysis.Pass) (any, error) {
	if clickOwners[path.Base(pass.Pkg.Path())] {
		return nil, nil
	}

	report := func(expr ast.Expr) {
		if isClicksField(pass.TypesInfo, expr) {
			pass.Reportf(expr.Pos(), "URLRecord.Clicks written outside the store; use IncrementClicks")
		}
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	nodes := []ast.Node{(*ast.AssignStmt)(nil), (*ast.IncDecStmt)(nil), (*ast.UnaryExpr)(nil)}
	insp.Preorder(nodes, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				report(lhs)
			}
		case *ast.IncDecStmt:
			report(n.X)
		case *ast.UnaryExpr:
			if n.Op == token.AND {
				report(n.X)
			}
		}
	})

	return nil, nil
}

func isClicksField(info *types.Info, expr ast.Expr) bool {
	sel, ok := ast.Unparen(expr).(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Clicks" {
		return false
	}

	selection, ok := info.Selections[sel]
	if !ok || selection.Kind() != types.FieldVal {
		return false
	}

	recv := selection.Recv()
	if p, ok := recv.(*types.Pointer); ok {
		recv = p.Elem()
	}
	named, ok := recv.(*types.Named)
	return ok && named.Obj().Name() == "URLRecord"
}
