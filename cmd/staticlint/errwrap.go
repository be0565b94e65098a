package main

import (
	"go/ast"
	"go/constant"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// ErrWrapAnalyzer reports fmt.Errorf calls that format an error without %w.
var ErrWrapAnalyzer = &analysis.Analyzer{
	Name:     "errwrap",
	Doc:      "reports fmt.Errorf calls that receive an error but do not wrap it with %w",
	Run:      runErrWrap,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
}

var errorType = types.Universe.Lookup("error").Type().Underlying().(*types.Interface)

func runErrWrap(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		f, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
		if !ok || f.FullName() != "fmt.Errorf" || len(call.Args) < 2 {
			return
		}

		format := pass.TypesInfo.Types[call.Args[0]].Value
		if format == nil || format.Kind() != constant.String {
			return
		}
		if strings.Contains(constant.StringVal(format), "%w") {
			return
		}

		for _, arg := range call.Args[1:] {
			t := pass.TypesInfo.TypeOf(arg)
			if t == nil {
				continue
			}
			if b, ok := t.(*types.Basic); ok && b.Info()&types.IsUntyped != 0 {
				continue
			}
			if types.Implements(t, errorType) {
				pass.Reportf(arg.Pos(), "error passed to fmt.Errorf without %%w; errors.Is will not see it")
				return
			}
		}
	})

	return nil, nil
}
