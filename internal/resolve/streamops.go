package resolve

import (
	"soul/internal/ast"
	"soul/internal/token"
)

// convertStreamOperations is pass 3: `out << value` parses as an ordinary
// Shl BinaryOp (the parser cannot tell a stream write from a real left
// shift until the LHS is resolved); once the LHS has resolved to an output
// endpoint or an array-element access into one, rewrite it into
// WriteToEndpoint.
func convertStreamOperations(m ast.Module, ctx *Context) passResult {
	var res passResult
	walkModuleExprs(m, func(scope ast.Scope, e ast.Expr) (ast.Expr, bool) {
		bin, ok := e.(*ast.BinaryOp)
		if !ok || bin.Op != token.Shl {
			return nil, false
		}
		if !isOutputEndpointTarget(bin.Lhs) {
			return nil, false
		}
		w := &ast.WriteToEndpoint{Endpoint: bin.Lhs, Value: bin.Rhs}
		w.Loc = bin.Location()
		res.numReplaced++
		return w, true
	})
	return res
}

func isOutputEndpointTarget(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.OutputEndpointRef:
		return true
	case *ast.ArrayElementRef:
		return isOutputEndpointTarget(n.Base)
	case *ast.ProcessorPropertyRef:
		return n.Endpoint != nil && n.Endpoint.Direction == ast.DirOutput
	}
	return false
}
