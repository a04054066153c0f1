package version

import (
	"strings"

	"github.com/CraigLoomis/eups/errs"
)

// Op is a version predicate operator.
type Op int

const (
	// OpEq matches exact versions, and is also what a bare literal
	// (no operator at all) means.
	OpEq Op = iota
	OpNe
	OpLe
	OpGe
	OpLt
	OpGt
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	default:
		return "?"
	}
}

// Predicate is a parsed version expression: an operator plus a
// right-hand-side version. A bare literal version (no operator)
// parses to OpEq.
type Predicate struct {
	Op  Op
	RHS Version
}

// operators is checked longest-prefix-first so that e.g. ">=" is not
// mistaken for ">" followed by "=".
var operators = []struct {
	prefix string
	op     Op
}{
	{"==", OpEq},
	{"!=", OpNe},
	{"<=", OpLe},
	{">=", OpGe},
	{"<", OpLt},
	{">", OpGt},
}

// ParsePredicate parses a version expression of the form "OP RHS" (e.g.
// ">= 2.5.2", "< 2.6", "== 2.5.2") or a bare literal ("2.5.2"), which
// means exact match. The bare operator "=" is invalid and is rejected
// with a BadVersionExpr error, per spec.md §4.1 ("The bare `=` is
// invalid and must be rejected as an error").
func ParsePredicate(expr string) (Predicate, error) {
	const op = "ParsePredicate"
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Predicate{}, errs.New(errs.BadVersionExpr, op, "empty version expression")
	}

	// Reject a bare '=' (not '==') immediately, since in this grammar a
	// single '=' is not a string that can ever form a valid operator:
	// without this check "= 2.5.2" would fall through to being parsed
	// as a literal starting with '='.
	if trimmed[0] == '=' && !strings.HasPrefix(trimmed, "==") {
		return Predicate{}, errs.New(errs.BadVersionExpr, op, "bare '=' is not a valid operator, use '=='")
	}

	for _, cand := range operators {
		if strings.HasPrefix(trimmed, cand.prefix) {
			rhs := strings.TrimSpace(trimmed[len(cand.prefix):])
			if rhs == "" {
				return Predicate{}, errs.New(errs.BadVersionExpr, op, "missing right-hand side after %q", cand.prefix)
			}
			return Predicate{Op: cand.op, RHS: New(rhs)}, nil
		}
	}

	// No operator prefix: a bare literal means exact match.
	return Predicate{Op: OpEq, RHS: New(trimmed)}, nil
}

// Matches reports whether v satisfies the predicate.
func (p Predicate) Matches(v Version) bool {
	c := v.Compare(p.RHS)
	switch p.Op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLe:
		return c <= 0
	case OpGe:
		return c >= 0
	case OpLt:
		return c < 0
	case OpGt:
		return c > 0
	default:
		return false
	}
}

func (p Predicate) String() string {
	if p.Op == OpEq {
		return p.RHS.String()
	}
	return p.Op.String() + " " + p.RHS.String()
}

// Filter returns the subset of vs satisfying pred, preserving order.
func Filter(vs []Version, pred Predicate) []Version {
	out := make([]Version, 0, len(vs))
	for _, v := range vs {
		if pred.Matches(v) {
			out = append(out, v)
		}
	}
	return out
}
