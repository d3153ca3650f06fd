package replay

import (
	"strings"

	"victory-readmodel/internal/domain"
)

// lpMarkers identify LP-token type names.
var lpMarkers = []string{"LPCoin<", "::pair::", "LP<"}

const nativeSUI = "0x2::sui::SUI"

// InferPoolKind guesses the pool family from the structure of a type name.
func InferPoolKind(key string) domain.PoolKind {
	for _, m := range lpMarkers {
		if strings.Contains(key, m) {
			return domain.PoolKindLP
		}
	}
	return domain.PoolKindSingle
}

// isNativePairKey reports whether an LP type name pairs against SUI.
func isNativePairKey(key string) bool {
	for _, arg := range typeArgs(key) {
		if normalizeAddress(arg) == nativeSUI {
			return true
		}
	}
	return false
}

// DisplayName renders a pool for humans: "A-B LP" for LP pools,
// the token symbol otherwise.
func DisplayName(key string, kind domain.PoolKind) string {
	args := typeArgs(key)
	if kind == domain.PoolKindLP && len(args) > 0 {
		syms := make([]string, len(args))
		for i, a := range args {
			syms[i] = symbol(a)
		}
		return strings.Join(syms, "-") + " LP"
	}
	if len(args) == 1 {
		return symbol(args[0])
	}
	return symbol(key)
}

// symbol returns the last path segment of a type name without generics.
func symbol(typeName string) string {
	s := strings.TrimSpace(typeName)
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	return s
}

// typeArgs splits the outermost generic argument list of a type name.
func typeArgs(typeName string) []string {
	lt := strings.IndexByte(typeName, '<')
	gt := strings.LastIndexByte(typeName, '>')
	if lt < 0 || gt <= lt {
		return nil
	}
	inner := typeName[lt+1 : gt]

	var args []string
	depth, start := 0, 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(inner[start:]); last != "" {
		args = append(args, last)
	}
	return args
}

// normalizeAddress shortens a zero-padded address prefix, so that
// "0x000...02::sui::SUI" and "0x2::sui::SUI" compare equal.
func normalizeAddress(typeName string) string {
	addr, rest, ok := strings.Cut(typeName, "::")
	if !ok || !strings.HasPrefix(addr, "0x") {
		return typeName
	}
	trimmed := strings.TrimLeft(addr[2:], "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed + "::" + rest
}
