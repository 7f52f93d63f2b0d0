package bridge

import (
	"strings"

	"github.com/debuggerx/jdwp-mcp/internal/jdwp"
)

// TypeName converts a JNI type descriptor into a readable Java type
// name: "Lcom/axelor/rpc/Request;" -> "com.axelor.rpc.Request",
// "[I" -> "int[]", "[[Ljava/lang/String;" -> "java.lang.String[][]".
func TypeName(sig string) string {
	dims := 0
	for dims < len(sig) && sig[dims] == '[' {
		dims++
	}
	base := sig[dims:]

	var name string
	switch {
	case base == "":
		name = "?"
	case base[0] == 'L' && strings.HasSuffix(base, ";"):
		name = strings.ReplaceAll(base[1:len(base)-1], "/", ".")
	default:
		name = primitiveName(base[0])
	}

	return name + strings.Repeat("[]", dims)
}

func primitiveName(tag byte) string {
	switch tag {
	case 'Z':
		return "boolean"
	case 'B':
		return "byte"
	case 'C':
		return "char"
	case 'S':
		return "short"
	case 'I':
		return "int"
	case 'J':
		return "long"
	case 'F':
		return "float"
	case 'D':
		return "double"
	case 'V':
		return "void"
	}
	return "?"
}

// TagFor returns the JDWP value tag a descriptor implies. Strings are
// special-cased so the renderer can fetch their contents; every other
// reference type reads as a plain object.
func TagFor(sig string) byte {
	if sig == "" {
		return jdwp.TagObject
	}
	switch sig[0] {
	case '[':
		return jdwp.TagArray
	case 'L':
		if sig == "Ljava/lang/String;" {
			return jdwp.TagString
		}
		return jdwp.TagObject
	default:
		return sig[0]
	}
}

// ParamCount counts the parameters in a method descriptor such as
// "(Ljava/lang/String;I)V".
func ParamCount(sig string) int {
	n := 0
	i := strings.IndexByte(sig, '(') + 1
	for i < len(sig) && sig[i] != ')' {
		for i < len(sig) && sig[i] == '[' {
			i++
		}
		if i < len(sig) && sig[i] == 'L' {
			end := strings.IndexByte(sig[i:], ';')
			if end < 0 {
				return n
			}
			i += end + 1
		} else {
			i++
		}
		n++
	}
	return n
}

// ParamTags returns the value tag of each parameter in a method
// descriptor, in order.
func ParamTags(sig string) []byte {
	var tags []byte
	i := strings.IndexByte(sig, '(') + 1
	for i < len(sig) && sig[i] != ')' {
		start := i
		for i < len(sig) && sig[i] == '[' {
			i++
		}
		if i < len(sig) && sig[i] == 'L' {
			end := strings.IndexByte(sig[i:], ';')
			if end < 0 {
				break
			}
			i += end + 1
		} else {
			i++
		}
		tags = append(tags, TagFor(sig[start:i]))
	}
	return tags
}
