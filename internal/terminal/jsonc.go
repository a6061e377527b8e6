package terminal

// stripComments removes // line and /* block */ comments from JSONC
// data so it can be fed to encoding/json. Comment markers inside
// string literals are left alone. Comments are replaced by spaces to
// keep offsets in parse errors meaningful.
func stripComments(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	const (
		stateCode = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateCode
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch state {
		case stateCode:
			switch {
			case c == '"':
				state = stateString
			case c == '/' && i+1 < len(out) && out[i+1] == '/':
				state = stateLineComment
				out[i] = ' '
			case c == '/' && i+1 < len(out) && out[i+1] == '*':
				state = stateBlockComment
				out[i] = ' '
			}
		case stateString:
			switch c {
			case '\\':
				i++
			case '"':
				state = stateCode
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
			} else if c != '\r' {
				out[i] = ' '
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i] = ' '
				out[i+1] = ' '
				i++
				state = stateCode
			} else if c != '\n' && c != '\r' {
				out[i] = ' '
			}
		}
	}
	return out
}
