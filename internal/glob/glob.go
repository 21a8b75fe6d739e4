// Package glob implements Bourne-shell style wildcard matching for the
// `ls` and `get` name filters this tool's shell supports: `*`, `?`, and
// bracket classes (`[abc]`, `[a-z]`, `[!abc]`).
package glob

import "strings"

// Match reports whether name matches pattern, applying the classic shell
// rule that a leading `*`, `?` or `[` in pattern never matches a leading `.` in
// name unless the pattern's first character is itself a literal `.`.
func Match(pattern, name string) bool {
	if strings.HasPrefix(name, ".") && !strings.HasPrefix(pattern, ".") {
		if len(pattern) > 0 && (pattern[0] == '*' || pattern[0] == '?' || pattern[0] == '[') {
			return false
		}
	}
	return match([]rune(pattern), []rune(name))
}

func match(pattern, name []rune) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive stars, then try every suffix of name.
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if match(pattern, name[i:]) {
					return true
				}
			}
			return false

		case '?':
			if len(name) == 0 {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]

		case '[':
			if len(name) == 0 {
				return false
			}
			end := classEnd(pattern)
			if end < 0 {
				// Unterminated class: treat '[' as a literal.
				if name[0] != '[' {
					return false
				}
				pattern = pattern[1:]
				name = name[1:]
				continue
			}
			if !matchClass(pattern[1:end], name[0]) {
				return false
			}
			pattern = pattern[end+1:]
			name = name[1:]

		default:
			if len(name) == 0 || name[0] != pattern[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}

// classEnd returns the index of the ']' closing the bracket class starting
// at pattern[0], or -1 if none exists.
func classEnd(pattern []rune) int {
	i := 1
	if i < len(pattern) && pattern[i] == '!' {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++ // a ']' right after '[' or '[!' is a literal member, not the close
	}
	for ; i < len(pattern); i++ {
		if pattern[i] == ']' {
			return i
		}
	}
	return -1
}

func matchClass(class []rune, c rune) bool {
	negate := false
	if len(class) > 0 && class[0] == '!' {
		negate = true
		class = class[1:]
	}

	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			lo, hi := class[i], class[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != negate
}
