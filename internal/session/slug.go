package session

import (
	"strings"
)

// slugDelimiter replaces path separators in project directory names.
const slugDelimiter = "-"

// EncodeFolder converts an absolute project path to the agent's project
// directory name: every path separator becomes "-", and a Windows drive
// letter is upper-cased with its colon folded into the delimiter
// ("c:\src\app" -> "C--src-app"). Pure; no I/O.
func EncodeFolder(folder string) string {
	if hasDriveLetter(folder) {
		folder = strings.ToUpper(folder[:1]) + slugDelimiter + folder[2:]
	}
	return strings.NewReplacer("/", slugDelimiter, `\`, slugDelimiter).Replace(folder)
}

// DecodeFolder reverses EncodeFolder for display. Dashes that were part of
// the original path cannot be told apart from separators and come back as
// separators.
func DecodeFolder(name string) string {
	if len(name) >= 3 && isASCIILetter(name[0]) && name[1:3] == "--" {
		rest := strings.ReplaceAll(name[3:], slugDelimiter, `\`)
		return name[:1] + `:\` + rest
	}
	return strings.ReplaceAll(name, slugDelimiter, "/")
}

func hasDriveLetter(path string) bool {
	return len(path) >= 2 && isASCIILetter(path[0]) && path[1] == ':'
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
