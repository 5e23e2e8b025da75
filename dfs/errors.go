package dfs

import "fmt"

// Error is the facade's error taxonomy.  Frontends switch on these to
// pick their own status codes.
type Error byte

// Low level errors
const (
	OK Error = iota
	ErrorNotFound
	ErrorDirectoryExpected
	ErrorFileExpected
	ErrorDirectoryExists
	ErrorFileExists
	ErrorDirectoryNotEmpty
	ErrorRemoveRoot
	ErrorInvalidPath
	ErrorNotSupported
)

// Error renders the error as a string
func (e Error) Error() string {
	if int(e) >= len(errorNames) {
		return fmt.Sprintf("low level error %d", byte(e))
	}
	return errorNames[e]
}

var errorNames = []string{
	OK:                     "Success",
	ErrorNotFound:          "resource not found",
	ErrorDirectoryExpected: "directory expected",
	ErrorFileExpected:      "file expected",
	ErrorDirectoryExists:   "directory already exists",
	ErrorFileExists:        "file already exists",
	ErrorDirectoryNotEmpty: "directory not empty",
	ErrorRemoveRoot:        "cannot remove root directory",
	ErrorInvalidPath:       "invalid characters in path",
	ErrorNotSupported:      "operation not supported",
}
