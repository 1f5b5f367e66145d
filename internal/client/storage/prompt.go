package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is replaced in tests so they never touch a terminal.
var readPassword = term.ReadPassword

// PromptCredentials asks for an email and a password. The password is read
// without echo.
func PromptCredentials(reader *bufio.Reader, w io.Writer) (email, password string, err error) {
	email, err = PromptLine(reader, w, "Email: ")
	if err != nil {
		return "", "", err
	}
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	return email, string(pw), nil
}

// PromptLine prints prompt and reads one trimmed line. A final line without
// a newline is returned as is.
func PromptLine(reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptContent reads new file content. An answer starting with "@" loads
// the named file from disk; otherwise lines are read until a line holding a
// single ".".
func PromptContent(reader *bufio.Reader, w io.Writer) (string, error) {
	fmt.Fprintln(w, "Enter content, end with a line containing only \".\" (or @path to load a file):")

	var lines []string
	for first := true; ; first = false {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if first && strings.HasPrefix(line, "@") {
			path := strings.TrimSpace(line[1:])
			data, rerr := os.ReadFile(path)
			if rerr != nil {
				return "", fmt.Errorf("failed to read file %q: %w", path, rerr)
			}
			return string(data), nil
		}
		if line == "." {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					lines = append(lines, line)
				}
				break
			}
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
