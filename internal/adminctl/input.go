package adminctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetSecret reads a secret without echo, twice, and fails when the two
// entries differ or are empty.
func GetSecret(w io.Writer, label string) (string, error) {
	first, err := promptHidden(w, "Enter "+label+": ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("%s must not be empty", label)
	}
	second, err := promptHidden(w, "Repeat "+label+": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("%s entries do not match", label)
	}
	return first, nil
}

func promptHidden(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
