package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var errNoInput = errors.New("no input")

// value returns the flag's value, prompting on stdin when it is empty.
func (a *app) value(cmd *cobra.Command, flag, label string) (string, error) {
	v, _ := cmd.Flags().GetString(flag)
	if v != "" {
		return v, nil
	}
	return a.prompt(label)
}

// prompt reads one line from stdin. Secrets are read the same way; pipe them
// in or pass the flag when echo matters.
func (a *app) prompt(label string) (string, error) {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.stdin)
	}
	fmt.Fprintf(a.stderr, "%s: ", label)
	line, err := a.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), errNoInput)
	}
	return line, nil
}
