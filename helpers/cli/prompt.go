// Package cli runs line consoles: go-prompt on terminal, plain script from pipe.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

type Config struct {
	Tag      string
	Exec     func(line string)
	Complete prompt.Completer
	// OnSignal runs before exit on SIGINT, SIGTERM, SIGHUP.
	OnSignal func(os.Signal)
}

func MainLoop(c Config) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		s, ok := <-signalCh
		if !ok {
			return
		}
		if c.OnSignal != nil {
			c.OnSignal(s)
		}
		os.Exit(1)
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		complete := c.Complete
		if complete == nil {
			complete = func(prompt.Document) []prompt.Suggest { return nil }
		}
		// Run returns on ctrl-D with empty line
		prompt.New(c.Exec, complete,
			prompt.OptionTitle(c.Tag),
			prompt.OptionPrefix(c.Tag+"> "),
		).Run()
		return nil
	}
	return Script(os.Stdin, c.Exec)
}

// Script feeds non-empty lines to exec, '#' starts comment line.
func Script(r io.Reader, exec func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exec(line)
	}
	return scanner.Err()
}
