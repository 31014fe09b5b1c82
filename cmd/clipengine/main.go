package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	exitOK = iota
	exitFailed
	exitUsage
)

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

// commands lists subcommands in the order of usage output.
type commands []command

func defaultCommands() commands {
	return commands{&playCommand{}, &presetCommand{}}
}

func (cs commands) find(name string) command {
	for _, cmd := range cs {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

// run executes the subcommand named by the first argument and returns the
// exit code. "help <command>" prints flags of the command.
func (cs commands) run(args []string, out io.Writer) int {
	if len(args) == 0 {
		cs.usage(out)
		return exitUsage
	}
	name, args := args[0], args[1:]
	if name == "help" {
		if len(args) == 0 {
			cs.usage(out)
			return exitOK
		}
		cmd := cs.find(args[0])
		if cmd == nil {
			fmt.Fprintf(out, "unknown command %q\n", args[0])
			return exitUsage
		}
		fmt.Fprintf(out, "%s: %s\n", cmd.Name(), cmd.Help())
		flags := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		flags.SetOutput(out)
		cmd.Register(flags)
		flags.PrintDefaults()
		return exitOK
	}

	cmd := cs.find(name)
	if cmd == nil {
		fmt.Fprintf(out, "unknown command %q\n\n", name)
		cs.usage(out)
		return exitUsage
	}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(out)
	cmd.Register(flags)
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(out, "clipengine %s: %v\n", name, err)
		return exitFailed
	}
	return exitOK
}

func (cs commands) usage(out io.Writer) {
	fmt.Fprintln(out, "clipengine plays and records columns of clips in sync with a timeline")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: clipengine <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, cmd := range cs {
		fmt.Fprintf(out, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
	fmt.Fprintf(out, "\thelp\tprints flags of the command\n")
}

func main() {
	os.Exit(defaultCommands().run(os.Args[1:], os.Stderr))
}

// stringList is a semicolon separated flag value.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ";")
}

func (l *stringList) Set(value string) error {
	for _, s := range strings.Split(value, ";") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}
