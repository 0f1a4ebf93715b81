// worldctl sends control requests to a running simworld server.
//
// Usage:
//
//	go run ./cmd/worldctl <command> [-addr host:port] [-password pw] [flags] [args]
//
// Commands: spawn, edit, delete, plugins, physics
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/simworld/server/internal/ctlclient"
	"github.com/simworld/server/internal/physics"
)

func printUsage() {
	fmt.Println("Usage: worldctl <command> [-addr host:port] [-password pw] [flags] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  spawn   <file.yaml>            Spawn a model (-name, -rename=false)")
	fmt.Println("  edit    <model> <file.yaml>    Replace a live model's links and plugins")
	fmt.Println("  delete  <model>                Delete a model")
	fmt.Println("  plugins <uri>                  List plugins, e.g. data://world/default/plugin/")
	fmt.Println("  physics [key=value ...]        Show or set physics parameters")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:11345", "server control address")
	password := fs.String("password", os.Getenv("SIMWORLD_PASSWORD"), "control password")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	name := fs.String("name", "", "spawn: requested model name (default: descriptor name)")
	rename := fs.Bool("rename", true, "spawn: allow renaming on name collision")
	wait := fs.Duration("wait", 500*time.Millisecond, "spawn/edit/delete: how long to wait for rejection notices")
	_ = fs.Parse(os.Args[2:])

	commands := map[string]func(*ctlclient.Client, []string) error{
		"spawn": func(c *ctlclient.Client, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("spawn needs one descriptor file")
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			seq, err := c.Spawn(raw, *name, *rename)
			if err != nil {
				return err
			}
			return reportQueued(c, seq, *wait)
		},
		"edit": func(c *ctlclient.Client, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("edit needs a model name and a descriptor file")
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			seq, err := c.Edit(args[0], raw)
			if err != nil {
				return err
			}
			return reportQueued(c, seq, *wait)
		},
		"delete": func(c *ctlclient.Client, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("delete needs one model name")
			}
			seq, err := c.Delete(args[0])
			if err != nil {
				return err
			}
			return reportQueued(c, seq, *wait)
		},
		"plugins": func(c *ctlclient.Client, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("plugins needs one uri")
			}
			list, err := c.Plugins(args[0])
			if err != nil {
				return err
			}
			if !list.Found {
				return fmt.Errorf("nothing at %s", args[0])
			}
			for _, p := range list.Plugins {
				fmt.Printf("%-32s %-6s %s\n", p.Name, p.Scope, p.Filename)
			}
			if list.Truncated {
				fmt.Fprintln(os.Stderr, "reply truncated: config omitted, list may be incomplete")
			}
			return nil
		},
		"physics": func(c *ctlclient.Client, args []string) error {
			params := make([]physics.Param, 0, len(args))
			for _, a := range args {
				p, err := parseParam(a)
				if err != nil {
					return err
				}
				params = append(params, p)
			}
			rejected, current, err := c.Physics(params...)
			if err != nil {
				return err
			}
			for _, r := range rejected {
				fmt.Fprintf(os.Stderr, "rejected: %s\n", r)
			}
			for _, p := range current {
				fmt.Println(p.String())
			}
			return nil
		},
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	c, err := ctlclient.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()
	if err := c.Auth(*password); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if err := fn(c, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		c.Close()
		os.Exit(1)
	}
}

// reportQueued prints the sequence number and any rejection for it that
// arrives within wait.
func reportQueued(c *ctlclient.Client, seq uint64, wait time.Duration) error {
	fmt.Printf("queued as #%d\n", seq)
	for _, r := range c.WaitRejections(wait) {
		if r.Seq == seq {
			return fmt.Errorf("#%d %s %s rejected: %s", r.Seq, r.Kind, r.Name, r.Reason)
		}
	}
	return nil
}

// parseParam reads key=value. Vectors are x,y,z; true/false are bools;
// integers and decimals are doubles unless suffixed with "i".
func parseParam(arg string) (physics.Param, error) {
	key, val, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return physics.Param{}, fmt.Errorf("param %q: want key=value", arg)
	}
	if parts := strings.Split(val, ","); len(parts) == 3 {
		var v physics.Vector3
		for i, s := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return physics.Param{}, fmt.Errorf("param %s: %w", key, err)
			}
			v[i] = f
		}
		return physics.VectorParam(key, v), nil
	}
	switch val {
	case "true", "false":
		return physics.BoolParam(key, val == "true"), nil
	}
	if strings.HasSuffix(val, "i") {
		if n, err := strconv.ParseInt(strings.TrimSuffix(val, "i"), 10, 32); err == nil {
			return physics.IntParam(key, int32(n)), nil
		}
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return physics.DoubleParam(key, f), nil
	}
	return physics.StringParam(key, val), nil
}
