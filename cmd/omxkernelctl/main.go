// omxkernelctl is the CLI for driving a running omxkerneld instance.
//
// Commands:
//
//	omxkernelctl create              Create a component instance
//	omxkernelctl list                List running component instances
//	omxkernelctl info                Show a component instance's details
//	omxkernelctl delete              Tear down a component instance
//	omxkernelctl state-set           Send a StateSet command
//	omxkernelctl flush               Send a Flush command
//	omxkernelctl port-enable         Send a PortEnable command
//	omxkernelctl port-disable        Send a PortDisable command
//	omxkernelctl events              Stream a component's kernel events
//	omxkernelctl status              Show daemon status
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tizedge/omxkernel/internal/client"
	"github.com/tizedge/omxkernel/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		cmdCreate()
	case "list":
		cmdList()
	case "info":
		cmdInfo()
	case "delete":
		cmdDelete()
	case "state-set":
		cmdStateSet()
	case "flush":
		cmdFlush()
	case "port-enable":
		cmdPortCommand("port_enable")
	case "port-disable":
		cmdPortCommand("port_disable")
	case "events":
		cmdEvents()
	case "status":
		cmdStatus()
	case "version", "--version", "-v":
		fmt.Printf("omxkernelctl %s\n", version.Version())
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: omxkernelctl <command> [args]")
	fmt.Println("commands: create, list, info, delete, state-set, flush, port-enable, port-disable, events, status, version, help")
}

func newClient() *client.Client {
	return client.NewDefault()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func cmdCreate() {
	if len(os.Args) < 3 {
		fatalf("usage: omxkernelctl create <name> [input|output:domain ...]")
	}
	name := os.Args[2]

	var ports []client.PortSpec
	for _, arg := range os.Args[3:] {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			fatalf("invalid port spec %q, want direction:domain", arg)
		}
		ports = append(ports, client.PortSpec{Direction: parts[0], Domain: parts[1]})
	}

	c := newClient()
	comp, err := c.CreateComponent(context.Background(), client.CreateComponentRequest{Name: name, Ports: ports})
	if err != nil {
		fatalf("create component: %v", err)
	}
	printJSON(comp)
}

func cmdList() {
	c := newClient()
	comps, err := c.ListComponents(context.Background())
	if err != nil {
		fatalf("list components: %v", err)
	}
	printJSON(comps)
}

func cmdInfo() {
	if len(os.Args) < 3 {
		fatalf("usage: omxkernelctl info <id>")
	}
	c := newClient()
	comp, err := c.GetComponent(context.Background(), os.Args[2])
	if err != nil {
		fatalf("get component: %v", err)
	}
	printJSON(comp)
}

func cmdDelete() {
	if len(os.Args) < 3 {
		fatalf("usage: omxkernelctl delete <id>")
	}
	c := newClient()
	if err := c.DeleteComponent(context.Background(), os.Args[2]); err != nil {
		fatalf("delete component: %v", err)
	}
}

func cmdStateSet() {
	if len(os.Args) < 4 {
		fatalf("usage: omxkernelctl state-set <id> <Loaded|WaitForResources|Idle|Executing|Pause>")
	}
	c := newClient()
	if err := c.StateSet(context.Background(), os.Args[2], os.Args[3]); err != nil {
		fatalf("state-set: %v", err)
	}
}

func cmdFlush() {
	if len(os.Args) < 3 {
		fatalf("usage: omxkernelctl flush <id> [port]")
	}
	var port *int
	if len(os.Args) > 3 {
		n, err := strconv.Atoi(os.Args[3])
		if err != nil {
			fatalf("invalid port %q", os.Args[3])
		}
		port = &n
	}
	c := newClient()
	if err := c.Flush(context.Background(), os.Args[2], port); err != nil {
		fatalf("flush: %v", err)
	}
}

func cmdPortCommand(cmd string) {
	if len(os.Args) < 4 {
		fatalf("usage: omxkernelctl %s <id> <port>", strings.ReplaceAll(cmd, "_", "-"))
	}
	port, err := strconv.Atoi(os.Args[3])
	if err != nil {
		fatalf("invalid port %q", os.Args[3])
	}
	c := newClient()
	if err := c.SendCommand(context.Background(), os.Args[2], client.CommandRequest{Command: cmd, Port: &port}); err != nil {
		fatalf("%s: %v", cmd, err)
	}
}

func cmdEvents() {
	if len(os.Args) < 3 {
		fatalf("usage: omxkernelctl events <id>")
	}
	c := newClient()
	body, err := c.StreamEvents(context.Background(), os.Args[2])
	if err != nil {
		fatalf("stream events: %v", err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		var rec client.EventRecord
		if json.Unmarshal(scanner.Bytes(), &rec) == nil {
			fmt.Printf("%s port=%d %s %s%s\n", rec.Kind, rec.Port, rec.Command, rec.Detail, errSuffix(rec.Error))
		}
	}
}

func errSuffix(s string) string {
	if s == "" {
		return ""
	}
	return " error=" + s
}

func cmdStatus() {
	fmt.Printf("omxkernelctl %s\n", version.Version())
	c := newClient()
	status, err := c.Status(context.Background())
	if err != nil {
		fmt.Println("omxkerneld: not running")
		return
	}
	fmt.Printf("omxkerneld: %s\n", status.Status)
	fmt.Printf("components: %d\n", status.ComponentCount)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
