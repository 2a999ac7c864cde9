package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/philpax/exoform-sub000/pkg/client"
	"github.com/philpax/exoform-sub000/pkg/graph"
	"github.com/philpax/exoform-sub000/pkg/kernel/sdfx"
	"github.com/philpax/exoform-sub000/pkg/tessellate"
)

const ClientVersion = "0.1.0"

func main() {
	usage := `Exoform command line client.

Joins a room, prints every change the server sends and forwards edit
commands read from stdin, one per line:

` + client.CommandHelp + `

Usage:
    exoform-client --host=<host> [--port=<port>] [--ws] [--room=<room>] [--mesh] [--verbose=<n>]
    exoform-client -h | --help
    exoform-client --version

Options:
    -h --help         Show this screen.
    --version         Show version.
    --host=<host>     Server host.
    --port=<port>     Server port [default: 23421].
    --ws              Connect over WebSocket instead of TCP.
    --room=<room>     Room to join [default: default].
    --mesh            Re-mesh the scene after every change.
    --verbose=<n>     Log verbosity [default: 0].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ClientVersion)
	if err != nil {
		panic(err)
	}

	verbose, _ := opts.String("--verbose")
	flag.Set("logtostderr", "true")
	flag.Set("v", verbose)
	defer glog.Flush()

	host, _ := opts.String("--host")
	port, err := opts.Int("--port")
	if err != nil {
		glog.Exitf("--port: %v", err)
	}
	room, _ := opts.String("--room")
	ws, _ := opts.Bool("--ws")
	mesh, _ := opts.Bool("--mesh")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var s *client.Session
	if ws {
		s, err = client.DialWebSocket(ctx, "ws://"+addr+"/")
	} else {
		s, err = client.Dial(ctx, addr)
	}
	if err != nil {
		glog.Exitf("connecting to %s: %v", addr, err)
	}
	defer s.Close()

	if err := s.Join(room); err != nil {
		glog.Exitf("joining %q: %v", room, err)
	}
	glog.Infof("joined room %q on %s", room, addr)

	lines := make(chan string)
	go readLines(lines)
	if err := follow(ctx, s, lines, mesh); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

// readLines forwards stdin lines until EOF.
func readLines(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// follow replays server changes on a replica and sends the commands read
// from lines. Commands are parsed against the replica so that "remove
// <child>" can find the parent.
func follow(ctx context.Context, s *client.Session, lines <-chan string, mesh bool) error {
	replica := client.NewReplica()
	kernel := sdfx.New()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			e, err := client.ParseCommand(line, replica.Graph())
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if err := s.Send(e); err != nil {
				return fmt.Errorf("sending %s: %w", e, err)
			}
		case c, ok := <-s.Changes():
			if !ok {
				return s.Err()
			}
			if err := replica.Apply(c); err != nil {
				return fmt.Errorf("replaying change: %w", err)
			}
			printChange(c, replica.Applied())
			if !mesh {
				continue
			}
			m, err := tessellate.Tessellate(replica.Graph(), kernel)
			if err != nil {
				fmt.Printf("  mesh: %v\n", err)
				continue
			}
			fmt.Printf("  mesh: %d triangles\n", m.TriangleCount())
		}
	}
}

// printChange prints c; seq counts changes since the last Initialize.
func printChange(c graph.Change, seq int) {
	switch c := c.(type) {
	case graph.Initialize:
		fmt.Printf("initialize: %d nodes\n", c.Graph.NodeCount())
		printTree(c.Graph, c.Graph.Root(), 1)
	case graph.Apply:
		fmt.Printf("%d apply: %s\n", seq, c.Event)
	case graph.Remove:
		fmt.Printf("%d remove: %s\n", seq, c.Node)
	}
}

func printTree(g *graph.Graph, n *graph.Node, depth int) {
	fmt.Printf("%*s%s %s\n", depth*2, "", n.ID, n.Data.Kind())
	for _, child := range g.Children(n) {
		printTree(g, child, depth+1)
	}
}
