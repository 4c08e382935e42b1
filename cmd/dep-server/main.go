// Command dep-server runs the HTTP service that resolves abstract
// requirements to apt package names on behalf of other ognibuild
// invocations, so they can share one apt file-index instead of each
// bootstrapping its own cache. Grounded on ognibuild/dep_server.py's
// main().
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ognibuild/ognibuild"
	"github.com/ognibuild/ognibuild/depserver"
	"github.com/ognibuild/ognibuild/fileindex"
	"github.com/ognibuild/ognibuild/resolver"
	"github.com/ognibuild/ognibuild/session"
)

var (
	listenAddress = flag.String("listen-address", "", "address to listen on; empty means all interfaces")
	port          = flag.String("port", "9933", "port to listen on")
	schroot       = flag.String("schroot", "", "schroot session to resolve packages in; the host is used when unset")
)

func openSession() (session.Session, error) {
	var s session.Session
	if *schroot != "" {
		s = session.NewChroot(*schroot)
	} else {
		s = session.NewPlain()
	}
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return s, nil
}

func run() int {
	flag.Parse()

	s, err := openSession()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer s.Close()

	srv := &depserver.Server{
		Apt: resolver.NewAptResolver(s, &fileindex.AptFileIndex{Session: s}),
	}

	ctx, canc := ognibuild.InterruptibleContext()
	defer canc()

	addr := *listenAddress + ":" + *port
	log.Printf("dep-server listening on %s", addr)
	if err := depserver.Serve(ctx, addr, srv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
