// Package main writes a self-signed server certificate and key for serving
// the CipherStudio API over HTTPS in development:
//
//	go run ./tools/certgen -hosts localhost,127.0.0.1
//	server -tls-cert certs/server.crt -tls-key certs/server.key
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/CipherStudio/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma separated DNS names and IPs")
	validFor := fs.Duration("valid-for", certgen.DefaultValidity, "certificate lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	certPEM, keyPEM, err := certgen.GenerateServerCertificate(splitHosts(*hosts), *validFor)
	if err != nil {
		return err
	}
	certPath := filepath.Join(*dir, "server.crt")
	keyPath := filepath.Join(*dir, "server.key")
	if err := certgen.WriteFiles(certPath, keyPath, certPEM, keyPEM); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Certificate written to %s and %s\n", certPath, keyPath)
	return nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
