// Package main is the CipherStudio terminal client: an interactive shell
// for creating, editing, previewing and syncing projects.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/atinyakov/CipherStudio/internal/client/api"
	"github.com/atinyakov/CipherStudio/internal/client/session"
	"github.com/atinyakov/CipherStudio/internal/client/storage"
	"github.com/atinyakov/CipherStudio/internal/logger"
)

var (
	version   string
	buildDate string
)

// openStore opens the local cache selected by kind ("sqlite" or "json").
func openStore(ctx context.Context, kind, path string) (storage.Store, error) {
	switch kind {
	case "sqlite":
		return storage.OpenSQLite(ctx, path)
	case "json":
		return storage.NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown cache kind %q (want sqlite or json)", kind)
	}
}

// main parses command-line flags and starts the shell.
func main() {
	var (
		baseURL     string
		cacheKind   string
		cachePath   string
		sessionPath string
		logLevel    string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080/api", "server base URL")
	flag.StringVar(&cacheKind, "cache", "sqlite", "local cache: sqlite | json")
	flag.StringVar(&cachePath, "cache-path", "", "cache file (default cipherstudio.db or cipherstudio-cache.json)")
	flag.StringVar(&sessionPath, "session", "session.json", "path to the session file")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("CipherStudio Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	if cachePath == "" {
		cachePath = "cipherstudio.db"
		if cacheKind == "json" {
			cachePath = "cipherstudio-cache.json"
		}
	}

	l := logger.New()
	if err := l.Init(logLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Log.Sync() }()

	ctx := context.Background()
	store, err := openStore(ctx, cacheKind, cachePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	sess, err := session.Load(sessionPath)
	if err != nil {
		log.Fatal(err)
	}
	if sess.EnsureGuest() {
		if err := session.Save(sessionPath, sess); err != nil {
			log.Fatal(err)
		}
	}

	a := newApp(appConfig{
		API:         api.New(baseURL, nil),
		Cache:       storage.NewProjectCache(store),
		Session:     sess,
		SessionPath: sessionPath,
		Logger:      l.Log,
		In:          os.Stdin,
		Out:         os.Stdout,
	})
	defer a.close()

	a.repl(ctx)
}
