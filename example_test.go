package goSession_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keyfile"
	"github.com/MrEthical07/goSession/schema"
	_ "modernc.org/sqlite"
)

// ExampleNewBuilder shows production-style construction against MySQL with
// credentials from ~/.my.cnf and the key at ~/.gosession_key.
func ExampleNewBuilder() {
	cfg := goSession.DefaultConfig()
	cfg.Database.Address = "127.0.0.1:3306"
	cfg.Database.Name = "app"

	store, err := goSession.NewBuilder().WithConfig(cfg).Build()
	if err != nil {
		// A missing key or unreachable database surfaces here, never later.
		_ = err
		return
	}
	defer store.Close()
}

// ExampleNew runs the full session lifecycle against SQLite.
func ExampleNew() {
	dir, _ := os.MkdirTemp("", "gosession-example-")
	defer os.RemoveAll(dir)

	db, _ := sql.Open("sqlite", filepath.Join(dir, "sessions.db"))
	defer db.Close()
	db.SetMaxOpenConns(1)

	key, _ := keyfile.Create(filepath.Join(dir, "key"))
	store, err := goSession.New(db, key, goSession.WithDialect(schema.SQLite))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer store.Close()

	ctx := context.Background()
	_ = store.EnsureSchema(ctx)

	store.Open(dir, "PHPSESSID")
	store.Write(ctx, "abc123", []byte("name=alice"))
	fmt.Printf("%s\n", store.Read(ctx, "abc123"))
	store.Destroy(ctx, "abc123")
	fmt.Printf("%q\n", store.Read(ctx, "abc123"))
	// Output:
	// name=alice
	// ""
}

// ExampleStore_MetricsSnapshot reads in-process counters.
func ExampleStore_MetricsSnapshot() {
	var store *goSession.Store
	if store == nil {
		return
	}
	snapshot := store.MetricsSnapshot()
	fmt.Println(snapshot.Counters[goSession.MetricDecryptFailure])
}
