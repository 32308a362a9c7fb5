// Command sessionctl provisions and maintains a goSession store.
//
//	sessionctl keygen   [-key path]
//	sessionctl schema   [-dialect d] [-table t]
//	sessionctl migrate  [connection flags]
//	sessionctl gc       [connection flags] -max-lifetime seconds
//	sessionctl stats    [connection flags]
//	sessionctl loadtest [connection flags] -sessions n -concurrency n -ops n
//
// Connection settings default from SESSION_DB_DSN, SESSION_DB_DIALECT,
// SESSION_DB_ADDR, SESSION_DB_NAME, SESSION_TABLE, SESSION_KEY_PATH and
// SESSION_REDIS_ADDR. Flags override the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keyfile"
	"github.com/MrEthical07/goSession/schema"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

type envConfig struct {
	DSN       string `env:"SESSION_DB_DSN"`
	Dialect   string `env:"SESSION_DB_DIALECT,default=mysql"`
	Address   string `env:"SESSION_DB_ADDR,default=127.0.0.1:3306"`
	Name      string `env:"SESSION_DB_NAME,default=sessions"`
	Table     string `env:"SESSION_TABLE,default=sessions"`
	KeyPath   string `env:"SESSION_KEY_PATH"`
	RedisAddr string `env:"SESSION_REDIS_ADDR"`
}

func loadEnv() (envConfig, error) {
	var cfg envConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return envConfig{}, err
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command func(env envConfig, args []string, stdout, stderr io.Writer) error

var commands = map[string]command{
	"keygen":   runKeygen,
	"schema":   runSchema,
	"migrate":  runMigrate,
	"gc":       runGC,
	"stats":    runStats,
	"loadtest": runLoadtest,
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	env, err := loadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "environment: %v\n", err)
		return 2
	}

	if err := cmd(env, args[1:], stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: sessionctl <keygen|schema|migrate|gc|stats|loadtest> [flags]")
}

// connFlags binds the connection flags shared by every database command.
type connFlags struct {
	dsn       *string
	dialect   *string
	address   *string
	name      *string
	table     *string
	keyPath   *string
	redisAddr *string
	timeout   *time.Duration
}

func bindConnFlags(fs *flag.FlagSet, env envConfig) connFlags {
	return connFlags{
		dsn:       fs.String("dsn", env.DSN, "database DSN (sqlite: file name)"),
		dialect:   fs.String("dialect", env.Dialect, "mysql or sqlite"),
		address:   fs.String("addr", env.Address, "mysql host:port when no DSN is given"),
		name:      fs.String("db", env.Name, "mysql database name"),
		table:     fs.String("table", env.Table, "session table"),
		keyPath:   fs.String("key", env.KeyPath, "key file (default ~/.gosession_key)"),
		redisAddr: fs.String("redis", env.RedisAddr, "redis address for the gc lease"),
		timeout:   fs.Duration("timeout", 5*time.Second, "connect timeout"),
	}
}

func (c connFlags) config() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Database.DSN = *c.dsn
	cfg.Database.Dialect = *c.dialect
	cfg.Database.Address = *c.address
	cfg.Database.Name = *c.name
	cfg.Database.ConnectTimeout = *c.timeout
	cfg.Store.Table = *c.table
	cfg.Key.Path = *c.keyPath
	cfg.Metrics.Enabled = false
	return cfg
}

func (c connFlags) open(stderr io.Writer, mutate func(*goSession.Config), b *goSession.Builder) (*goSession.Store, func(), error) {
	cfg := c.config()
	if mutate != nil {
		mutate(&cfg)
	}
	if b == nil {
		b = goSession.NewBuilder()
	}
	b = b.WithConfig(cfg).WithLogger(log.New(stderr, "", log.LstdFlags))

	cleanup := func() {}
	if *c.redisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{*c.redisAddr}})
		b = b.WithRedis(client)
		cleanup = func() { _ = client.Close() }
	}

	store, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, func() {
		store.Close()
		cleanup()
	}, nil
}

func runKeygen(env envConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("key", env.KeyPath, "key file to create (default ~/.gosession_key)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := *path
	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		target = keyfile.DefaultPath(home)
	}

	key, err := keyfile.Create(target)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created %s (fingerprint %s)\n", target, key.Fingerprint())
	return nil
}

func runSchema(env envConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dialect := fs.String("dialect", env.Dialect, "mysql or sqlite")
	table := fs.String("table", env.Table, "session table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := schema.ParseDialect(*dialect)
	if err != nil {
		return err
	}
	stmts, err := schema.Build(d, *table)
	if err != nil {
		return err
	}
	for _, ddl := range stmts.CreateTable {
		fmt.Fprintf(stdout, "%s;\n", ddl)
	}
	return nil
}

func runMigrate(env envConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conn := bindConnFlags(fs, env)
	createKey := fs.Bool("create-key", false, "create the key file when it does not exist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, done, err := conn.open(stderr, func(cfg *goSession.Config) {
		cfg.Database.EnsureSchema = true
		cfg.Key.CreateIfMissing = *createKey
	}, nil)
	if err != nil {
		return err
	}
	defer done()

	fmt.Fprintf(stdout, "table %s ready (%s, key %s)\n", store.Table(), store.Dialect(), store.KeyFingerprint())
	return nil
}

func runGC(env envConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conn := bindConnFlags(fs, env)
	maxLifetime := fs.Int64("max-lifetime", 1440, "remove sessions idle for more than this many seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *maxLifetime < 0 {
		return fmt.Errorf("%w: %d", goSession.ErrInvalidMaxLifetime, *maxLifetime)
	}

	store, done, err := conn.open(stderr, nil, nil)
	if err != nil {
		return err
	}
	defer done()

	removed, err := store.Sweep(context.Background(), time.Duration(*maxLifetime)*time.Second)
	switch {
	case errors.Is(err, goSession.ErrSweepInProgress):
		fmt.Fprintln(stdout, "skipped: another process holds the gc lease")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(stdout, "removed %d expired sessions from %s\n", removed, store.Table())
	return nil
}

func runStats(env envConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conn := bindConnFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, done, err := conn.open(stderr, nil, nil)
	if err != nil {
		return err
	}
	defer done()

	n, err := store.Count(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "table=%s dialect=%s key=%s sessions=%d\n", store.Table(), store.Dialect(), store.KeyFingerprint(), n)
	return nil
}
