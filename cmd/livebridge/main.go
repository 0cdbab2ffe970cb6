package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hanpama/livebridge/internal/client"
	"github.com/hanpama/livebridge/internal/content"
	"github.com/hanpama/livebridge/internal/eventbus"
	"github.com/hanpama/livebridge/internal/expand"
	"github.com/hanpama/livebridge/internal/language"
	"github.com/hanpama/livebridge/internal/otel"
	"github.com/hanpama/livebridge/internal/schema"
	"github.com/hanpama/livebridge/internal/server"
)

const rootUsage = `livebridge: live editing bridge for content previews

USAGE:
  livebridge <command> [flags]

COMMANDS:
  serve            Run the preview bridge and editor API
  expand           Print a query as the bridge sends it to the content API
  schema           Print the GraphQL schema used to resolve form values
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -graphql.schema <file>        Content API schema SDL. Repeatable; at least one required
  -content.schema <file>        Content collections YAML (required)
  -content.api <url>            Content API GraphQL endpoint (required)
  -content.token <token>        Bearer token for the content API
  -content.timeout <duration>   Content API request timeout (default: 10s)
  -server.addr <addr>           Listen address (default: :8080)
  -server.pretty                Indent JSON responses
  -server.timeout <duration>    Timeout of API requests; bridge connections are exempt (default: 10s)
  -server.max-body <bytes>      Max request body and bridge message size (default: 1048576)
  -server.origin <origin>       Allowed preview/editor origin. Repeatable; * allows any
  -otel.endpoint <addr>         OTLP/gRPC collector address; tracing is off without it
  -otel.service <name>          Service name reported to the collector (default: livebridge)
`

const expandUsage = `expand FLAGS:
  -graphql.schema <file>   Content API schema SDL. Repeatable; at least one required
  -in <file>               Read the query from file (default: stdin)
  -local                   Expand for form values instead of the content API
`

const schemaUsage = `schema FLAGS:
  -graphql.schema <file>   Content API schema SDL. Repeatable; at least one required
  -out <file>              Write SDL to file (default: stdout)
`

var usages = map[string]string{
	"serve":  serveUsage,
	"expand": expandUsage,
	"schema": schemaUsage,
}

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return errors.New("missing command")
	}
	name, rest := args[0], args[1:]
	switch name {
	case "serve":
		return cmdServe(rest)
	case "expand":
		return cmdExpand(rest, os.Stdin, os.Stdout)
	case "schema":
		return cmdSchema(rest, os.Stdout)
	case "help", "-h", "-help", "--help":
		return cmdHelp(rest)
	}
	fmt.Fprint(os.Stderr, rootUsage)
	return fmt.Errorf("unknown command %q", name)
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	usage, ok := usages[args[0]]
	if !ok {
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	fmt.Print(usage)
	return nil
}

// flags is a flag set that prints its command's usage on any error.
type flags struct {
	*flag.FlagSet
	usage string
}

func newFlags(name string) *flags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return &flags{FlagSet: fs, usage: usages[name]}
}

func (f *flags) parse(args []string) error {
	return f.usageOn(f.Parse(args))
}

func (f *flags) usageOn(err error) error {
	if err != nil {
		fmt.Fprint(os.Stderr, f.usage)
	}
	return err
}

// repeated collects every value of a repeatable flag.
type repeated []string

func (r *repeated) String() string { return strings.Join(*r, ",") }

func (r *repeated) Set(v string) error {
	*r = append(*r, v)
	return nil
}

// loadSchema reads and validates the SDL files as one schema.
func loadSchema(files []string) (*schema.Schema, error) {
	if len(files) == 0 {
		return nil, errors.New("-graphql.schema is required")
	}
	var sources []*language.Source
	for _, name := range files {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &language.Source{Name: name, Input: string(b)})
	}
	src, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return schema.BuildFromAST(src)
}

type serveConfig struct {
	schemaFiles repeated
	contentFile string
	api         string
	token       string
	apiTimeout  time.Duration

	addr     string
	pretty   bool
	timeout  time.Duration
	maxBody  int64
	origins  repeated
	otelAddr string
	otelName string
}

func cmdServe(args []string) error {
	cfg := serveConfig{
		apiTimeout: 10 * time.Second,
		addr:       ":8080",
		timeout:    10 * time.Second,
		maxBody:    1 << 20,
		otelName:   "livebridge",
	}
	fs := newFlags("serve")
	fs.Var(&cfg.schemaFiles, "graphql.schema", "")
	fs.StringVar(&cfg.contentFile, "content.schema", cfg.contentFile, "")
	fs.StringVar(&cfg.api, "content.api", cfg.api, "")
	fs.StringVar(&cfg.token, "content.token", cfg.token, "")
	fs.DurationVar(&cfg.apiTimeout, "content.timeout", cfg.apiTimeout, "")
	fs.StringVar(&cfg.addr, "server.addr", cfg.addr, "")
	fs.BoolVar(&cfg.pretty, "server.pretty", cfg.pretty, "")
	fs.DurationVar(&cfg.timeout, "server.timeout", cfg.timeout, "")
	fs.Int64Var(&cfg.maxBody, "server.max-body", cfg.maxBody, "")
	fs.Var(&cfg.origins, "server.origin", "")
	fs.StringVar(&cfg.otelAddr, "otel.endpoint", cfg.otelAddr, "")
	fs.StringVar(&cfg.otelName, "otel.service", cfg.otelName, "")
	if err := fs.parse(args); err != nil {
		return err
	}
	switch {
	case cfg.contentFile == "":
		return fs.usageOn(errors.New("-content.schema is required"))
	case cfg.api == "":
		return fs.usageOn(errors.New("-content.api is required"))
	}

	sch, err := loadSchema(cfg.schemaFiles)
	if err != nil {
		return fs.usageOn(err)
	}
	site, err := content.LoadFile(cfg.contentFile)
	if err != nil {
		return fmt.Errorf("load content schema: %w", err)
	}

	eventbus.Use(eventbus.New())
	shutdownOtel, err := otel.Setup(cfg.otelAddr, cfg.otelName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownOtel(context.Background()) }()

	api := client.New(
		client.WithEndpoint(cfg.api),
		client.WithToken(cfg.token),
		client.WithTimeout(cfg.apiTimeout),
	)
	h, err := server.New(server.Config{Schema: sch, Content: site, API: api}, cfg.serverOptions()...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv := &http.Server{Addr: cfg.addr, Handler: h}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Printf("livebridge listening on %s (content API %s)", cfg.addr, cfg.api)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c serveConfig) serverOptions() []server.Option {
	var opts []server.Option
	if c.pretty {
		opts = append(opts, server.WithPretty())
	}
	if c.timeout > 0 {
		opts = append(opts, server.WithTimeout(c.timeout))
	}
	if c.maxBody > 0 {
		opts = append(opts, server.WithMaxBodyBytes(c.maxBody))
	}
	if len(c.origins) > 0 {
		opts = append(opts, server.WithCORS(c.origins...))
	}
	return opts
}

func cmdExpand(args []string, stdin io.Reader, stdout io.Writer) error {
	var (
		schemaFiles repeated
		inFile      string
		local       bool
	)
	fs := newFlags("expand")
	fs.Var(&schemaFiles, "graphql.schema", "")
	fs.StringVar(&inFile, "in", "", "")
	fs.BoolVar(&local, "local", false, "")
	if err := fs.parse(args); err != nil {
		return err
	}
	sch, err := loadSchema(schemaFiles)
	if err != nil {
		return fs.usageOn(err)
	}
	if local {
		sch = schema.WithMetadata(sch)
	}

	var src []byte
	if inFile != "" {
		src, err = os.ReadFile(inFile)
	} else {
		src, err = io.ReadAll(stdin)
	}
	if err != nil {
		return err
	}
	out, err := expand.Query(sch, string(src))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}

func cmdSchema(args []string, stdout io.Writer) error {
	var (
		schemaFiles repeated
		outFile     string
	)
	fs := newFlags("schema")
	fs.Var(&schemaFiles, "graphql.schema", "")
	fs.StringVar(&outFile, "out", "", "")
	if err := fs.parse(args); err != nil {
		return err
	}
	sch, err := loadSchema(schemaFiles)
	if err != nil {
		return fs.usageOn(err)
	}
	sdl := schema.Render(schema.WithMetadata(sch))
	if outFile != "" {
		return os.WriteFile(outFile, []byte(sdl), 0o644)
	}
	_, err = io.WriteString(stdout, sdl)
	return err
}
