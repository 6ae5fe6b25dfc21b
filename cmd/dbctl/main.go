package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/queuebridge/dbcore/pkg/engine"
	"github.com/queuebridge/dbcore/pkg/metadata"
	"github.com/queuebridge/dbcore/pkg/param"
	"github.com/queuebridge/dbcore/pkg/session"

	_ "github.com/queuebridge/dbcore/pkg/engine/mssql"
	_ "github.com/queuebridge/dbcore/pkg/engine/mysql"
	_ "github.com/queuebridge/dbcore/pkg/engine/postgres"
	_ "github.com/queuebridge/dbcore/pkg/engine/sqlite"
)

func main() {
	ctx := context.Background()

	flags := ParseFlags()

	if *flags.Version {
		PrintVersion()
		os.Exit(0)
	}
	if *flags.Help {
		PrintHelp()
		os.Exit(0)
	}
	if *flags.Engines {
		for _, name := range engine.Registered() {
			fmt.Println(name)
		}
		return
	}

	config, err := engine.LoadConfig(*flags.Config)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	eng, err := engine.New(ctx, config)
	if err != nil {
		fatal("Failed to connect: %v", err)
	}
	defer eng.Close(ctx)

	s, err := session.New(eng, metadata.NewStaticProvider(), session.Config{})
	if err != nil {
		fatal("Failed to create session: %v", err)
	}

	var cmdErr error
	switch {
	case *flags.Ping:
		cmdErr = runPing(ctx, s)
	case *flags.DBVersion:
		cmdErr = runVersion(ctx, s)
	case *flags.CallScalar != "":
		cmdErr = runCallScalar(ctx, s, *flags.CallScalar, *flags.Params)
	case *flags.CallExec != "":
		cmdErr = runCallExec(ctx, s, *flags.CallExec, *flags.Params)
	default:
		PrintHelp()
	}

	if cmdErr != nil {
		fatal("%v", cmdErr)
	}
}

func runPing(ctx context.Context, s *session.Session) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	fmt.Printf("OK (%s)\n", s.Engine().Name())
	return nil
}

func runVersion(ctx context.Context, s *session.Session) error {
	v, err := s.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runCallScalar(ctx context.Context, s *session.Session, routine, rawParams string) error {
	schema, name, err := splitRoutine(routine)
	if err != nil {
		return err
	}
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	value, ok, err := session.Scalar[any](ctx, s, schema, name, params...)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(no value)")
		return nil
	}
	fmt.Println(value)
	return nil
}

func runCallExec(ctx context.Context, s *session.Session, routine, rawParams string) error {
	schema, name, err := splitRoutine(routine)
	if err != nil {
		return err
	}
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	affected, err := s.CallNonQuery(ctx, schema, name, params...)
	if err != nil {
		return err
	}
	fmt.Printf("affected: %d\n", affected)
	return nil
}

// splitRoutine splits "schema.name" into parts; schema may be omitted
func splitRoutine(routine string) (string, string, error) {
	parts := strings.SplitN(routine, ".", 2)
	switch len(parts) {
	case 1:
		return "", parts[0], nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("invalid routine name: %q", routine)
		}
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("invalid routine name: %q", routine)
}

// parseParams parses "a=1,b=x" into routine parameters
func parseParams(raw string) ([]param.Parameter, error) {
	if raw == "" {
		return nil, nil
	}

	var params []param.Parameter
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		params = append(params, param.New(kv[0], kv[1]))
	}
	return params, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
