package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	Ping       *bool
	DBVersion  *bool
	Engines    *bool
	CallScalar *string // schema.routine
	CallExec   *string // schema.routine

	// Options
	Config *string
	Params *string // comma-separated name=value pairs

	Version *bool
	Help    *bool
}

// ParseFlags parses command-line flags
func ParseFlags() *Flags {
	f := &Flags{
		Ping:       flag.Bool("ping", false, "Check database connectivity"),
		DBVersion:  flag.Bool("db-version", false, "Print database server version"),
		Engines:    flag.Bool("engines", false, "List supported database engines"),
		CallScalar: flag.String("call-scalar", "", "Call a scalar routine (schema.name)"),
		CallExec:   flag.String("call-exec", "", "Call a side-effect routine (schema.name)"),

		Config: flag.String("config", "dbcore.yaml", "Path to YAML configuration file"),
		Params: flag.String("params", "", "Routine parameters as name=value,name=value"),

		Version: flag.Bool("version", false, "Print version"),
		Help:    flag.Bool("help", false, "Print help"),
	}
	flag.Parse()
	return f
}
