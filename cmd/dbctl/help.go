package main

import "fmt"

const version = "0.3.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("dbctl version %s\n", version)
	fmt.Println("dbcore - cross-engine data access toolkit")
}

// PrintHelp prints help information
func PrintHelp() {
	fmt.Println("dbctl - dbcore command line interface")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  dbctl [command] [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println("    --ping                     Check database connectivity")
	fmt.Println("    --db-version               Print database server version")
	fmt.Println("    --engines                  List supported database engines")
	fmt.Println("    --call-scalar <s.name>     Call a scalar routine, print the value")
	fmt.Println("    --call-exec <s.name>       Call a side-effect routine, print affected rows")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println("    --config <file>            YAML configuration file (default: dbcore.yaml)")
	fmt.Println("    --params a=1,b=x           Routine parameters")
	fmt.Println()

	fmt.Println("EXAMPLES:")
	fmt.Println("  dbctl --config prod.yaml --ping")
	fmt.Println("  dbctl --call-scalar billing.monthly_total --params year=2025,month=8")
}
