// Command abidumper runs the DWARF->ABI reducer over one or more ELF
// shared objects or kernel-module debug files and writes a single tagged
// value tree describing their externally visible interface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagOutput     string
	flagStdout     bool
	flagSort       bool
	flagLibVer     string
	flagExtraInfo  string
	flagBinOnly    bool
	flagAllTypes   bool
	flagAllSymbols bool
	flagSkipCXX    bool
	flagAll        bool
	flagLoud       bool
	flagVersion    bool
	flagDumpVer    bool
)

var rootCmd = &cobra.Command{
	Use:   "abidumper <object> [object...]",
	Short: "Dump the ABI of an ELF shared object or kernel module",
	Long: `abidumper reassembles the DWARF debugging-information graph of one or
more ELF shared objects (or kernel-module debug files), resolves it into a
canonical type graph and symbol table, correlates it with the ELF dynamic
symbol table, prunes unreachable types, and serializes the result as a
single tagged value tree consumed by an ABI-compliance checker.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if flagVersion || flagDumpVer {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagDumpVer {
			fmt.Fprintln(os.Stdout, dumperVersion)
			return nil
		}
		if flagVersion {
			fmt.Fprintf(os.Stdout, "abidumper version %s\n", dumperVersion)
			return nil
		}
		return runDump(args)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&flagOutput, "output", "o", "./ABI.dump", "output path")
	flags.BoolVar(&flagStdout, "stdout", false, "write output to standard output instead")
	flags.BoolVar(&flagSort, "sort", false, "canonically sort every map before emission")
	flags.StringVar(&flagLibVer, "lver", "", "embed library version string in the dump")
	flags.StringVar(&flagExtraInfo, "extra-info", "", "also persist the raw disassembler outputs to this directory for audit")
	flags.BoolVar(&flagBinOnly, "bin-only", false, "exclude inline, pure-virtual, and non-exported globals")
	flags.BoolVar(&flagAllTypes, "all-types", false, "retain types even when unreferenced")
	flags.BoolVar(&flagAllSymbols, "all-symbols", false, "retain non-exported externally-visible symbols")
	flags.BoolVar(&flagSkipCXX, "skip-cxx", false, "drop standard-library and libstdc++-internal symbols")
	flags.BoolVar(&flagAll, "all", false, "equivalent to --all-types --all-symbols")
	flags.BoolVar(&flagLoud, "loud", false, "emit non-fatal warnings")
	flags.BoolVarP(&flagVersion, "version", "v", false, "print version information and exit")
	flags.BoolVar(&flagDumpVer, "dumpversion", false, "print the bare dumper version number and exit")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		exitErr(err)
	}
}

// printInfo prints a status message unless running under --stdout, where
// stdout is reserved for the dump itself.
func printInfo(format string, args ...interface{}) {
	if !flagStdout {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a progress message, gated on --loud.
func printVerbose(format string, args ...interface{}) {
	if flagLoud && !flagStdout {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "abidumper: "+format, args...)
}
