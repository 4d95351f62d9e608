package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/spf13/pflag"

	"github.com/grafana/crashproc/pkg/breakpad"
	"github.com/grafana/crashproc/pkg/minidump"
	"github.com/grafana/crashproc/pkg/procstate"
	"github.com/grafana/crashproc/pkg/stackwalk"
)

// made here http://patorjk.com/software/taag/#p=display&f=Small&t=crashwalk
var banner = `
  __ _ __ _ __ _ __ _____ __ ____ _| | __
 / _| '__| '__| '_ \ / / '_ \ \ /\ / / _\` + "`" + ` | |/ /
| (_| |  | |  | | | \ V /| | | \ V  V / (_| |   <
 \__|_|  |_|  |_| |_|\_/ |_| |_|\_/\_/ \__,_|_|\_\
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: ")+err.Error())
		os.Exit(1)
	}
}

func run() error {
	var (
		dumpPath    string
		symbolsDir  string
		allowScan   bool
		showBanner  bool
		useFramePtr bool
	)
	pflag.StringVarP(&dumpPath, "dump", "d", "", "path to the minidump file to process")
	pflag.StringVarP(&symbolsDir, "symbols", "s", "", "directory of breakpad .sym files, laid out <debug_file>/<debug_identifier>/<debug_file>.sym")
	pflag.BoolVar(&allowScan, "allow-scan", false, "permit the heuristic stack-scan strategy when CFI and frame pointers fail")
	pflag.BoolVar(&useFramePtr, "amd64-frame-pointer", false, "opt into the amd64 frame-pointer strategy (off by default, per spec)")
	pflag.BoolVar(&showBanner, "banner", true, "print the startup banner")
	pflag.Parse()

	if showBanner {
		fmt.Println(color.CyanString(banner))
	}
	if dumpPath == "" {
		return fmt.Errorf("-dump is required")
	}

	logger := log.NewLogfmtLogger(os.Stderr)

	buf, err := os.ReadFile(dumpPath)
	if err != nil {
		return fmt.Errorf("reading dump: %w", err)
	}
	reader, err := minidump.New(buf)
	if err != nil {
		return fmt.Errorf("parsing dump: %w", err)
	}

	supplier := breakpad.Supplier(breakpad.NullSupplier{})
	if symbolsDir != "" {
		supplier = dirSupplier{root: symbolsDir}
	}
	resolver, err := breakpad.NewResolver(supplier, logger, breakpad.NewMetrics(nil))
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	opts := stackwalk.Options{
		AllowScan:            allowScan,
		AMD64UseFramePointer: useFramePtr,
	}
	state, err := procstate.Assemble(context.Background(), reader, resolver, opts)
	if err != nil {
		return fmt.Errorf("assembling process state: %w", err)
	}

	printProcessState(state)
	return nil
}

func printProcessState(state *procstate.ProcessState) {
	statusColor := color.GreenString
	if state.Crashed {
		statusColor = color.RedString
	} else if state.Status == procstate.StatusInterrupted {
		statusColor = color.YellowString
	}

	fmt.Printf("OS:      %s\n", state.OS)
	fmt.Printf("CPU:     %s\n", state.CPU)
	fmt.Printf("Status:  %s\n", statusColor(string(state.Status)))
	if state.Crashed {
		fmt.Printf("Crash:   %s at %#x\n", color.RedString(state.CrashReason), state.CrashAddress)
	}

	for i, t := range state.Threads {
		marker := "  "
		if i == state.RequestingThreadIndex {
			marker = color.YellowString("=>")
		}
		fmt.Printf("\n%s Thread %d (%d frames)\n", marker, t.ThreadID, len(t.Stack))
		for j, f := range t.Stack {
			name := f.Function
			if name == "" {
				name = "??"
			}
			modName := "<unknown>"
			if f.Module != nil {
				modName = f.Module.Name
			}
			fmt.Printf("  #%-3d %#016x %s!%s [%s] (%s)\n", j, f.InstructionAddr, modName, name, fmtSourceLoc(f.SourceFile, f.SourceLine), f.Trust)
		}
	}

	if len(state.ModulesWithoutSymbols) > 0 {
		fmt.Println(color.YellowString("\nModules without symbols:"))
		for _, m := range state.ModulesWithoutSymbols {
			fmt.Printf("  %s %s\n", m.Name, m.DebugIdentifier)
		}
	}
	if len(state.ModulesWithCorruptSymbols) > 0 {
		fmt.Println(color.RedString("\nModules with corrupt symbols:"))
		for _, m := range state.ModulesWithCorruptSymbols {
			fmt.Printf("  %s %s\n", m.Name, m.DebugIdentifier)
		}
	}
}

func fmtSourceLoc(file string, line uint32) string {
	if file == "" {
		return "?"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
