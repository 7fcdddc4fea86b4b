// Command armemu is the minimal CLI host for the ARMv7-M core: load a raw
// firmware image, run it to a breakpoint or step limit, and print the
// resulting register/memory state. It exists purely as an external
// collaborator at the CLI/UI boundary — the core package itself has no
// notion of a command line — following the same separation between an
// embedded core and its front-end that other emulators in this space use,
// but built here with stdlib `flag`/`fmt` rather than a TUI dependency.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cortexm3/armv7m/arm"
	"github.com/cortexm3/armv7m/arm/config"
	"github.com/cortexm3/armv7m/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "armemu:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("armemu", flag.ContinueOnError)
	image := fs.String("image", "", "path to a raw firmware image (required)")
	cfgPath := fs.String("config", "", "path to a TOML memory-map config (default: a generic Cortex-M3/M4 layout)")
	maxSteps := fs.Int("steps", 1_000_000, "maximum number of instructions to execute before stopping")
	breakAt := fs.String("break", "", "comma-separated list of hex breakpoint addresses, e.g. 0x08000100,0x08000200")
	dumpRegs := fs.Bool("regs", true, "print the register file when execution stops")
	readAddr := fs.String("read", "", "hex address to dump a word from after execution stops")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *image == "" {
		return fmt.Errorf("-image is required")
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			return err
		}
	}

	firmware, err := os.ReadFile(*image)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	core := arm.NewARM(cfg)
	if err := core.Load(firmware); err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	for _, tok := range strings.Split(*breakAt, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		addr, err := parseHex(tok)
		if err != nil {
			return fmt.Errorf("parsing breakpoint %q: %w", tok, err)
		}
		if err := core.AddBreakpoint(addr); err != nil {
			return fmt.Errorf("adding breakpoint %q: %w", tok, err)
		}
	}

	stepped := 0
	for stepped < *maxSteps {
		if core.AtBreakpoint() {
			regs := core.Registers()
			fmt.Printf("stopped at breakpoint %#08x after %d instructions\n", regs.Reg(arm.PC)&^1, stepped)
			break
		}
		outcome, ferr := core.Step()
		if ferr != nil {
			logger.Tail(os.Stderr, 20)
			return fmt.Errorf("fatal core error at step %d: %w", stepped, ferr)
		}
		stepped++
		if outcome.ExceptionTaken {
			fmt.Printf("step %d: took %s at %#08x\n", stepped, outcome.Exception, outcome.RetiredPC)
		}
	}
	if stepped >= *maxSteps {
		fmt.Printf("stopped after reaching the step limit (%d)\n", *maxSteps)
	}

	if *dumpRegs {
		printRegisters(core)
	}
	if *readAddr != "" {
		addr, err := parseHex(*readAddr)
		if err != nil {
			return fmt.Errorf("parsing -read address: %w", err)
		}
		mem := core.Memory()
		var v uint32
		for i := uint32(0); i < 4; i++ {
			v |= uint32(mem.Read(addr+i)) << (8 * i)
		}
		fmt.Printf("[%#08x] = %#08x\n", addr, v)
	}
	return nil
}

func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

func printRegisters(core *arm.ARM) {
	regs := core.Registers()
	for i := 0; i < 13; i++ {
		fmt.Printf("r%-2d = %#08x\n", i, regs.Reg(i))
	}
	fmt.Printf("sp  = %#08x\n", regs.SP())
	fmt.Printf("lr  = %#08x\n", regs.Reg(arm.LR))
	fmt.Printf("pc  = %#08x\n", regs.Reg(arm.PC))
	flags := regs.APSR()
	fmt.Printf("apsr = N:%v Z:%v C:%v V:%v Q:%v\n", flags.N, flags.Z, flags.C, flags.V, flags.Q)
	fmt.Printf("mode = %s  ipsr = %d\n", regs.Mode(), regs.IPSR())
}
