package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/pinlock/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(cmd.ExitError)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(ctx, os.Args[2:])
	case "change":
		runChange(ctx, os.Args[2:])
	case "disable":
		runDisable(ctx, os.Args[2:])
	case "unlock":
		runUnlock(ctx, os.Args[2:])
	case "factor":
		runFactor(ctx, os.Args[2:])
	case "status":
		runStatus(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(cmd.ExitError)
	}
}

// newFlagSet returns a flag set with the shared -config flag
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configFile := fs.String("config", "", "Config file (default: config.yaml in the data directory)")
	return fs, configFile
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(cmd.ExitError)
	}
}

func runSetup(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("setup")
	factor := fs.String("factor", "pin", "Unlock factor: pin, biometric or both")
	parse(fs, args)

	cmd.Setup(ctx, *configFile, *factor)
}

func runChange(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("change")
	parse(fs, args)

	cmd.Change(ctx, *configFile)
}

func runDisable(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("disable")
	parse(fs, args)

	cmd.Disable(ctx, *configFile)
}

func runUnlock(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("unlock")
	parse(fs, args)

	cmd.Unlock(ctx, *configFile)
}

func runFactor(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("factor")
	parse(fs, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pinlock factor <pin|biometric|both>")
		os.Exit(cmd.ExitError)
	}
	cmd.Factor(ctx, *configFile, fs.Arg(0))
}

func runStatus(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("status")
	parse(fs, args)

	cmd.Status(ctx, *configFile)
}

func runCompact(ctx context.Context, args []string) {
	fs, configFile := newFlagSet("compact")
	parse(fs, args)

	cmd.Compact(ctx, *configFile)
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pinlock completion <bash|zsh|fish>")
		os.Exit(cmd.ExitError)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("pinlock - PIN and biometric lock for local apps")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pinlock <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  setup       Enable the lock with a new 4-digit PIN")
	fmt.Println("  change      Change the PIN")
	fmt.Println("  disable     Disable the lock and delete the PIN")
	fmt.Println("  unlock      Ask for the PIN or biometric; exit 0 when unlocked")
	fmt.Println("  factor      Choose pin, biometric or both")
	fmt.Println("  status      Show lock status")
	fmt.Println("  compact     Compact the state file")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pinlock setup                   # Enable with a PIN")
	fmt.Println("  pinlock setup -factor both      # PIN or fingerprint")
	fmt.Println("  pinlock unlock && my-app        # Gate an application")
	fmt.Println()
	fmt.Println("Use 'pinlock help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "setup":
		fmt.Println("pinlock setup [-factor pin|biometric|both] [-config file]")
		fmt.Println()
		fmt.Println("Enables the lock. Asks for a new 4-digit PIN twice.")
		fmt.Println("If the two entries differ, both must be entered again.")
		fmt.Println("Biometric factors need an enrolled sensor (see biometric.sensors).")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  pinlock setup")
		fmt.Println("  pinlock setup -factor both")
	case "change":
		fmt.Println("pinlock change [-config file]")
		fmt.Println()
		fmt.Println("Changes the PIN. Asks for the current PIN (or biometric when the")
		fmt.Println("factor allows it), then for the new PIN twice.")
	case "disable":
		fmt.Println("pinlock disable [-config file]")
		fmt.Println()
		fmt.Println("Disables the lock and deletes the stored PIN.")
		fmt.Println("Asks for the PIN (or biometric when the factor allows it).")
	case "unlock":
		fmt.Println("pinlock unlock [-config file]")
		fmt.Println()
		fmt.Println("Shows the unlock prompt when the lock is enabled.")
		fmt.Println("After 3 wrong PINs, entry pauses for 30 seconds (max_attempts, cooldown).")
		fmt.Println()
		fmt.Println("Keys:")
		fmt.Println("  0-9        PIN digits")
		fmt.Println("  Backspace  Delete last digit")
		fmt.Println("  b          Biometric prompt")
		fmt.Println("  q, Esc     Give up")
		fmt.Println()
		fmt.Println("Exit status: 0 unlocked or lock disabled, 1 error, 2 cancelled.")
	case "factor":
		fmt.Println("pinlock factor [-config file] <pin|biometric|both>")
		fmt.Println()
		fmt.Println("Changes the unlock factor. Requires passing the unlock prompt first.")
	case "status":
		fmt.Println("pinlock status [-config file]")
		fmt.Println()
		fmt.Println("Shows whether the lock is enabled, the factor, biometric")
		fmt.Println("availability and state file details.")
		fmt.Println()
		fmt.Println("Does not require the PIN.")
	case "compact":
		fmt.Println("pinlock compact [-config file]")
		fmt.Println()
		fmt.Println("Compacts the state file to reclaim unused disk space.")
		fmt.Println()
		fmt.Println("Does not require the PIN.")
	case "completion":
		fmt.Println("pinlock completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(pinlock completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(pinlock completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  pinlock completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
