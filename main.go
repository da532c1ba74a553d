package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/live-labs/fastmem/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "set":
		runSet(os.Args[2:])
	case "get":
		runGet(os.Args[2:])
	case "rm":
		runRm(os.Args[2:])
	case "ls":
		runLs(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "passwd", "set-password":
		runPasswd(os.Args[2:])
	case "save":
		runSave(os.Args[2:])
	case "load":
		runLoad(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "diff":
		runDiff(os.Args[2:])
	case "keyring":
		runKeyring(os.Args[2:])
	case "completion":
		runCompletion(os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared --path flag
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	path := fs.String("path", ".", "Directory containing the storage")
	return fs, path
}

func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// requireArgs exits with usage when fewer positional arguments are given
func requireArgs(fs *flag.FlagSet, n int, usage string) {
	if fs.NArg() < n {
		fmt.Fprintf(os.Stderr, "Usage: fastmem %s\n", usage)
		os.Exit(1)
	}
}

func runInit(args []string) {
	fs, path := newFlagSet("init")
	parseOrExit(fs, args)
	requireArgs(fs, 1, "init <name> [--path <dir>]")

	cmd.Init(fs.Arg(0), *path)
}

func runSet(args []string) {
	fs, path := newFlagSet("set")
	parseOrExit(fs, args)
	requireArgs(fs, 3, "set <name> <key> <value> [--path <dir>]")

	cmd.Set(fs.Arg(0), *path, fs.Arg(1), fs.Arg(2))
}

func runGet(args []string) {
	fs, path := newFlagSet("get")
	parseOrExit(fs, args)
	requireArgs(fs, 2, "get <name> <key> [--path <dir>]")

	cmd.Get(fs.Arg(0), *path, fs.Arg(1))
}

func runRm(args []string) {
	fs, path := newFlagSet("rm")
	parseOrExit(fs, args)
	requireArgs(fs, 2, "rm <name> <key> [--path <dir>]")

	cmd.Remove(fs.Arg(0), *path, fs.Arg(1))
}

func runLs(args []string) {
	fs, path := newFlagSet("ls")
	parseOrExit(fs, args)
	requireArgs(fs, 1, "ls <name> [--path <dir>]")

	cmd.List(fs.Arg(0), *path)
}

func runClear(args []string) {
	fs, path := newFlagSet("clear")
	yes := fs.Bool("yes", false, "Skip confirmation")
	parseOrExit(fs, args)
	requireArgs(fs, 1, "clear <name> [--yes] [--path <dir>]")

	cmd.Clear(fs.Arg(0), *path, *yes)
}

func runPasswd(args []string) {
	fs, path := newFlagSet("passwd")
	parseOrExit(fs, args)
	requireArgs(fs, 1, "passwd <name> [--path <dir>]")

	cmd.Passwd(fs.Arg(0), *path)
}

func runSave(args []string) {
	fs, path := newFlagSet("save")
	parseOrExit(fs, args)
	requireArgs(fs, 2, "save <name> <snapshot> [--path <dir>]")

	cmd.Save(fs.Arg(0), *path, fs.Arg(1))
}

func runLoad(args []string) {
	fs, path := newFlagSet("load")
	parseOrExit(fs, args)
	requireArgs(fs, 2, "load <name> <snapshot> [--path <dir>]")

	cmd.Load(fs.Arg(0), *path, fs.Arg(1))
}

func runStatus(args []string) {
	fs, path := newFlagSet("status")
	parseOrExit(fs, args)
	requireArgs(fs, 1, "status <name> [--path <dir>]")

	cmd.Status(fs.Arg(0), *path)
}

func runDiff(args []string) {
	fs, path := newFlagSet("diff")
	parseOrExit(fs, args)
	requireArgs(fs, 2, "diff <name> <snapshot> [--path <dir>]")

	cmd.Diff(fs.Arg(0), *path, fs.Arg(1))
}

func runKeyring(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fastmem keyring <save|delete|status> <name> [--path <dir>]")
		os.Exit(1)
	}
	action := args[0]

	fs, path := newFlagSet("keyring " + action)
	parseOrExit(fs, args[1:])
	requireArgs(fs, 1, "keyring "+action+" <name> [--path <dir>]")

	switch action {
	case "save":
		cmd.KeyringSave(fs.Arg(0), *path)
	case "delete":
		cmd.KeyringDelete(fs.Arg(0), *path)
	case "status":
		cmd.KeyringStatus(fs.Arg(0), *path)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring action: %s\n", action)
		os.Exit(1)
	}
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fastmem completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("fastmem - Encrypted key-value memory storage")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fastmem <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init        Create a new storage")
	fmt.Println("  set         Encrypt and store a value")
	fmt.Println("  get         Decrypt and print a value")
	fmt.Println("  rm          Remove a key")
	fmt.Println("  ls          List stored keys")
	fmt.Println("  clear       Remove all entries")
	fmt.Println("  passwd      Set or change the storage password")
	fmt.Println("  save        Write a named snapshot")
	fmt.Println("  load        Restore a named snapshot")
	fmt.Println("  status      Show storage status")
	fmt.Println("  diff        Compare current state with a snapshot")
	fmt.Println("  keyring     Manage the OS keyring password")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  fastmem init notes                  # Create storage 'notes'")
	fmt.Println("  fastmem passwd notes                # Set its password")
	fmt.Println("  fastmem set notes user johndoe      # Store a value")
	fmt.Println("  fastmem get notes user              # Read it back")
	fmt.Println("  fastmem save notes backup1          # Snapshot the state")
	fmt.Println()
	fmt.Println("Use 'fastmem help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "init":
		fmt.Println("fastmem init <name> [--path <dir>]")
		fmt.Println()
		fmt.Println("Creates a new storage directory with a default snapshot and a")
		fmt.Println("freshly generated salt. No password is set; run 'fastmem passwd'")
		fmt.Println("to establish one before storing values.")
	case "set":
		fmt.Println("fastmem set <name> <key> <value> [--path <dir>]")
		fmt.Println()
		fmt.Println("Encrypts value under a fresh nonce and stores it, overwriting")
		fmt.Println("any existing entry with the same key. The default snapshot is")
		fmt.Println("persisted afterwards.")
		fmt.Println()
		fmt.Println("The password is read from FASTMEM_PASSWORD, the OS keyring, or")
		fmt.Println("an interactive prompt.")
	case "get":
		fmt.Println("fastmem get <name> <key> [--path <dir>]")
		fmt.Println()
		fmt.Println("Decrypts and prints the value stored under key.")
	case "rm":
		fmt.Println("fastmem rm <name> <key> [--path <dir>]")
		fmt.Println()
		fmt.Println("Removes the entry stored under key. Fails when the key does")
		fmt.Println("not exist.")
	case "ls":
		fmt.Println("fastmem ls <name> [--path <dir>]")
		fmt.Println()
		fmt.Println("Lists stored key names. Key names are not encrypted, so no")
		fmt.Println("password is required.")
	case "clear":
		fmt.Println("fastmem clear <name> [--yes] [--path <dir>]")
		fmt.Println()
		fmt.Println("Removes all entries after confirmation.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --yes    Skip confirmation")
	case "passwd":
		fmt.Println("fastmem passwd <name> [--path <dir>]")
		fmt.Println()
		fmt.Println("Sets the storage password, or changes it when one exists.")
		fmt.Println("Changing the password re-encrypts every stored entry with the")
		fmt.Println("new key. The salt never changes.")
	case "save":
		fmt.Println("fastmem save <name> <snapshot> [--path <dir>]")
		fmt.Println()
		fmt.Println("Writes the current state to a named snapshot file. Snapshots")
		fmt.Println("contain only ciphertext and coexist with the default snapshot.")
	case "load":
		fmt.Println("fastmem load <name> <snapshot> [--path <dir>]")
		fmt.Println()
		fmt.Println("Restores a named snapshot and makes it the current state.")
	case "status":
		fmt.Println("fastmem status <name> [--path <dir>]")
		fmt.Println()
		fmt.Println("Shows storage details: entry count, encryption and KDF")
		fmt.Println("parameters, timestamps, snapshots, keyring state.")
		fmt.Println()
		fmt.Println("Does not require a password.")
	case "diff":
		fmt.Println("fastmem diff <name> <snapshot> [--path <dir>]")
		fmt.Println()
		fmt.Println("Compares the current state with a snapshot, showing added and")
		fmt.Println("removed keys and value-level diffs for changed keys.")
	case "keyring":
		fmt.Println("fastmem keyring <save|delete|status> <name> [--path <dir>]")
		fmt.Println()
		fmt.Println("Manages the storage password in the OS keyring. A stored")
		fmt.Println("password is picked up automatically by other commands.")
	case "completion":
		fmt.Println("fastmem completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs a shell completion script for the specified shell.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
