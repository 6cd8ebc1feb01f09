package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var rpcEndpoint = defaultRPCEndpoint() // overridden by --rpc
var rpcAuthToken = os.Getenv("LEND_RPC_TOKEN")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}

	switch args[0] {
	case "generate-key":
		return runGenerateKey(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "sign-borrow":
		return runSignBorrow(args[1:], stdout, stderr)
	case "call":
		return runCall(args[1:], stdout, stderr)
	case "export":
		return runExport(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("LEND_RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8545/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				rpcAuthToken = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--token="):
			rpcAuthToken = strings.TrimPrefix(arg, "--token=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: lend-cli [--rpc URL] [--token JWT] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Keystore passphrases are read from LEND_KEYSTORE_PASSPHRASE or prompted for.")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  generate-key --out <file>          - Creates an encrypted keystore and prints its address")
	fmt.Fprintln(w, "  address --key <file>               - Prints the address held by a keystore")
	fmt.Fprintln(w, "  token --caller <addr>              - Issues an RPC bearer token signed with LEND_JWT_SECRET")
	fmt.Fprintln(w, "  sign-borrow --key <file> --item <id> --borrower <addr>")
	fmt.Fprintln(w, "                                     - Signs an owner borrow authorization")
	fmt.Fprintln(w, "  call <method> [paramsJSON]         - Sends a raw JSON-RPC call")
	fmt.Fprintln(w, "  export --dsn <dsn>                 - Exports indexed events as CSV or JSONL")
}
