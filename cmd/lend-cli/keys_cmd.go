package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lendchain/cmd/internal/passphrase"
	"lendchain/crypto"
	"lendchain/rpc"
)

// EnvJWTSecret supplies the HS256 secret for the token command.
const EnvJWTSecret = "LEND_JWT_SECRET"

var (
	cliNow         = time.Now
	passphraseFrom = func(label string) func() (string, error) {
		return passphrase.NewSource(passphrase.DefaultEnvVar, label).Get
	}
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(stderr io.Writer, msg string) int {
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	return 1
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("--key is required")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found. run lend-cli generate-key first", path)
		}
		return nil, err
	}
	pass, err := passphraseFrom("keystore")()
	if err != nil {
		return nil, err
	}
	return crypto.LoadKeystore(path, pass)
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr)
	var (
		out   string
		light bool
		force bool
	)
	fs.StringVar(&out, "out", "lend.key.json", "keystore output path")
	fs.BoolVar(&light, "light", false, "use light scrypt parameters (test keys only)")
	fs.BoolVar(&force, "force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		return printError(stderr, "unexpected positional arguments")
	}
	if _, err := os.Stat(out); err == nil && !force {
		return printError(stderr, fmt.Sprintf("%s already exists; pass --force to overwrite", out))
	}
	pass, err := passphraseFrom("new keystore")()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	strength := crypto.StandardKeystore
	if light {
		strength = crypto.LightKeystore
	}
	if err := crypto.SaveKeystore(out, key, pass, strength); err != nil {
		return printError(stderr, err.Error())
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "Saved keystore to %s\n", out)
	fmt.Fprintf(stdout, "Address: %s\n", addr.String())
	fmt.Fprintf(stdout, "Hex:     %s\n", addr.Hex())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "keystore path")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	addr := key.PubKey().Address()
	fmt.Fprintln(stdout, addr.String())
	fmt.Fprintln(stdout, addr.Hex())
	return 0
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	var (
		caller  string
		keyPath string
		issuer  string
		ttl     time.Duration
	)
	fs.StringVar(&caller, "caller", "", "caller address placed in the subject claim")
	fs.StringVar(&keyPath, "key", "", "derive the caller from a keystore instead")
	fs.StringVar(&issuer, "issuer", "lendchain", "issuer claim; must match the node's RPC.JWTIssuer")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	secret := os.Getenv(EnvJWTSecret)
	if strings.TrimSpace(secret) == "" {
		return printError(stderr, EnvJWTSecret+" is required")
	}
	if ttl <= 0 {
		return printError(stderr, "--ttl must be positive")
	}

	var subject [20]byte
	switch {
	case strings.TrimSpace(caller) != "" && strings.TrimSpace(keyPath) != "":
		return printError(stderr, "pass either --caller or --key")
	case strings.TrimSpace(caller) != "":
		addr, err := crypto.ParseAddress(caller)
		if err != nil {
			return printError(stderr, err.Error())
		}
		subject = addr
	case strings.TrimSpace(keyPath) != "":
		key, err := loadKey(keyPath)
		if err != nil {
			return printError(stderr, err.Error())
		}
		subject = key.PubKey().Address().Array()
	default:
		return printError(stderr, "--caller or --key is required")
	}

	token, err := rpc.IssueToken(secret, issuer, subject, ttl, cliNow())
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}
