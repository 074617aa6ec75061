package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"nhbmarket/cmd/internal/passphrase"
	"nhbmarket/crypto"
	"nhbmarket/rpc"
)

const (
	keystorePassEnv = "NHBMARKET_KEYSTORE_PASS"
	secretEnv       = "NHBMARKET_JWT_SECRET"
	tokenEnv        = "NHBMARKET_RPC_TOKEN"
	privateKeyEnv   = "NHBMARKET_PRIVATE_KEY"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "call":
		return runCall(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: market-cli <command> [flags]

Commands:
  keygen  [--keystore path] [--import]          generate (or import from ` + privateKeyEnv + `) a key and print its address
  address --keystore path                       print the address held in a keystore
  token   --sub addr|--keystore path [--ttl 1h] mint a bearer token (secret from ` + secretEnv + `)
  call    [--rpc url] [--token t] method [json]  send a JSON-RPC request
`)
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	return fs
}

func printError(w io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
	return 1
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	keystorePath := fs.String("keystore", "", "write the key to an encrypted keystore file")
	importKey := fs.Bool("import", false, "read a hex private key from "+privateKeyEnv+" instead of generating one")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var key *crypto.PrivateKey
	var err error
	if *importKey {
		key, err = importPrivateKey(os.Getenv(privateKeyEnv))
		if err != nil {
			return printError(stderr, "import key: %v", err)
		}
	} else {
		key, err = crypto.GeneratePrivateKey()
		if err != nil {
			return printError(stderr, "generate key: %v", err)
		}
	}
	if path := strings.TrimSpace(*keystorePath); path != "" {
		pass, err := passphrase.NewSource(keystorePassEnv, "keystore").Get()
		if err != nil {
			return printError(stderr, "%v", err)
		}
		if err := crypto.SaveToKeystore(path, key, pass); err != nil {
			return printError(stderr, "save keystore: %v", err)
		}
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func importPrivateKey(raw string) (*crypto.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("%s is empty", privateKeyEnv)
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", privateKeyEnv, err)
	}
	return crypto.PrivateKeyFromBytes(b)
}

func loadAddress(path string) ([20]byte, error) {
	pass, err := passphrase.NewSource(keystorePassEnv, "keystore").Get()
	if err != nil {
		return [20]byte{}, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return [20]byte{}, err
	}
	return key.PubKey().Address().Array(), nil
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	keystorePath := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*keystorePath) == "" {
		return printError(stderr, "--keystore is required")
	}
	addr, err := loadAddress(*keystorePath)
	if err != nil {
		return printError(stderr, "load keystore: %v", err)
	}
	fmt.Fprintln(stdout, crypto.FormatAddress(addr))
	return 0
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	subject := fs.String("sub", "", "bech32 address the token speaks for")
	keystorePath := fs.String("keystore", "", "derive the subject from a keystore")
	issuer := fs.String("issuer", "nhbmarket", "iss claim")
	audience := fs.String("audience", "", "aud claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	secret := strings.TrimSpace(os.Getenv(secretEnv))
	if secret == "" {
		return printError(stderr, "%s must be set", secretEnv)
	}
	var caller [20]byte
	switch {
	case strings.TrimSpace(*subject) != "":
		addr, err := crypto.ParseAddress(strings.TrimSpace(*subject))
		if err != nil {
			return printError(stderr, "invalid --sub: %v", err)
		}
		caller = addr
	case strings.TrimSpace(*keystorePath) != "":
		addr, err := loadAddress(*keystorePath)
		if err != nil {
			return printError(stderr, "load keystore: %v", err)
		}
		caller = addr
	default:
		return printError(stderr, "--sub or --keystore is required")
	}
	token, err := rpc.IssueToken([]byte(secret), caller, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		return printError(stderr, "mint token: %v", err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080/rpc"
}

func runCall(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("call", stderr)
	endpoint := fs.String("rpc", defaultRPCEndpoint(), "JSON-RPC endpoint")
	token := fs.String("token", os.Getenv(tokenEnv), "bearer token")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return printError(stderr, "method is required")
	}
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": rest[0]}
	if len(rest) > 1 {
		raw := json.RawMessage(rest[1])
		if !json.Valid(raw) {
			return printError(stderr, "params must be a JSON object")
		}
		payload["params"] = []json.RawMessage{raw}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return printError(stderr, "encode request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, *endpoint, bytes.NewReader(body))
	if err != nil {
		return printError(stderr, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t := strings.TrimSpace(*token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return printError(stderr, "POST %s: %v", *endpoint, err)
	}
	defer resp.Body.Close()
	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return printError(stderr, "decode response (HTTP %d): %v", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		fmt.Fprintf(stderr, "RPC error %d: %s\n", decoded.Error.Code, decoded.Error.Message)
		if len(decoded.Error.Data) > 0 {
			fmt.Fprintf(stderr, "%s\n", decoded.Error.Data)
		}
		return 1
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, decoded.Result, "", "  "); err != nil {
		fmt.Fprintln(stdout, string(decoded.Result))
		return 0
	}
	fmt.Fprintln(stdout, pretty.String())
	return 0
}
