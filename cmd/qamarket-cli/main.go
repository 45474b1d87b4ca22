package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"qamarket/crypto"
	"qamarket/rpc"
	sdk "qamarket/sdk/market"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("QAMARKET_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	args = args[1:]
	switch command {
	case "generate-key":
		file := "wallet.key"
		if len(args) > 0 {
			file = args[0]
		}
		generateKey(file)
	case "show-address":
		requireArgs(args, 1, "show-address <key-file>")
		showAddress(args[0])
	case "issue-token":
		requireArgs(args, 1, "issue-token <subject> [ttl]")
		ttl := 24 * time.Hour
		if len(args) > 1 {
			parsed, err := time.ParseDuration(args[1])
			if err != nil {
				fatalf("invalid ttl: %v", err)
			}
			ttl = parsed
		}
		issueToken(args[0], ttl)
	case "hash-content":
		requireArgs(args, 1, "hash-content <file>")
		hashContent(args[0])
	case "init":
		requireArgs(args, 3, "init <authority> <treasury> <payment-mint>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.Initialize(ctx, args[0], args[1], args[2])
		})
	case "init-user":
		requireArgs(args, 1, "init-user <owner>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.EnsureUserState(ctx, args[0])
		})
	case "create-question":
		requireArgs(args, 5, "create-question <marketplace> <creator> <cid> <price> <max-keys> [content-file]")
		maxKeys, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			fatalf("invalid max-keys: %v", err)
		}
		contentHash := ""
		if len(args) > 5 {
			raw, err := os.ReadFile(args[5])
			if err != nil {
				fatalf("read content: %v", err)
			}
			contentHash = sdk.ContentHashHex(raw)
		}
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.CreateQuestion(ctx, args[0], args[1], args[2], contentHash, args[3], maxKeys)
		})
	case "mint-key":
		requireArgs(args, 4, "mint-key <question> <buyer> <metadata-uri> <enc-key-base64>")
		encKey := decodeKeyArg(args[3])
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.MintUnlockKey(ctx, args[0], args[1], args[2], encKey)
		})
	case "list-key":
		requireArgs(args, 3, "list-key <key> <seller> <price>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.ListKey(ctx, args[0], args[1], args[2])
		})
	case "update-listing":
		requireArgs(args, 3, "update-listing <key> <seller> <price>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.UpdateListing(ctx, args[0], args[1], args[2])
		})
	case "cancel-listing":
		requireArgs(args, 2, "cancel-listing <key> <seller>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.CancelListing(ctx, args[0], args[1])
		})
	case "buy-key":
		requireArgs(args, 3, "buy-key <key> <buyer> <enc-key-base64>")
		encKey := decodeKeyArg(args[2])
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.BuyListedKey(ctx, args[0], args[1], encKey)
		})
	case "pause":
		requireArgs(args, 2, "pause <marketplace> <caller>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.ToggleMarketplace(ctx, args[0], args[1])
		})
	case "pause-op":
		requireArgs(args, 3, "pause-op <marketplace> <caller> <operation>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.ToggleOperation(ctx, args[0], args[1], args[2])
		})
	case "update-fees":
		requireArgs(args, 4, "update-fees <marketplace> <caller> <platform-bps> <royalty-bps>")
		platform, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			fatalf("invalid platform-bps: %v", err)
		}
		royalty, err := strconv.ParseUint(args[3], 10, 32)
		if err != nil {
			fatalf("invalid royalty-bps: %v", err)
		}
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.UpdateFees(ctx, args[0], args[1], uint32(platform), uint32(royalty))
		})
	case "update-treasury":
		requireArgs(args, 3, "update-treasury <marketplace> <caller> <new-treasury>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.UpdateTreasury(ctx, args[0], args[1], args[2])
		})
	case "transfer-authority":
		requireArgs(args, 3, "transfer-authority <marketplace> <caller> <new-authority>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.TransferAuthority(ctx, args[0], args[1], args[2])
		})
	case "blacklist":
		requireArgs(args, 3, "blacklist <marketplace> <caller> <user>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.Blacklist(ctx, args[0], args[1], args[2])
		})
	case "unblacklist":
		requireArgs(args, 3, "unblacklist <marketplace> <caller> <user>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.Unblacklist(ctx, args[0], args[1], args[2])
		})
	case "marketplace":
		requireArgs(args, 1, "marketplace <address>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.GetMarketplace(ctx, args[0])
		})
	case "question":
		requireArgs(args, 1, "question <address>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.GetQuestion(ctx, args[0])
		})
	case "key":
		requireArgs(args, 1, "key <address>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.GetUnlockKey(ctx, args[0])
		})
	case "user":
		requireArgs(args, 1, "user <owner>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.GetUserState(ctx, args[0])
		})
	case "balance":
		requireArgs(args, 1, "balance <owner>")
		run(func(ctx context.Context, c *sdk.Client) (interface{}, error) {
			return c.GetBalance(ctx, args[0])
		})
	default:
		fmt.Printf("Unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
}

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("QAMARKET_RPC_URL")); url != "" {
		return url
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := args[:0]
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a value")
			}
			i++
			rpcEndpoint = args[i]
		case strings.HasPrefix(args[i], "--rpc="):
			rpcEndpoint = strings.TrimPrefix(args[i], "--rpc=")
		default:
			out = append(out, args[i])
		}
	}
	return out, nil
}

func run(fn func(ctx context.Context, c *sdk.Client) (interface{}, error)) {
	opts := []sdk.Option{}
	if rpcAuthToken != "" {
		opts = append(opts, sdk.WithAuthToken(rpcAuthToken))
	}
	client := sdk.NewClient(rpcEndpoint, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := fn(ctx, client)
	if err != nil {
		fatalf("%v", err)
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fatalf("encode result: %v", err)
	}
	fmt.Println(string(encoded))
}

func generateKey(file string) {
	if _, err := os.Stat(file); err == nil {
		fatalf("refusing to overwrite existing key file %s", file)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fatalf("generate key: %v", err)
	}
	encoded := hex.EncodeToString(key.Bytes())
	if err := os.WriteFile(file, []byte(encoded), 0o600); err != nil {
		fatalf("write key file: %v", err)
	}
	fmt.Printf("Wrote new key to %s\n", file)
	fmt.Printf("Address: %s\n", key.PubKey().Address())
}

func showAddress(file string) {
	key := loadKey(file)
	fmt.Println(key.PubKey().Address())
}

func loadKey(file string) *crypto.PrivateKey {
	raw, err := os.ReadFile(file)
	if err != nil {
		fatalf("read key file: %v", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		fatalf("decode key file: %v", err)
	}
	key, err := crypto.PrivateKeyFromBytes(decoded)
	if err != nil {
		fatalf("parse key: %v", err)
	}
	return key
}

func issueToken(subject string, ttl time.Duration) {
	secret := strings.TrimSpace(os.Getenv("QAMARKET_RPC_SECRET"))
	if secret == "" {
		fatalf("QAMARKET_RPC_SECRET must be set to issue tokens")
	}
	token, err := rpc.IssueToken([]byte(secret), subject, ttl)
	if err != nil {
		fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}

func hashContent(file string) {
	raw, err := os.ReadFile(file)
	if err != nil {
		fatalf("read content: %v", err)
	}
	fmt.Println(sdk.ContentHashHex(raw))
}

// decodeKeyArg accepts either base64 ciphertext or, prefixed with @, a file
// holding the raw bytes.
func decodeKeyArg(arg string) []byte {
	if strings.HasPrefix(arg, "@") {
		raw, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			fatalf("read encrypted key: %v", err)
		}
		return raw
	}
	decoded, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		fatalf("decode encrypted key: %v", err)
	}
	return decoded
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Printf("Usage: qamarket-cli %s\n", usage)
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Usage: qamarket-cli [--rpc <url>] <command> [args]

Keys and auth:
  generate-key [file]                          Create a wallet key
  show-address <key-file>                      Print the bech32 address for a key
  issue-token <subject> [ttl]                  Mint an admin bearer token (QAMARKET_RPC_SECRET)
  hash-content <file>                          Print the content commitment for a file

Marketplace admin:
  init <authority> <treasury> <payment-mint>
  pause <marketplace> <caller>
  pause-op <marketplace> <caller> <operation>
  update-fees <marketplace> <caller> <platform-bps> <royalty-bps>
  update-treasury <marketplace> <caller> <new-treasury>
  transfer-authority <marketplace> <caller> <new-authority>
  blacklist <marketplace> <caller> <user>
  unblacklist <marketplace> <caller> <user>

Trading:
  init-user <owner>
  create-question <marketplace> <creator> <cid> <price> <max-keys> [content-file]
  mint-key <question> <buyer> <metadata-uri> <enc-key-base64|@file>
  list-key <key> <seller> <price>
  update-listing <key> <seller> <price>
  cancel-listing <key> <seller>
  buy-key <key> <buyer> <enc-key-base64|@file>

Queries:
  marketplace <address>   question <address>   key <address>
  user <owner>            balance <owner>

Environment: QAMARKET_RPC_URL, QAMARKET_RPC_TOKEN, QAMARKET_RPC_SECRET`)
}
