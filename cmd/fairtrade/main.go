package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"

	fairtrade "github.com/fairdatasociety/fairtrade"
	"github.com/fairdatasociety/fairtrade/pkg/commit"
)

const USAGE = `Usage:
  %s account <subdomain>       Create a new account (asks for a password)
  %s accounts                  List local accounts
  %s unlock <subdomain>        Verify an account password, print its address
  %s seal <id> <file>          Encrypt a file for escrow <id>, print the commitment
  %s open <id> <file.sealed>   Decrypt a sealed file with the stored key bundle
  %s ls                        List local escrow key bundles

Note:
  Keys and bundles live in the local secret store under ~/.fairtrade.
  Publishing commitments and reveals on a ledger is done through the library;
  this CLI only covers the local side.
`

func main() {
	progName := filepath.Base(os.Args[0])

	if len(os.Args) < 2 {
		usage(progName)
		os.Exit(1)
	}

	market, closeStore, err := initMarket()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing market: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	switch os.Args[1] {
	case "account":
		if len(os.Args) != 3 {
			usage(progName)
			os.Exit(1)
		}
		if err := createAccount(market, os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating account: %v\n", err)
			os.Exit(1)
		}

	case "accounts":
		if err := listAccounts(market); err != nil {
			fmt.Fprintf(os.Stderr, "Error listing accounts: %v\n", err)
			os.Exit(1)
		}

	case "unlock":
		if len(os.Args) != 3 {
			usage(progName)
			os.Exit(1)
		}
		if err := unlockAccount(market, os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error unlocking account: %v\n", err)
			os.Exit(1)
		}

	case "seal":
		if len(os.Args) != 4 {
			usage(progName)
			os.Exit(1)
		}
		if err := sealFile(market, os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "Error sealing file: %v\n", err)
			os.Exit(1)
		}

	case "open":
		if len(os.Args) != 4 {
			usage(progName)
			os.Exit(1)
		}
		if err := openFile(market, os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
			os.Exit(1)
		}

	case "ls":
		if err := listBundles(market); err != nil {
			fmt.Fprintf(os.Stderr, "Error listing bundles: %v\n", err)
			os.Exit(1)
		}

	default:
		usage(progName)
		os.Exit(1)
	}
}

func usage(progName string) {
	fmt.Fprintf(os.Stderr, USAGE, progName, progName, progName, progName, progName, progName)
}

func initMarket() (*fairtrade.Market, func(), error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to determine user home directory: %w", err)
	}

	storeDir := filepath.Join(homeDir, ".fairtrade")
	if err := os.MkdirAll(storeDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	config := &fairtrade.Config{
		Paths:  []string{storeDir},
		Logger: logger,
	}

	secrets, err := fairtrade.OpenSecretStore(config)
	if err != nil {
		return nil, nil, err
	}

	market, err := fairtrade.InitLocal(secrets, config)
	if err != nil {
		secrets.Close()
		return nil, nil, err
	}

	return market, func() { secrets.Close() }, nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(password, "\r\n"), nil
}

func createAccount(market *fairtrade.Market, subdomain string) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}

	account, err := market.CreateAccount(subdomain, password)
	if err != nil {
		return err
	}

	fmt.Printf("Created account %s (%s)\n", account.Subdomain, account.Address)
	return nil
}

func listAccounts(market *fairtrade.Market) error {
	subdomains, err := market.ListAccounts()
	if err != nil {
		return err
	}
	for _, subdomain := range subdomains {
		fmt.Println(subdomain)
	}
	return nil
}

func unlockAccount(market *fairtrade.Market, subdomain string) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}

	account, err := market.UnlockAccount(subdomain, password)
	if err != nil {
		return err
	}

	fmt.Printf("Unlocked account %s (%s)\n", account.Subdomain, account.Address)
	return nil
}

func sealFile(market *fairtrade.Market, escrowID, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	sealed, err := commit.Encrypt(content)
	if err != nil {
		return err
	}

	outPath := path + ".sealed"
	if err := os.WriteFile(outPath, sealed.Payload.Marshal(), 0o600); err != nil {
		return fmt.Errorf("failed to write sealed file: %w", err)
	}

	bundle := &fairtrade.EscrowKeyBundle{
		EscrowID:    escrowID,
		Key:         sealed.Key,
		Salt:        sealed.Salt,
		SwarmRef:    outPath,
		ContentHash: contentHash(content),
	}
	if err := market.StoreBundle(bundle); err != nil {
		return err
	}

	fmt.Printf("Sealed %s -> %s\n", path, outPath)
	fmt.Printf("Commitment: %s\n", sealed.Commitment.Hex())
	return nil
}

func contentHash(content []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(content)
	return fmt.Sprintf("0x%x", h.Sum(nil))
}

func openFile(market *fairtrade.Market, escrowID, path string) error {
	bundle, err := market.LoadBundle(escrowID)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sealed file: %w", err)
	}

	payload, err := commit.UnmarshalPayload(raw)
	if err != nil {
		return err
	}

	plaintext, err := commit.DecryptVerified(payload, bundle.Key, bundle.Salt, bundle.Commitment())
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(plaintext)
	return err
}

func listBundles(market *fairtrade.Market) error {
	infos, err := market.ListBundles()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ESCROW\tSTATE\tCOMMITMENT\tREF")
	for _, info := range infos {
		state := "complete"
		if !info.Complete {
			state = "incomplete"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.EscrowID, state, info.Commitment, info.SwarmRef)
	}
	return w.Flush()
}
