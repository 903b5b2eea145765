// Command inspect dumps the state of a local fairtrade secret store: which
// keys exist and whether each escrow key bundle validates. Values are never
// printed.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	fairtrade "github.com/fairdatasociety/fairtrade"
	"github.com/fairdatasociety/fairtrade/pkg/spaceinfo"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <store-dir>\n", os.Args[0])
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	config := &fairtrade.Config{
		Paths:  []string{os.Args[1]},
		Logger: logger,
	}

	secrets, err := fairtrade.OpenSecretStore(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening secret store: %v\n", err)
		os.Exit(1)
	}
	defer secrets.Close()

	market, err := fairtrade.InitLocal(secrets, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing market: %v\n", err)
		os.Exit(1)
	}

	keys, err := secrets.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing keys: %v\n", err)
		os.Exit(1)
	}

	if size, err := spaceinfo.CalculateDirectorySize(os.Args[1]); err == nil {
		fmt.Printf("Store size on disk: %d bytes\n", size)
	}

	fmt.Printf("Secret store entries: %d\n", len(keys))
	for _, key := range keys {
		fmt.Printf("  %s\n", key)
	}

	results, err := market.ValidateAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error validating bundles: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Bundles: %d\n", len(results))
	for _, res := range results {
		if res.Passed() {
			fmt.Printf("  %s: ok\n", res.EscrowID)
		} else {
			fmt.Printf("  %s: %v\n", res.EscrowID, res.Err)
		}
	}
}
