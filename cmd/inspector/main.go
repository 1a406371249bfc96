package main

import (
	"fmt"
	"log"

	"github.com/biscalabs/biscagate/internal/config"
	"github.com/biscalabs/biscagate/internal/dealer"
	"github.com/biscalabs/biscagate/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// Small operator tool: prints the resolved configuration and the card table
// so a deployment can be sanity-checked without starting the server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("--- Resolved Configuration ---")
	fmt.Printf("Server port:        %s\n", cfg.Server.Port)
	fmt.Printf("Ledger:             %s (%s), initial supply %s\n", cfg.Ledger.Name, cfg.Ledger.Symbol, cfg.Ledger.InitialSupply)
	fmt.Printf("Ledger admin:       %s\n", common.HexToAddress(cfg.Ledger.Admin).Hex())
	fmt.Printf("Treasury:           %s\n", common.HexToAddress(cfg.Treasury.Address).Hex())
	fmt.Printf("Treasury owners:    %d (threshold %d)\n", len(cfg.Treasury.Owners), cfg.Treasury.RequiredSignatures)
	fmt.Printf("Random event:       amount %s every %ds to %s\n",
		cfg.Treasury.RandomEventAmount, cfg.Treasury.CooldownSeconds, common.HexToAddress(cfg.Treasury.Beneficiary).Hex())
	fmt.Printf("Oracle identity:    %s (local_mode=%v, ttl=%ds)\n",
		common.HexToAddress(cfg.Oracle.Identity).Hex(), cfg.Oracle.LocalMode, cfg.Oracle.RequestTTLSeconds)
	fmt.Printf("House:              %s, bets %s..%s\n",
		common.HexToAddress(cfg.Dealer.House).Hex(), cfg.Dealer.MinBet, cfg.Dealer.MaxBet)

	fmt.Println("\n--- Card Table ---")
	for c := model.Card(1); c <= 52; c++ {
		fmt.Printf("%2d: %-18s", c, dealer.CardName(c))
		if c%4 == 0 {
			fmt.Println()
		}
	}
}
