package ledger

// SeedBalance is a test helper that overwrites a wallet balance when using the in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if wallet, exists := mem.wallets[walletID]; exists {
			wallet.Balance = amount
			mem.wallets[walletID] = wallet
		}
	}
}
