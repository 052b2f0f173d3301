// Package chain serves Ethereum-style read methods from a static snapshot of
// chain state. The snapshot is loaded once and never modified, so handlers
// share it without locking.
package chain

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// State is the chain snapshot as written in the state file. Balances maps
// addresses to decimal wei amounts.
type State struct {
	ChainID       uint64            `yaml:"chain_id"`
	NetworkID     uint64            `yaml:"network_id"`
	GasPrice      string            `yaml:"gas_price"`
	BlockNumber   uint64            `yaml:"block_number"`
	ClientVersion string            `yaml:"client_version"`
	Balances      map[string]string `yaml:"balances"`
}

// DefaultState is served when no state file is configured.
func DefaultState() State {
	return State{
		ChainID:       1337,
		NetworkID:     1337,
		GasPrice:      "1000000000",
		BlockNumber:   0,
		ClientVersion: "rpcserve/v1.0.0",
	}
}

// LoadState reads a YAML state file. Unknown keys are rejected.
func LoadState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("chain: read state: %w", err)
	}
	return ParseState(b)
}

// ParseState decodes a YAML state document. Unset fields keep their
// DefaultState values.
func ParseState(b []byte) (State, error) {
	s := DefaultState()
	if err := yaml.UnmarshalStrict(b, &s); err != nil {
		return State{}, fmt.Errorf("chain: parse state: %w", err)
	}
	return s, nil
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// snapshot is the validated, query-ready form of State.
type snapshot struct {
	chainID       uint64
	networkID     uint64
	gasPrice      *big.Int
	blockNumber   uint64
	clientVersion string
	balances      map[string]*big.Int
}

func newSnapshot(s State) (*snapshot, error) {
	gasPrice, err := parseAmount(s.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("chain: gas_price: %w", err)
	}
	snap := &snapshot{
		chainID:       s.ChainID,
		networkID:     s.NetworkID,
		gasPrice:      gasPrice,
		blockNumber:   s.BlockNumber,
		clientVersion: s.ClientVersion,
		balances:      make(map[string]*big.Int, len(s.Balances)),
	}
	for addr, amount := range s.Balances {
		if !addressPattern.MatchString(addr) {
			return nil, fmt.Errorf("chain: balances: invalid address %q", addr)
		}
		v, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("chain: balances: %s: %w", addr, err)
		}
		key := strings.ToLower(addr)
		if _, dup := snap.balances[key]; dup {
			return nil, fmt.Errorf("chain: balances: %s listed twice", key)
		}
		snap.balances[key] = v
	}
	return snap, nil
}

// parseAmount accepts a non-negative decimal or 0x-prefixed hex integer.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if digits, found := strings.CutPrefix(s, "0x"); found {
		s, base = digits, 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
