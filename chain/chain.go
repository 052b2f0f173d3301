package chain

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// Block tags accepted by eth_getBalance.
const (
	BlockLatest    = "latest"
	BlockEarliest  = "earliest"
	BlockPending   = "pending"
	BlockSafe      = "safe"
	BlockFinalized = "finalized"
)

// Service answers chain queries from a snapshot.
type Service struct {
	snap *snapshot
}

// NewService validates s and returns a Service serving it.
func NewService(s State) (*Service, error) {
	snap, err := newSnapshot(s)
	if err != nil {
		return nil, err
	}
	return &Service{snap: snap}, nil
}

// Register adds the eth_, net_, and web3_ methods to r.
func (s *Service) Register(r *jsonrpc.Registry) error {
	eth := r.Namespace("eth")
	builders := []*jsonrpc.MethodBuilder{
		eth.Method("chainId").
			Summary("Chain ID as a hex quantity").
			Handle(jsonrpc.Func(s.ChainID)),
		eth.Method("gasPrice").
			Summary("Current gas price in wei as a hex quantity").
			Handle(jsonrpc.Func(s.GasPrice)),
		eth.Method("blockNumber").
			Summary("Number of the most recent block as a hex quantity").
			Handle(jsonrpc.Func(s.BlockNumber)),
		eth.Method("getBalance").
			Summary("Balance of an address in wei as a hex quantity").
			Handle(jsonrpc.Func(s.GetBalance)),
		r.Namespace("net").Method("version").
			Summary("Network ID as a decimal string").
			Handle(jsonrpc.Func(s.NetVersion)),
		r.Namespace("web3").Method("clientVersion").
			Summary("Client name and version").
			Handle(jsonrpc.Func(s.ClientVersion)),
	}
	for _, b := range builders {
		if err := b.Register(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ChainID(context.Context, struct{}) (string, error) {
	return EncodeUint(s.snap.chainID), nil
}

func (s *Service) GasPrice(context.Context, struct{}) (string, error) {
	return EncodeBig(s.snap.gasPrice), nil
}

func (s *Service) BlockNumber(context.Context, struct{}) (string, error) {
	return EncodeUint(s.snap.blockNumber), nil
}

func (s *Service) NetVersion(context.Context, struct{}) (string, error) {
	return strconv.FormatUint(s.snap.networkID, 10), nil
}

func (s *Service) ClientVersion(context.Context, struct{}) (string, error) {
	return s.snap.clientVersion, nil
}

// BalanceParams is the parameter list of eth_getBalance.
type BalanceParams struct {
	Address string  `json:"address" summary:"20-byte address, 0x-prefixed"`
	Block   *string `json:"block" summary:"block tag or hex block number; defaults to latest"`
}

// GetBalance returns the balance held by an address. Addresses absent from
// the snapshot hold zero.
func (s *Service) GetBalance(_ context.Context, p BalanceParams) (string, error) {
	if !addressPattern.MatchString(p.Address) {
		return "", jsonrpc.NewErrorWithData(jsonrpc.CodeInvalidParams, "Invalid params: malformed address",
			map[string]string{"address": p.Address})
	}
	if p.Block != nil {
		if err := s.checkBlock(*p.Block); err != nil {
			return "", err
		}
	}
	balance, ok := s.snap.balances[strings.ToLower(p.Address)]
	if !ok {
		return "0x0", nil
	}
	return EncodeBig(balance), nil
}

func (s *Service) checkBlock(block string) error {
	switch block {
	case BlockLatest, BlockEarliest, BlockPending, BlockSafe, BlockFinalized:
		return nil
	}
	n, err := DecodeUint(block)
	if err != nil {
		return jsonrpc.NewErrorWithData(jsonrpc.CodeInvalidParams, "Invalid params: unknown block", map[string]string{"block": block})
	}
	if n > s.snap.blockNumber {
		return jsonrpc.NewErrorWithData(jsonrpc.CodeInvalidParams, "Invalid params: unknown block", map[string]string{"block": block})
	}
	return nil
}

// EncodeUint formats n as a hex quantity: 0x-prefixed, no leading zeros.
func EncodeUint(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// EncodeBig formats a non-negative n as a hex quantity.
func EncodeBig(n *big.Int) string {
	return "0x" + n.Text(16)
}

// DecodeUint parses a hex quantity. Leading zeros are rejected.
func DecodeUint(s string) (uint64, error) {
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok || digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseUint(digits, 16, 64)
}
