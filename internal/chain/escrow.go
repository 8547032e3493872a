/**
 * @description
 * Escrow contract client for the ETH side of the swap pipeline.
 * Watches the escrow contract's Deposited(address,uint256,bytes32) event and
 * answers transaction/head queries for confirmation tracking.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/ethclient: RPC client
 * - github.com/ethereum/go-ethereum/accounts/abi: event decoding
 *
 * @notes
 * - Live subscriptions need a websocket endpoint (ETH_WS_URL); when only an
 *   HTTP endpoint is configured, SubscribeDeposits fails and the watcher falls
 *   back to periodic log filtering.
 * - All RPC calls are bounded by the configured timeout.
 */

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Escrow ABI (only the event we need)
const escrowABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"user","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"reference","type":"bytes32"}],"name":"Deposited","type":"event"}]`

// EscrowClient implements Client against a real Ethereum node
type EscrowClient struct {
	eth        *ethclient.Client
	contract   common.Address
	parsedABI  abi.ABI
	depositEvt abi.Event
	timeout    time.Duration
}

// DialEscrow connects to the Ethereum RPC endpoint and binds the escrow
// contract address. Pass the websocket URL when live subscriptions are wanted.
func DialEscrow(rpcURL, contractAddress string, timeout time.Duration) (*EscrowClient, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid escrow contract address: %q", contractAddress)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &EscrowClient{
		eth:        client,
		contract:   common.HexToAddress(contractAddress),
		parsedABI:  parsed,
		depositEvt: parsed.Events["Deposited"],
		timeout:    timeout,
	}, nil
}

// Close tears down the underlying RPC connection.
func (c *EscrowClient) Close() {
	c.eth.Close()
}

// BlockNumber returns the current chain head
func (c *EscrowClient) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.BlockNumber(ctx)
}

// TransactionBlock returns the inclusion block of a transaction.
// A transaction the node has not mined yet reports mined=false, not an error.
func (c *EscrowClient) TransactionBlock(ctx context.Context, txHash string) (uint64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("transaction receipt %s: %w", txHash, err)
	}
	if receipt.BlockNumber == nil {
		return 0, false, nil
	}
	return receipt.BlockNumber.Uint64(), true, nil
}

// FilterDeposits returns historical Deposited events in [fromBlock, toBlock]
func (c *EscrowClient) FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]DepositEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logs, err := c.eth.FilterLogs(ctx, c.depositQuery(fromBlock, toBlock))
	if err != nil {
		return nil, fmt.Errorf("filter deposit logs: %w", err)
	}

	events := make([]DepositEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := c.decodeDeposit(lg)
		if err != nil {
			// Skip undecodable logs instead of failing the whole range
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// SubscribeDeposits streams new Deposited events into sink
func (c *EscrowClient) SubscribeDeposits(ctx context.Context, sink chan<- DepositEvent) (ethereum.Subscription, error) {
	logs := make(chan types.Log, 64)
	sub, err := c.eth.SubscribeFilterLogs(ctx, c.depositQuery(0, 0), logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe deposit logs: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case lg, ok := <-logs:
				if !ok {
					return
				}
				ev, err := c.decodeDeposit(lg)
				if err != nil {
					continue
				}
				select {
				case sink <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

func (c *EscrowClient) depositQuery(fromBlock, toBlock uint64) ethereum.FilterQuery {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{c.depositEvt.ID}},
	}
	if toBlock > 0 {
		query.FromBlock = new(big.Int).SetUint64(fromBlock)
		query.ToBlock = new(big.Int).SetUint64(toBlock)
	}
	return query
}

func (c *EscrowClient) decodeDeposit(lg types.Log) (DepositEvent, error) {
	if len(lg.Topics) < 2 {
		return DepositEvent{}, fmt.Errorf("deposit log missing indexed user topic")
	}

	unpacked, err := c.parsedABI.Unpack("Deposited", lg.Data)
	if err != nil {
		return DepositEvent{}, fmt.Errorf("unpack Deposited: %w", err)
	}
	if len(unpacked) != 2 {
		return DepositEvent{}, fmt.Errorf("unexpected Deposited field count: %d", len(unpacked))
	}

	amount, ok := unpacked[0].(*big.Int)
	if !ok {
		return DepositEvent{}, fmt.Errorf("unexpected amount type %T", unpacked[0])
	}
	reference, ok := unpacked[1].([32]byte)
	if !ok {
		return DepositEvent{}, fmt.Errorf("unexpected reference type %T", unpacked[1])
	}

	return DepositEvent{
		Depositor:   common.HexToAddress(lg.Topics[1].Hex()).Hex(),
		Amount:      amount,
		Reference:   hexutil.Encode(reference[:]),
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
	}, nil
}
