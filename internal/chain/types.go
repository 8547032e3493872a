/**
 * @description
 * Chain capability surface consumed by the background workers.
 * The workers only need four things from the chain: the current head, whether
 * a transaction is mined and where, historical deposit events, and a live
 * deposit event stream. Everything else about the RPC client stays behind
 * this interface so the watcher/poller loops are testable with fakes.
 */

package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// DepositEvent is one Deposited(address,uint256,bytes32) emission from the
// escrow contract.
type DepositEvent struct {
	Depositor   string   // hex address of the depositing wallet
	Amount      *big.Int // wei
	Reference   string   // bytes32 hex, ties the deposit to an order
	TxHash      string
	BlockNumber uint64
}

// AmountEther converts the deposited wei amount to ether units
func (e *DepositEvent) AmountEther() float64 {
	if e.Amount == nil {
		return 0
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(e.Amount), big.NewFloat(1e18)).Float64()
	return eth
}

// Client is the chain capability used by the deposit watcher and
// confirmation poller.
type Client interface {
	// BlockNumber returns the current chain head
	BlockNumber(ctx context.Context) (uint64, error)

	// TransactionBlock returns the block a transaction was mined in.
	// mined=false (with nil error) means the transaction is not yet included.
	TransactionBlock(ctx context.Context, txHash string) (blockNumber uint64, mined bool, err error)

	// FilterDeposits returns historical deposit events in [fromBlock, toBlock]
	FilterDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]DepositEvent, error)

	// SubscribeDeposits streams new deposit events into sink until the
	// subscription is cancelled or fails
	SubscribeDeposits(ctx context.Context, sink chan<- DepositEvent) (ethereum.Subscription, error)
}
