package channel

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"golang.org/x/sync/singleflight"
)

// ContractView is the snapshot of the five read-only fields the gateway
// fetches from the on-chain payment-channel contract.
type ContractView struct {
	Balance    *uint256.Int
	Expiration *uint256.Int
	ChannelID  *uint256.Int
	Sender     common.Address
	Recipient  common.Address
}

// ContractGateway is the read-only adapter to the on-chain payment-channel
// contract, plus the off-hot-path close writer.
type ContractGateway interface {
	// Read fetches the five getters for the channel contract instance at
	// addr. Called once per channel, on first use.
	Read(ctx context.Context, addr common.Address) (ContractView, error)

	// Close submits the final channel state on-chain to withdraw the
	// recipient's earnings. Not part of the per-request verification path.
	Close(ctx context.Context, addr common.Address, balance, nonce *uint256.Int, body, sig []byte) (common.Hash, error)
}

// 4-byte selectors for the zero-argument getters: a Keccak-256 of the
// canonical signature, truncated to 4 bytes, avoiding a runtime abi.JSON
// parse for a handful of fixed calls.
var (
	selGetBalance  = selector("getBalance()")
	selExpiration  = selector("expiration()")
	selChannelID   = selector("channelId()")
	selSender      = selector("sender()")
	selRecipient   = selector("recipient()")
	selClose       = selector("close(uint256,uint256,bytes,bytes)")
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// EthContractGateway implements ContractGateway over a go-ethereum RPC
// client. Concurrent first-use reads for the same contract address are
// collapsed via singleflight so contended first-use validation does not
// multiply RPC round trips.
type EthContractGateway struct {
	client      *ethclient.Client
	callTimeout time.Duration
	closeKey    *ecdsa.PrivateKey
	closeFrom   common.Address
	chainID     *big.Int
	readGroup   singleflight.Group
}

// NewEthContractGateway dials rpcURL and returns a gateway. callTimeout
// bounds every read; if zero, a 10-second default is used.
func NewEthContractGateway(ctx context.Context, rpcURL string, chainID *big.Int, callTimeout time.Duration) (*EthContractGateway, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc: %w", err)
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &EthContractGateway{client: client, callTimeout: callTimeout, chainID: chainID}, nil
}

// WithCloseSigner configures the relayer key used by Close to sign and pay
// gas for the withdrawal transaction.
func (g *EthContractGateway) WithCloseSigner(privateKeyHex string) (*EthContractGateway, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid close signer key: %w", err)
	}
	g.closeKey = key
	g.closeFrom = crypto.PubkeyToAddress(key.PublicKey)
	return g, nil
}

// CloseClient releases the underlying RPC connection.
func (g *EthContractGateway) CloseClient() {
	g.client.Close()
}

// Read fetches the five getters, single-flighted per contract address.
func (g *EthContractGateway) Read(ctx context.Context, addr common.Address) (ContractView, error) {
	v, err, _ := g.readGroup.Do(addr.Hex(), func() (interface{}, error) {
		return g.readUncached(ctx, addr)
	})
	if err != nil {
		return ContractView{}, err
	}
	return v.(ContractView), nil
}

func (g *EthContractGateway) readUncached(ctx context.Context, addr common.Address) (ContractView, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	balance, err := g.callU256(ctx, addr, selGetBalance)
	if err != nil {
		return ContractView{}, fmt.Errorf("getBalance: %w", err)
	}
	expiration, err := g.callU256(ctx, addr, selExpiration)
	if err != nil {
		return ContractView{}, fmt.Errorf("expiration: %w", err)
	}
	channelID, err := g.callU256(ctx, addr, selChannelID)
	if err != nil {
		return ContractView{}, fmt.Errorf("channelId: %w", err)
	}
	sender, err := g.callAddress(ctx, addr, selSender)
	if err != nil {
		return ContractView{}, fmt.Errorf("sender: %w", err)
	}
	recipient, err := g.callAddress(ctx, addr, selRecipient)
	if err != nil {
		return ContractView{}, fmt.Errorf("recipient: %w", err)
	}

	return ContractView{
		Balance:    balance,
		Expiration: expiration,
		ChannelID:  channelID,
		Sender:     sender,
		Recipient:  recipient,
	}, nil
}

func (g *EthContractGateway) call(ctx context.Context, addr common.Address, data []byte) ([]byte, error) {
	return g.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
}

func (g *EthContractGateway) callU256(ctx context.Context, addr common.Address, selector []byte) (*uint256.Int, error) {
	out, err := g.call(ctx, addr, selector)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("short return data: %d bytes", len(out))
	}
	var v uint256.Int
	v.SetBytes(out[:32])
	return &v, nil
}

func (g *EthContractGateway) callAddress(ctx context.Context, addr common.Address, selector []byte) (common.Address, error) {
	out, err := g.call(ctx, addr, selector)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) < 32 {
		return common.Address{}, fmt.Errorf("short return data: %d bytes", len(out))
	}
	return common.BytesToAddress(out[:32]), nil
}

// Close submits close(balance, nonce, body, signature) on-chain, signed by
// the relayer key configured on the gateway: estimate gas with a 20%
// buffer and a safe fallback, set the EIP-1559 fee cap to the latest base
// fee plus a fixed 1 gwei tip, sign and broadcast.
func (g *EthContractGateway) Close(ctx context.Context, addr common.Address, balance, nonce *uint256.Int, body, sig []byte) (common.Hash, error) {
	if g.closeKey == nil {
		return common.Hash{}, fmt.Errorf("no close signer configured on this gateway")
	}

	callData := packClose(balance, nonce, body, sig)
	from := g.closeFrom

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	txNonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	gasLimit := uint64(150_000)
	if est, err := g.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &addr, Data: callData}); err == nil {
		gasLimit = est * 12 / 10
	}

	header, err := g.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	tip := big.NewInt(1e9)
	feeCap := new(big.Int).Add(header.BaseFee, tip)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   g.chainID,
		Nonce:     txNonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &addr,
		Value:     new(big.Int),
		Data:      callData,
	})

	signed, err := types.SignTx(tx, types.NewLondonSigner(g.chainID), g.closeKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing close tx: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcasting close tx: %w", err)
	}
	return signed.Hash(), nil
}

// packClose ABI-encodes close(uint256 balance, uint256 nonce, bytes body,
// bytes signature). body and signature are dynamic types, so the head
// carries their offsets and the tail carries their length-prefixed
// contents, in standard Solidity ABI layout.
func packClose(balance, nonce *uint256.Int, body, sig []byte) []byte {
	head := make([]byte, 4+4*32)
	copy(head[:4], selClose)

	var balBytes, nonceBytes [32]byte
	balance.WriteToArray32(&balBytes)
	nonce.WriteToArray32(&nonceBytes)
	copy(head[4:36], balBytes[:])
	copy(head[36:68], nonceBytes[:])

	bodyOffset := uint64(4 * 32)
	bodyTail := encodeDynamicBytes(body)
	sigOffset := bodyOffset + uint64(len(bodyTail))
	sigTail := encodeDynamicBytes(sig)

	putU256(head[68:100], bodyOffset)
	putU256(head[100:132], sigOffset)

	out := make([]byte, 0, len(head)+len(bodyTail)+len(sigTail))
	out = append(out, head...)
	out = append(out, bodyTail...)
	out = append(out, sigTail...)
	return out
}

func encodeDynamicBytes(b []byte) []byte {
	padded := (len(b) + 31) / 32 * 32
	out := make([]byte, 32+padded)
	putU256(out[:32], uint64(len(b)))
	copy(out[32:], b)
	return out
}

func putU256(dst []byte, v uint64) {
	var n uint256.Int
	n.SetUint64(v)
	var b [32]byte
	n.WriteToArray32(&b)
	copy(dst, b[:])
}
