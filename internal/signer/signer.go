// Package signer implements Hyperliquid-style L1 action signing:
// msgpack-hash the action, wrap the hash in a "phantom agent" EIP-712
// struct, sign with an ECDSA private key. Grounded on the hand-rolled
// EIP-712 domain-separator/struct-hash pattern used for L2 auth in the
// trading client, generalized to the phantom-agent message this wire
// format requires.
package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// Network selects which phantom-agent "source" byte is used, and thus
// binds a signature to mainnet or testnet.
type Network int

const (
	Mainnet Network = iota
	Testnet
)

// SourceID returns the single-character phantom-agent source tag.
func (n Network) SourceID() string {
	if n == Testnet {
		return "b"
	}
	return "a"
}

// Signature holds the three wire components of an ECDSA signature.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))
	agentTypeHash = crypto.Keccak256Hash([]byte(
		"Agent(string source,bytes32 connectionId)",
	))
)

const (
	exchangeDomainName    = "Exchange"
	exchangeDomainVersion = "1"
	exchangeChainID       = 1337
)

// exchangeDomainSeparator computes the EIP-712 domain separator for the
// Hyperliquid Exchange domain: {name:"Exchange", version:"1",
// chainId:1337, verifyingContract: 0x0..0}.
func exchangeDomainSeparator() common.Hash {
	var buf []byte
	buf = append(buf, eip712DomainTypeHash.Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(exchangeDomainName)).Bytes()...)
	buf = append(buf, crypto.Keccak256Hash([]byte(exchangeDomainVersion)).Bytes()...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(exchangeChainID).Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(common.Address{}.Bytes(), 32)...)
	return crypto.Keccak256Hash(buf)
}

// ActionHash computes keccak256(msgpack_named(action) || nonce_be8 ||
// vault_flag[+addr] || expires_flag[+expiry_be8]).
func ActionHash(action interface{}, vaultAddress *string, nonce uint64, expiresAfter *uint64) ([32]byte, error) {
	packed, err := msgpack.Marshal(action)
	if err != nil {
		return [32]byte{}, fmt.Errorf("signer.ActionHash: msgpack: %w", err)
	}

	data := packed
	var nonceBuf [8]byte
	putUint64BE(nonceBuf[:], nonce)
	data = append(data, nonceBuf[:]...)

	if vaultAddress == nil {
		data = append(data, 0x00)
	} else {
		data = append(data, 0x01)
		addrBytes, err := hexToBytes(*vaultAddress)
		if err != nil {
			return [32]byte{}, fmt.Errorf("signer.ActionHash: vault address: %w", err)
		}
		data = append(data, addrBytes...)
	}

	if expiresAfter != nil {
		data = append(data, 0x00)
		var expBuf [8]byte
		putUint64BE(expBuf[:], *expiresAfter)
		data = append(data, expBuf[:]...)
	}

	return [32]byte(crypto.Keccak256(data)), nil
}

// SignL1Action signs action with privateKeyHex for network, returning the
// three wire signature components. Deterministic: identical inputs
// always produce the identical signature (go-ethereum's crypto.Sign uses
// RFC6979 deterministic nonces).
func SignL1Action(privateKeyHex string, action interface{}, vaultAddress *string, nonce uint64, expiresAfter *uint64, network Network) (Signature, error) {
	hash, err := ActionHash(action, vaultAddress, nonce, expiresAfter)
	if err != nil {
		return Signature{}, err
	}

	source := network.SourceID()

	var structBuf []byte
	structBuf = append(structBuf, agentTypeHash.Bytes()...)
	structBuf = append(structBuf, crypto.Keccak256Hash([]byte(source)).Bytes()...)
	structBuf = append(structBuf, hash[:]...)
	structHash := crypto.Keccak256Hash(structBuf)

	var rawBuf []byte
	rawBuf = append(rawBuf, 0x19, 0x01)
	rawBuf = append(rawBuf, exchangeDomainSeparator().Bytes()...)
	rawBuf = append(rawBuf, structHash.Bytes()...)
	signingHash := crypto.Keccak256Hash(rawBuf)

	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return Signature{}, fmt.Errorf("signer.SignL1Action: %w", err)
	}

	sig, err := crypto.Sign(signingHash.Bytes(), key)
	if err != nil {
		return Signature{}, fmt.Errorf("signer.SignL1Action: sign: %w", err)
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}

	return Signature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: v,
	}, nil
}

// DeriveAddress returns the checksummed wallet address for privateKeyHex.
func DeriveAddress(privateKeyHex string) (string, error) {
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("signer.DeriveAddress: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	return crypto.HexToECDSA(s)
}

func hexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

func putUint64BE(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}
