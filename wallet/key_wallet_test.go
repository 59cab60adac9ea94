package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return common.Bytes2Hex(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

func TestNewKeyWallet(t *testing.T) {
	hexA, addrA := newKey(t)
	hexB, addrB := newKey(t)

	w, err := NewKeyWallet(big.NewInt(11155111), "0x"+hexA, hexB, hexA)
	require.NoError(t, err)

	accounts, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{addrA, addrB}, accounts)
	assert.Equal(t, addrA, w.Active())
}

func TestNewKeyWalletErrors(t *testing.T) {
	_, err := NewKeyWallet(big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = NewKeyWallet(big.NewInt(1), "not-a-key")
	assert.Error(t, err)
}

func TestSwitchAccountNotifiesListeners(t *testing.T) {
	hexA, _ := newKey(t)
	hexB, addrB := newKey(t)
	w, err := NewKeyWallet(big.NewInt(1), hexA, hexB)
	require.NoError(t, err)

	var got []common.Address
	w.OnAccountsChanged(func(a common.Address) { got = append(got, a) })

	require.NoError(t, w.SwitchAccount(addrB))
	require.NoError(t, w.SwitchAccount(addrB))

	assert.Equal(t, []common.Address{addrB}, got, "switching to the active account is a no-op")
	accounts, _ := w.RequestAccounts(context.Background())
	assert.Equal(t, addrB, accounts[0])
}

func TestSwitchAccountUnknown(t *testing.T) {
	hexA, _ := newKey(t)
	w, err := NewKeyWallet(big.NewInt(1), hexA)
	require.NoError(t, err)

	err = w.SwitchAccount(common.HexToAddress("0x01"))

	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestTransactor(t *testing.T) {
	hexA, addrA := newKey(t)
	w, err := NewKeyWallet(big.NewInt(11155111), hexA)
	require.NoError(t, err)

	opts, err := w.Transactor(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, addrA, opts.From)
	assert.NotNil(t, opts.Signer)

	_, err = w.Transactor(context.Background(), common.HexToAddress("0x01"))
	assert.ErrorIs(t, err, ErrUnknownAccount)
}
