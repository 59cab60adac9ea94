// Package wallet fornece um WalletProvider baseado em chaves privadas mantidas localmente.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoKeys         = errors.New("wallet has no keys")
	ErrUnknownAccount = errors.New("account not held by wallet")
)

// KeyWallet guarda uma ou mais chaves privadas. Uma conta fica ativa por vez; trocá-la notifica os
// listeners registrados, como uma carteira de navegador faz com accountsChanged.
type KeyWallet struct {
	chainID *big.Int

	mu        sync.Mutex
	keys      map[common.Address]*ecdsa.PrivateKey
	order     []common.Address
	active    common.Address
	listeners []func(common.Address)
}

// NewKeyWallet carrega chaves privadas em hexadecimal (com ou sem 0x). A primeira chave fica ativa.
func NewKeyWallet(chainID *big.Int, hexKeys ...string) (*KeyWallet, error) {
	if len(hexKeys) == 0 {
		return nil, ErrNoKeys
	}
	w := &KeyWallet{
		chainID: new(big.Int).Set(chainID),
		keys:    make(map[common.Address]*ecdsa.PrivateKey, len(hexKeys)),
	}
	for i, hk := range hexKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hk), "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key %d: %w", i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, dup := w.keys[addr]; dup {
			continue
		}
		w.keys[addr] = key
		w.order = append(w.order, addr)
	}
	w.active = w.order[0]
	return w, nil
}

// RequestAccounts retorna as contas mantidas com a ativa em primeiro lugar.
func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	accounts := make([]common.Address, 0, len(w.order))
	accounts = append(accounts, w.active)
	for _, a := range w.order {
		if a != w.active {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// OnAccountsChanged registra fn para ser chamada com a nova conta ativa após uma troca.
func (w *KeyWallet) OnAccountsChanged(fn func(common.Address)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// SwitchAccount ativa account. Os listeners rodam de forma síncrona, depois que a troca é visível.
func (w *KeyWallet) SwitchAccount(account common.Address) error {
	w.mu.Lock()
	if _, ok := w.keys[account]; !ok {
		w.mu.Unlock()
		return fmt.Errorf("switch to %s: %w", account.Hex(), ErrUnknownAccount)
	}
	if w.active == account {
		w.mu.Unlock()
		return nil
	}
	w.active = account
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(account)
	}
	return nil
}

// Active retorna a conta ativa.
func (w *KeyWallet) Active() common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Transactor retorna opções de assinatura para account na chain da carteira.
func (w *KeyWallet) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	w.mu.Lock()
	key, ok := w.keys[account]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("sign as %s: %w", account.Hex(), ErrUnknownAccount)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}
