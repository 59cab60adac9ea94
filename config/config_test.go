package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("PRIVATE_KEY", testKey)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example", cfg.RPCURL)
	assert.Equal(t, int64(11155111), cfg.ChainID.Int64())
	assert.Equal(t, []string{testKey}, cfg.PrivateKeys)
	assert.Equal(t, common.HexToAddress(DefaultCrowdsale), cfg.CrowdsaleAddress)
	assert.Equal(t, common.HexToAddress(DefaultEcoToken), cfg.PaymentToken)
	assert.Equal(t, common.HexToAddress(DefaultGreenToken), cfg.SaleToken)
	require.Len(t, cfg.Tokens, 2)
	assert.Equal(t, "GREEN", cfg.Tokens[0].Symbol)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmationTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.WSURL)
}

func TestLoadRequiresRPCURLAndKeys(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("PRIVATE_KEY", testKey)
	_, err := Load(viper.New(), "")
	assert.ErrorIs(t, err, ErrMissingRPCURL)

	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("PRIVATE_KEYS", "")
	_, err = Load(viper.New(), "")
	assert.ErrorIs(t, err, ErrMissingKeys)
}

func TestLoadEnvFile(t *testing.T) {
	for _, k := range []string{"RPC_URL", "PRIVATE_KEYS", "PAYMENT_TOKEN"} {
		k := k
		os.Unsetenv(k)
		t.Cleanup(func() { os.Unsetenv(k) })
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"RPC_URL=https://env.example\nPRIVATE_KEYS="+testKey+",0x"+testKey+"\nPAYMENT_TOKEN=green\n"), 0o600))

	cfg, err := Load(viper.New(), envFile)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.RPCURL)
	assert.Len(t, cfg.PrivateKeys, 2)
	assert.Equal(t, common.HexToAddress(DefaultGreenToken), cfg.PaymentToken)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("PRIVATE_KEY", testKey)

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.env"))

	assert.NoError(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "")
	path := filepath.Join(t.TempDir(), "greenfund.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_url = "https://file.example"
ws_url = "wss://file.example"
private_keys = ["`+testKey+`"]
confirmation_timeout = "30s"
tokens = ["GREEN:`+DefaultGreenToken+`", "ECO:`+DefaultEcoToken+`", "USDC:0x1c7d4b196cb0c7b01d743fbc6116a902379c7238"]
payment_token = "USDC"
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "https://file.example", cfg.RPCURL)
	assert.Equal(t, "wss://file.example", cfg.WSURL)
	assert.Equal(t, 30*time.Second, cfg.ConfirmationTimeout)
	assert.Len(t, cfg.Tokens, 3)
	assert.Equal(t, common.HexToAddress("0x1c7d4b196cb0c7b01d743fbc6116a902379c7238"), cfg.PaymentToken)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("PRIVATE_KEY", testKey)

	t.Setenv("SALE_TOKEN", "DOGE")
	_, err := Load(viper.New(), "")
	assert.ErrorContains(t, err, "sale_token")

	t.Setenv("SALE_TOKEN", "GREEN")
	t.Setenv("CROWDSALE_ADDRESS", "0x123")
	_, err = Load(viper.New(), "")
	assert.ErrorContains(t, err, "crowdsale_address")

	t.Setenv("CROWDSALE_ADDRESS", DefaultCrowdsale)
	t.Setenv("CONFIRMATION_TIMEOUT", "0s")
	_, err = Load(viper.New(), "")
	assert.ErrorContains(t, err, "confirmation_timeout")
}

func TestParseTokens(t *testing.T) {
	tokens, err := ParseTokens([]string{"green:" + DefaultGreenToken, " ECO : " + DefaultEcoToken})
	require.NoError(t, err)
	assert.Equal(t, "GREEN", tokens[0].Symbol)
	assert.Equal(t, common.HexToAddress(DefaultEcoToken), tokens[1].Address)

	_, err = ParseTokens([]string{"GREEN:" + DefaultGreenToken, "green:" + DefaultEcoToken})
	assert.ErrorContains(t, err, "listed twice")

	_, err = ParseTokens([]string{DefaultGreenToken})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}
