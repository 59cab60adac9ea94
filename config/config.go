// Package config carrega as configurações do cliente a partir do ambiente, de um arquivo .env
// opcional e de um arquivo TOML opcional.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ferreirogomes/greenfund/models"
)

// Endereços da implantação do Green Fund na Sepolia.
const (
	DefaultGreenToken = "0xad0852764e45037e9feaa8af5d48029d2ab37365"
	DefaultEcoToken   = "0x2a1094c204e6de85d02015e5cf1a618923851c24"
	DefaultCrowdsale  = "0x6138B085d032e33aB6F59d6d26b4522FD78F45f9"
)

const (
	KeyRPCURL              = "rpc_url"
	KeyWSURL               = "ws_url"
	KeyChainID             = "chain_id"
	KeyPrivateKeys         = "private_keys"
	KeyPrivateKey          = "private_key"
	KeyCrowdsaleAddress    = "crowdsale_address"
	KeyPaymentToken        = "payment_token"
	KeySaleToken           = "sale_token"
	KeyTokens              = "tokens"
	KeyConfirmationTimeout = "confirmation_timeout"
	KeyPollInterval        = "poll_interval"
	KeyHTTPAddr            = "http_addr"
	KeyLogLevel            = "log_level"
)

var (
	ErrMissingRPCURL = errors.New("rpc_url is required")
	ErrMissingKeys   = errors.New("private_keys (or private_key) is required")
)

// Config é a configuração resolvida do cliente.
type Config struct {
	RPCURL              string
	WSURL               string // Vazio desativa o listener de contrato
	ChainID             *big.Int
	PrivateKeys         []string
	CrowdsaleAddress    common.Address
	PaymentToken        common.Address
	SaleToken           common.Address
	Tokens              []models.TrackedToken
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	HTTPAddr            string
	LogLevel            string
}

// SetDefaults registra os valores padrão em v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyChainID, 11155111)
	v.SetDefault(KeyCrowdsaleAddress, DefaultCrowdsale)
	v.SetDefault(KeyTokens, "GREEN:"+DefaultGreenToken+",ECO:"+DefaultEcoToken)
	v.SetDefault(KeyPaymentToken, "ECO")
	v.SetDefault(KeySaleToken, "GREEN")
	v.SetDefault(KeyConfirmationTimeout, "2m")
	v.SetDefault(KeyPollInterval, "2s")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
}

// Load resolve a configuração. As variáveis de envFile são carregadas primeiro sem sobrescrever o
// ambiente do processo; envFile ausente não é erro. Um arquivo definido em v com SetConfigFile é
// lido quando existe.
func Load(v *viper.Viper, envFile string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:   strings.TrimSpace(v.GetString(KeyRPCURL)),
		WSURL:    strings.TrimSpace(v.GetString(KeyWSURL)),
		ChainID:  big.NewInt(v.GetInt64(KeyChainID)),
		HTTPAddr: v.GetString(KeyHTTPAddr),
		LogLevel: v.GetString(KeyLogLevel),
	}
	if cfg.RPCURL == "" {
		return Config{}, ErrMissingRPCURL
	}

	cfg.PrivateKeys = stringList(v, KeyPrivateKeys)
	if len(cfg.PrivateKeys) == 0 {
		cfg.PrivateKeys = stringList(v, KeyPrivateKey)
	}
	if len(cfg.PrivateKeys) == 0 {
		return Config{}, ErrMissingKeys
	}

	var err error
	if cfg.CrowdsaleAddress, err = parseAddress(KeyCrowdsaleAddress, v.GetString(KeyCrowdsaleAddress)); err != nil {
		return Config{}, err
	}
	if cfg.Tokens, err = ParseTokens(stringList(v, KeyTokens)); err != nil {
		return Config{}, err
	}
	if cfg.PaymentToken, err = resolveToken(KeyPaymentToken, v.GetString(KeyPaymentToken), cfg.Tokens); err != nil {
		return Config{}, err
	}
	if cfg.SaleToken, err = resolveToken(KeySaleToken, v.GetString(KeySaleToken), cfg.Tokens); err != nil {
		return Config{}, err
	}

	if cfg.ConfirmationTimeout = v.GetDuration(KeyConfirmationTimeout); cfg.ConfirmationTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", KeyConfirmationTimeout)
	}
	if cfg.PollInterval = v.GetDuration(KeyPollInterval); cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if cfg.ChainID.Sign() <= 0 {
		return Config{}, fmt.Errorf("%s must be positive", KeyChainID)
	}

	return cfg, nil
}

// ParseTokens interpreta entradas no formato SIMBOLO:0xENDERECO.
func ParseTokens(entries []string) ([]models.TrackedToken, error) {
	tokens := make([]models.TrackedToken, 0, len(entries))
	seen := map[string]bool{}
	for _, e := range entries {
		symbol, addr, ok := strings.Cut(e, ":")
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if !ok || symbol == "" {
			return nil, fmt.Errorf("token entry %q: want SYMBOL:ADDRESS", e)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("token %s listed twice", symbol)
		}
		a, err := parseAddress("token "+symbol, addr)
		if err != nil {
			return nil, err
		}
		seen[symbol] = true
		tokens = append(tokens, models.TrackedToken{Symbol: symbol, Address: a})
	}
	return tokens, nil
}

// NewLogger cria um logger zap de produção no nível informado.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func resolveToken(key, value string, tokens []models.TrackedToken) (common.Address, error) {
	value = strings.TrimSpace(value)
	if common.IsHexAddress(value) {
		return common.HexToAddress(value), nil
	}
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, value) {
			return t.Address, nil
		}
	}
	return common.Address{}, fmt.Errorf("%s: %q is neither an address nor a tracked token symbol", key, value)
}

func parseAddress(key, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, value)
	}
	return common.HexToAddress(value), nil
}

// stringList lê key como array TOML ou como string separada por vírgulas.
func stringList(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case nil:
		return nil
	case []string:
		raw = val
	case []interface{}:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = strings.Split(fmt.Sprint(val), ",")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
