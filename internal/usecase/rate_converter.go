package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"automation-subscription-platform/internal/config"
	"automation-subscription-platform/internal/domain"
	"automation-subscription-platform/internal/domain/model"
)

// RateConverter turns a home-currency base amount into the amount a gateway
// actually charges. Pure: no side effects, all rates injected via config.
type RateConverter struct {
	home             string
	fiatRates        map[string]decimal.Decimal
	cryptoRates      map[string]decimal.Decimal
	cryptoMultiplier decimal.Decimal // (100 - discount) / 100
	decimals         map[string]int32
}

// NewRateConverter parses the configured rates up front so conversion never
// fails on malformed config at charge time.
func NewRateConverter(cfg config.PricingConfig) (*RateConverter, error) {
	parse := func(kind string, in map[string]string) (map[string]decimal.Decimal, error) {
		out := make(map[string]decimal.Decimal, len(in))
		for cur, raw := range in {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("parse %s rate %s=%q: %w", kind, cur, raw, err)
			}
			if !d.IsPositive() {
				return nil, fmt.Errorf("%s rate %s must be positive, got %s", kind, cur, raw)
			}
			out[cur] = d
		}
		return out, nil
	}

	fiat, err := parse("fiat", cfg.FiatRates)
	if err != nil {
		return nil, err
	}
	crypto, err := parse("crypto", cfg.CryptoRates)
	if err != nil {
		return nil, err
	}
	if cfg.CryptoDiscountPct < 0 || cfg.CryptoDiscountPct >= 100 {
		return nil, fmt.Errorf("crypto discount out of range: %d", cfg.CryptoDiscountPct)
	}
	mult := decimal.NewFromInt(int64(100 - cfg.CryptoDiscountPct)).Div(decimal.NewFromInt(100))

	return &RateConverter{
		home:             cfg.HomeCurrency,
		fiatRates:        fiat,
		cryptoRates:      crypto,
		cryptoMultiplier: mult,
		decimals:         cfg.CurrencyDecimals,
	}, nil
}

// Convert returns the exact amount to charge in the target currency.
// Home-currency fiat passes through; foreign fiat divides by the configured
// fixed rate; crypto first applies the incentive discount, then divides by
// the crypto-unit rate. Results are rounded half-up to the smallest unit the
// target currency supports.
func (c *RateConverter) Convert(base decimal.Decimal, gw model.Gateway, currency string) (decimal.Decimal, error) {
	if !base.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	if gw == model.GatewayCrypto {
		rate, ok := c.cryptoRates[currency]
		if !ok {
			return decimal.Zero, domain.ErrUnsupportedCurrency
		}
		discounted := base.Mul(c.cryptoMultiplier)
		return c.round(discounted.Div(rate), currency), nil
	}

	if currency == c.home {
		return c.round(base, currency), nil
	}
	rate, ok := c.fiatRates[currency]
	if !ok {
		return decimal.Zero, domain.ErrUnsupportedCurrency
	}
	return c.round(base.Div(rate), currency), nil
}

// DiscountedHomeAmount exposes the home-currency amount after the crypto
// incentive, before unit division. Payment instructions show both figures.
func (c *RateConverter) DiscountedHomeAmount(base decimal.Decimal) decimal.Decimal {
	return c.round(base.Mul(c.cryptoMultiplier), c.home)
}

// HomeCurrency returns the platform's pricing currency.
func (c *RateConverter) HomeCurrency() string { return c.home }

// round applies half-up rounding at the currency's smallest unit.
// shopspring's Round is half away from zero, which is half-up for the
// positive amounts money conversion deals in.
func (c *RateConverter) round(d decimal.Decimal, currency string) decimal.Decimal {
	places, ok := c.decimals[currency]
	if !ok {
		places = 2
	}
	return d.Round(places)
}
