// voltool prices a single option or annualizes a per-period stdev from the
// command line. Inputs are decimal strings; internally everything runs in the
// same fixed-point domains as the daemon.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"vol-oracle-go/feed"
	"vol-oracle-go/fixedpoint"
	"vol-oracle-go/pricer"
)

type fixedVol struct{ vol int64 }

func (v fixedVol) AnnualizedVol(string) (int64, error) { return v.vol, nil }

func main() {
	mode := flag.String("mode", "quote", "quote or annualize")

	spot := flag.String("spot", "", "spot price, e.g. 2000.50")
	strike := flag.String("strike", "", "strike price")
	vol := flag.String("vol", "", "annualized volatility, 1.0 = 100%")
	days := flag.Int64("days", 30, "days to expiry")
	put := flag.Bool("put", false, "quote the put side instead of the call")
	underDec := flag.Int("underlyingDecimals", 8, "underlying token decimals")
	quoteDec := flag.Int("quoteDecimals", 8, "quote token decimals")

	stdev := flag.String("stdev", "", "per-period stdev to annualize, 1.0 = 100%")
	period := flag.Int64("period", 43200, "observation period in seconds")
	flag.Parse()

	switch *mode {
	case "quote":
		runQuote(*spot, *strike, *vol, *days, *put, *underDec, *quoteDec)
	case "annualize":
		runAnnualize(*stdev, *period)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func runQuote(spotText, strikeText, volText string, days int64, put bool, underDec, quoteDec int) {
	spot := parseScaled(spotText, "spot")
	strike := parseScaled(strikeText, "strike")
	vol := parseScaled(volText, "vol")

	cache := feed.NewStatic()
	cache.Set("CLI", spot)

	p := pricer.New(pricer.Config{
		Instrument:         "CLI",
		UnderlyingDecimals: underDec,
		QuoteDecimals:      quoteDec,
	}, fixedVol{vol: vol}, cache)

	// A minute of slack keeps the day count intact under truncation.
	expiry := time.Now().Unix() + days*86_400 + 60

	premium, err := p.GetPremium(strike, expiry, put)
	if err != nil {
		log.Fatalf("premium: %v", err)
	}
	delta, err := p.GetOptionDelta(strike, expiry)
	if err != nil {
		log.Fatalf("delta: %v", err)
	}

	side := "call"
	asset := "underlying"
	decimals := underDec
	if put {
		side = "put"
		asset = "quote"
		decimals = quoteDec
	}
	fmt.Printf("%s premium: %s %s\n", side, decimal.NewFromInt(premium).Shift(int32(-decimals)), asset)
	fmt.Printf("call delta: %s\n", decimal.NewFromInt(delta).Shift(-4))
}

func runAnnualize(stdevText string, period int64) {
	stdev := parseScaled(stdevText, "stdev")
	if period <= 0 {
		log.Fatal("period must be positive")
	}
	annualized := stdev * fixedpoint.Sqrt(31_536_000/period)
	fmt.Printf("annualized vol: %s\n", decimal.NewFromInt(annualized).Shift(-8))
}

// parseScaled converts a decimal string into the 1e8 fixed-point domain.
func parseScaled(text, name string) int64 {
	if text == "" {
		log.Fatalf("-%s is required", name)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		log.Fatalf("parse %s: %v", name, err)
	}
	scaled := d.Shift(8).BigInt()
	if !scaled.IsInt64() || scaled.Int64() <= 0 {
		log.Fatalf("%s out of range: %s", name, text)
	}
	return scaled.Int64()
}
