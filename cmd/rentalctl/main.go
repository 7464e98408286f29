package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/client"
	"rentalcore/internal/infra/obs"
	"rentalcore/internal/pkg/errs"
)

// settings are read from RENTALCTL_* variables and may be overridden by flags.
type settings struct {
	URL      string        `envconfig:"URL" default:"http://localhost:8080"`
	Token    string        `envconfig:"TOKEN"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"10s"`
	LogLevel string        `envconfig:"LOG_LEVEL" default:"warn"`
}

const usage = `usage: rentalctl <command> [flags]

commands:
  quote   price a booking intent
  book    create a rental from a booking intent
  proof   upload a payment slip for a rental
  watch   poll a rental until its payment is settled
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "rentalctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	var s settings
	if err := envconfig.Process("rentalctl", &s); err != nil {
		return err
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.StringVar(&s.URL, "url", s.URL, "service base url")
	fs.StringVar(&s.Token, "token", s.Token, "bearer token")

	var intent client.QuoteRequest
	if args[0] == "quote" || args[0] == "book" {
		fs.StringVar(&intent.ProductID, "product", "", "product id")
		fs.StringVar(&intent.StartDate, "start", "", "first day, YYYY-MM-DD")
		fs.StringVar(&intent.EndDate, "end", "", "last day, YYYY-MM-DD")
		fs.StringVar(&intent.Tier, "tier", "", "daily, weekly or monthly")
		fs.IntVar(&intent.Units, "units", 0, "number of tier units")
		fs.StringVar(&intent.PickupMethod, "pickup", "self_pickup", "self_pickup or delivery")
	}
	rentalID := fs.String("rental", "", "rental id")
	slipPath := fs.String("file", "", "slip image")
	amount := fs.Int64("amount", 0, "claimed amount in minor units")
	currency := fs.String("currency", "", "currency of amount")
	interval := fs.Duration("interval", 5*time.Second, "polling interval")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	logger := obs.NewLoggerTo(os.Stderr, "dev", s.LogLevel)
	c := client.New(s.URL, s.Token, s.Timeout, logger)
	c.Polling = *interval

	switch args[0] {
	case "quote":
		q, err := c.Quote(ctx, intent)
		if err != nil {
			return err
		}
		return printJSON(out, q)
	case "book":
		r, err := c.CreateRental(ctx, intent)
		var conflict *client.BookingConflict
		if errs.As(err, &conflict) && conflict.Refreshed != nil {
			fmt.Fprintln(out, "dates were taken; current availability:")
			if perr := printJSON(out, conflict.Refreshed); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		return printJSON(out, r)
	case "proof":
		if *rentalID == "" || *slipPath == "" {
			return fmt.Errorf("proof needs -rental and -file")
		}
		f, err := os.Open(*slipPath)
		if err != nil {
			return err
		}
		defer f.Close()
		r, err := c.SubmitPaymentProof(ctx, *rentalID, filepath.Base(*slipPath), f, *amount, *currency)
		if err != nil {
			return err
		}
		return printJSON(out, r)
	case "watch":
		if *rentalID == "" {
			return fmt.Errorf("watch needs -rental")
		}
		r, err := c.WatchRental(ctx, *rentalID, func(r dto.Rental) {
			fmt.Fprintf(out, "%s  %s/%s\n", time.Now().Format(time.TimeOnly), r.RentalStatus, r.PaymentStatus)
		})
		if err != nil {
			return err
		}
		return printJSON(out, r)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
