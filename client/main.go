package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"mechanicapp/client/api"
	"mechanicapp/client/app"
	"mechanicapp/client/booking"
	"mechanicapp/client/config"
	"mechanicapp/client/model"
	"mechanicapp/telemetry"

	"github.com/spf13/pflag"
)

const usage = `usage: mechanic [--config file] <command> [flags]

commands:
  login   --role user|mechanic --email EMAIL --password PASSWORD
  logout
  watch   BOOKING_ID     follow a booking; stdin lines are sent as chat
  wallet  [--resume REF] show the wallet, verifying a checkout reference
`

func main() {
	global := pflag.NewFlagSet("mechanic", pflag.ExitOnError)
	configPath := global.StringP("config", "c", "", "path to client config file")
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	shutdownTracing := telemetry.Setup(ctx, "mechanic-client", cfg.OTLPEndpoint, a.Log)

	err = run(ctx, a, args[0], args[1:])

	_ = shutdownTracing(context.Background())
	_ = a.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	a.Start(ctx)
	switch cmd {
	case "login":
		return login(ctx, a, args)
	case "logout":
		if !a.Logout(ctx) {
			fmt.Println("not signed in")
		}
		return nil
	case "watch":
		if len(args) != 1 {
			return errors.New("watch needs a booking id")
		}
		return watch(ctx, a, args[0], os.Stdin)
	case "wallet":
		return showWallet(ctx, a, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func login(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	role := fs.String("role", "user", "user or mechanic")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r := model.RoleUser
	if strings.EqualFold(*role, "mechanic") {
		r = model.RoleMechanic
	}
	user, err := a.Login(ctx, r, *email, *password)
	if err != nil {
		return fmt.Errorf("login: %s", apiMessage(err))
	}
	fmt.Printf("signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func watch(ctx context.Context, a *app.App, bookingID string, in io.Reader) error {
	user, _ := a.Session.User()
	d, err := a.OpenBooking(ctx, bookingID, printState(os.Stdout, os.Stderr, user.Role))
	if d == nil {
		return err
	}
	defer d.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load failed:", apiMessage(err))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := command(ctx, a, d, line); quit {
				return nil
			}
		}
	}
}

// command runs one stdin line against the open booking and reports whether
// the user asked to quit.
func command(ctx context.Context, a *app.App, d *booking.Detail, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := d.SendChat(line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		return false
	}

	fields := strings.Fields(line)
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	var err error
	switch fields[0] {
	case "/quit":
		return true
	case "/reload":
		err = d.Reload(ctx)
	case "/next":
		err = nextAction(ctx, a, d)
	case "/quote":
		price, msg := splitNumber(rest)
		err = d.SubmitQuote(ctx, price, msg)
	case "/withdraw":
		err = d.WithdrawQuote(ctx)
	case "/accept-quote":
		err = d.AcceptQuote(ctx, rest)
	case "/reject-quote":
		err = d.RejectQuote(ctx, rest)
	case "/cost":
		cost, _ := splitNumber(rest)
		err = d.SetCost(ctx, cost)
	case "/ask":
		err = d.AddClarification(ctx, rest)
	case "/paid":
		err = d.MarkPaid(ctx)
	case "/rate":
		stars, comment := splitNumber(rest)
		err = d.Rate(ctx, int(stars), comment)
	default:
		err = fmt.Errorf("unknown command %s", fields[0])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, apiMessage(err))
	}
	return false
}

// nextAction performs the single status action offered for the booking.
func nextAction(ctx context.Context, a *app.App, d *booking.Detail) error {
	b := d.State().Booking
	if b == nil {
		return errors.New("booking not loaded")
	}
	user, _ := a.Session.User()
	action := booking.OfferedAction(b.Status, user.Role)
	switch action {
	case booking.ActionNone:
		return errors.New("nothing to do at this stage")
	case booking.ActionAccept:
		return d.Accept(ctx)
	case booking.ActionPay:
		_, err := a.Wallet().Checkout(ctx, b.ID, printOpener{})
		return err
	case booking.ActionRate:
		return errors.New("use /rate STARS [comment]")
	}
	next, _ := action.NextStatus()
	return d.UpdateStatus(ctx, next)
}

func showWallet(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("wallet", pflag.ContinueOnError)
	resume := fs.String("resume", "", "checkout reference to verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w := a.Wallet()
	if *resume != "" {
		if w.Resume(ctx, *resume) {
			fmt.Println("payment verified")
		}
	} else {
		w.Load(ctx)
	}
	st := w.State()
	if st.Summary != nil {
		fmt.Printf("balance: %.2f\n", st.Summary.Balance.BalanceNaira)
	}
	for _, tx := range st.Transactions {
		fmt.Printf("%s  %-20s %.2f\n", tx.CreatedAt.Format("2006-01-02"), tx.Type, float64(tx.AmountMinor)/100)
	}
	return nil
}

// printState prints the booking header after each reload and every message
// whose ID has not been printed yet, optimistic ones included.
func printState(out, errOut io.Writer, role model.Role) func(booking.State) {
	var (
		mu      sync.Mutex
		printed = make(map[string]bool)
	)
	return func(s booking.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.Phase == booking.Ready {
			if s.Err != nil {
				fmt.Fprintln(errOut, "reload failed:", apiMessage(s.Err))
			}
			if b := s.Booking; b != nil {
				fmt.Fprintf(out, "[%s] status=%s quotes=%d action=%q\n", b.ID, b.Status, len(s.Quotes), booking.OfferedAction(b.Status, role))
			}
		}
		for _, m := range s.Messages {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			if m.Optimistic() {
				fmt.Fprintf(out, "  %s: %s (sending)\n", m.SenderID, m.Content)
				continue
			}
			fmt.Fprintf(out, "  %s: %s\n", m.SenderID, m.Content)
		}
	}
}

type printOpener struct{}

func (printOpener) Open(_ context.Context, url string) error {
	fmt.Println("complete payment at:", url)
	return nil
}

func splitNumber(s string) (float64, string) {
	head, tail, _ := strings.Cut(strings.TrimSpace(s), " ")
	n, err := strconv.ParseFloat(head, 64)
	if err != nil {
		return 0, s
	}
	return n, strings.TrimSpace(tail)
}

func apiMessage(err error) string {
	var ae *booking.ActionError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return api.ErrorMessage(err, api.DefaultErrorMessage)
}
