package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/output"
)

func newLandsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lands",
		Aliases: []string{"land"},
		Short:   "Browse and trade land units",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List lands open for investment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/lands"); err != nil {
				return err
			}
			lands, err := a.market.Lands(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(lands); ok {
				return err
			}
			if len(lands) == 0 {
				a.out.Info("No lands available right now")
				return nil
			}
			t := a.out.Table("ID", "TITLE", "LOCATION", "PRICE/UNIT", "AVAILABLE", "STATUS")
			for _, l := range lands {
				t.AddRow(l.ID.String(), l.Title, l.Location, market.FormatNaira(l.PricePerUnitKobo),
					fmt.Sprintf("%d/%d", l.AvailableUnits, l.TotalUnits), a.out.Badge(landStatus(l)))
			}
			return t.Render()
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a land and the units you hold in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/lands/"+args[0]); err != nil {
				return err
			}
			land, err := a.market.Land(ctx, args[0])
			if err != nil {
				return notFound(err, "land", args[0])
			}
			owned, err := a.market.UnitsOwned(ctx, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(struct {
				*market.Land
				UnitsOwned int `json:"units_owned"`
			}{land, owned}); ok {
				return err
			}
			a.out.Header(land.Title)
			a.out.Field("Location", land.Location)
			if land.Description != "" {
				a.out.Field("Description", land.Description)
			}
			a.out.Field("Size", strconv.FormatFloat(float64(land.Size), 'f', -1, 64)+" sqm")
			a.out.Field("Price per unit", market.FormatNaira(land.PricePerUnitKobo))
			a.out.Field("Units", fmt.Sprintf("%d available of %d (%d sold)", land.AvailableUnits, land.TotalUnits, land.SoldUnits()))
			a.out.Field("Status", landStatus(*land))
			if pos, ok := landPosition(*land); ok {
				a.out.Field("Position", pos)
			}
			if len(land.Images) > 0 {
				a.out.Field("Images", strconv.Itoa(len(land.Images)))
			}
			a.out.Field("You own", a.out.Bold(fmt.Sprintf("%d units", owned)))
			return nil
		},
	}

	units := &cobra.Command{
		Use:   "units <id>",
		Short: "Print how many units of a land you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/lands/"+args[0]); err != nil {
				return err
			}
			n, err := a.market.UnitsOwned(ctx, args[0])
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(map[string]int{"units_owned": n}); ok {
				return err
			}
			fmt.Fprintln(a.stdout, n)
			return nil
		},
	}

	cmd.AddCommand(list, show, units, newTradeCmd(a, "buy"), newTradeCmd(a, "sell"))
	return cmd
}

func newTradeCmd(a *app, action string) *cobra.Command {
	short := "Buy units of a land"
	if action == "sell" {
		short = "Sell units of a land"
	}
	cmd := &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if err := a.requireLogin(ctx, "/lands/"+id); err != nil {
				return err
			}
			units, _ := cmd.Flags().GetInt("units")
			pin, err := a.value(cmd, "pin", "Transaction PIN")
			if err != nil {
				return err
			}
			var r *market.Receipt
			if action == "sell" {
				r, err = a.market.Sell(ctx, id, units, pin)
			} else {
				r, err = a.market.Purchase(ctx, id, units, pin)
			}
			if err != nil {
				return err
			}
			// balances and notifications changed server-side
			a.cache.Reset()
			msg := r.Message
			if msg == "" {
				msg = fmt.Sprintf("%d units %s", units, map[string]string{"buy": "purchased", "sell": "sold"}[action])
			}
			if r.Reference != "" {
				msg += " (ref " + r.Reference + ")"
			}
			a.done("lands "+action, msg)
			return nil
		},
	}
	cmd.Flags().Int("units", 0, "number of units")
	cmd.Flags().String("pin", "", "4-digit transaction PIN (prompted when omitted)")
	_ = cmd.MarkFlagRequired("units")
	return cmd
}

func landStatus(l market.Land) string {
	switch {
	case !bool(l.IsAvailable):
		return "disabled"
	case l.AvailableUnits <= 0:
		return "sold out"
	}
	return "available"
}

func landPosition(l market.Land) (string, bool) {
	if l.HasPolygon() {
		if c, ok := l.Coordinates.Centroid(); ok {
			return fmt.Sprintf("polygon around %.6f, %.6f", c[1], c[0]), true
		}
	}
	if l.Lat != nil && l.Lng != nil {
		return fmt.Sprintf("%.6f, %.6f", float64(*l.Lat), float64(*l.Lng)), true
	}
	return "", false
}

// notFound adds a suggestion to market.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, market.ErrNotFound) || api.Status(err) == http.StatusNotFound {
		return &output.CLIError{
			Summary:    fmt.Sprintf("%s %s not found", what, id),
			Suggestion: "Run 'growthctl lands list' to see available lands",
			ExitCode:   output.ExitGeneral,
			Err:        err,
		}
	}
	return err
}

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Balance, deposits and withdrawals",
	}

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Print the wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/wallet"); err != nil {
				return err
			}
			bal, err := a.market.Balance(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(map[string]any{"balance_kobo": int64(bal), "balance": market.FormatNaira(bal)}); ok {
				return err
			}
			fmt.Fprintln(a.stdout, market.FormatNaira(bal))
			return nil
		},
	}

	history := &cobra.Command{
		Use:   "history",
		Short: "List deposits and withdrawals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/wallet"); err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")
			var txs []market.Transaction
			var err error
			if all {
				txs, err = a.market.Transactions(ctx)
			} else {
				txs, err = a.market.WalletHistory(ctx)
			}
			if err != nil {
				return err
			}
			return a.renderTransactions(txs)
		},
	}
	history.Flags().Bool("all", false, "include land purchases and sales")

	deposit := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Start a deposit and print the payment link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/wallet"); err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			gateway, _ := cmd.Flags().GetString("gateway")
			fee, total := market.DepositFee(amount)
			a.out.Info("Amount %s + fee %s = %s", naira(amount), naira(fee), naira(total))
			res, err := a.market.Deposit(ctx, amount, gateway)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(res); ok {
				return err
			}
			a.out.Success("Continue the payment at:")
			fmt.Fprintln(a.stdout, res.PaymentURL)
			if res.Reference != "" {
				a.out.Field("Reference", res.Reference)
			}
			a.out.PrintHints("wallet deposit")
			return nil
		},
	}
	deposit.Flags().String("gateway", market.GatewayPaystack, "payment gateway: paystack or monnify")

	withdraw := &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Withdraw to the saved bank account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/wallet"); err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			bal, err := a.market.Balance(ctx)
			if err != nil {
				return err
			}
			pin, err := a.value(cmd, "pin", "Transaction PIN")
			if err != nil {
				return err
			}
			msg, err := a.market.Withdraw(ctx, amount, pin, bal)
			if err != nil {
				return err
			}
			a.cache.Reset()
			a.done("wallet withdraw", msg)
			return nil
		},
	}
	withdraw.Flags().String("pin", "", "4-digit transaction PIN (prompted when omitted)")

	cmd.AddCommand(balance, history, deposit, withdraw)
	return cmd
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, &output.CLIError{
			Summary:  fmt.Sprintf("invalid amount %q", s),
			Detail:   "amounts are whole naira, e.g. 5000",
			ExitCode: output.ExitUsageError,
		}
	}
	return n, nil
}

func naira(n int64) string { return market.FormatNaira(api.Kobo(n * 100)) }

func (a *app) renderTransactions(txs []market.Transaction) error {
	if ok, err := a.printJSON(txs); ok {
		return err
	}
	if len(txs) == 0 {
		a.out.Info("No transactions yet")
		return nil
	}
	t := a.out.Table("DATE", "TYPE", "AMOUNT", "STATUS", "DETAILS", "REFERENCE")
	for _, tx := range txs {
		details := tx.Land
		if tx.Units > 0 {
			details = fmt.Sprintf("%s (%d units)", tx.Land, tx.Units)
		}
		t.AddRow(tx.Date, tx.Type,
			a.out.Signed(market.TransactionSign(tx.Type), market.FormatCompact(float64(tx.Amount))),
			tx.Status, details, tx.Reference)
	}
	return t.Render()
}

func newPortfolioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show your holdings and their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/portfolio"); err != nil {
				return err
			}
			summary, err := a.market.Summary(ctx)
			if err != nil {
				return err
			}
			owned, err := a.market.OwnedLands(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(map[string]any{"summary": summary, "lands": owned}); ok {
				return err
			}
			a.out.Header("Portfolio")
			a.out.Field("Current value", market.FormatNaira(summary.CurrentValueKobo))
			a.out.Field("Invested", market.FormatNaira(summary.TotalInvestedKobo))
			pl := float64(summary.ProfitLossPercent)
			a.out.Field("Profit/loss", a.out.Signed(sign(pl), market.FormatNaira(abs(summary.TotalProfitLossKobo))+" ("+market.FormatPercent(pl)+")"))
			if len(owned) == 0 {
				a.out.Info("\nYou do not own any land units yet")
				return nil
			}
			fmt.Fprintln(a.stdout)
			t := a.out.Table("LAND", "NAME", "UNITS", "VALUE")
			for _, o := range owned {
				t.AddRow(o.LandID.String(), o.LandName, strconv.Itoa(o.UnitsOwned), market.FormatCompact(float64(o.CurrentValue)))
			}
			return t.Render()
		},
	}
}

func newDashboardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals and recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, a.sess.DashboardPath()); err != nil {
				return err
			}
			d, err := a.market.Dashboard(ctx)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			if limit > 0 && len(d.Transactions) > limit {
				d.Transactions = d.Transactions[:limit]
			}
			if ok, err := a.printJSON(d); ok {
				return err
			}
			s := d.Stats
			a.out.Header("Dashboard")
			a.out.Field("Balance", market.FormatCompact(float64(s.Balance)))
			a.out.Field("Invested", market.FormatCompact(float64(s.TotalInvested)))
			a.out.Field("Withdrawn", market.FormatCompact(float64(s.TotalWithdrawn)))
			if s.PendingWithdrawals > 0 {
				a.out.Field("Pending", market.FormatCompact(float64(s.PendingWithdrawals)))
			}
			a.out.Field("Lands owned", fmt.Sprintf("%d (%d units)", s.LandsOwned, s.UnitsOwned))
			pl := s.ProfitLossPercent()
			a.out.Field("Profit/loss", a.out.Signed(sign(pl), market.FormatPercent(pl)[1:]))
			fmt.Fprintln(a.stdout)
			return a.renderTransactions(d.Transactions)
		},
	}
	cmd.Flags().Int("limit", 5, "recent transactions to show, 0 for all")
	return cmd
}

func sign(v float64) string {
	switch {
	case v > 0:
		return "+"
	case v < 0:
		return "−"
	}
	return ""
}

func abs(k api.Kobo) api.Kobo {
	if k < 0 {
		return -k
	}
	return k
}
