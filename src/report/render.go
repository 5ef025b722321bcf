package report

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func (r *Report) String() string {
	display := &strings.Builder{}
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(display)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnSeparator("")

	display.WriteString(fmt.Sprintf("Backtest %s -> %s (%d trading days):\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"), r.TradingDays))

	table.Append([]string{"Initial Capital", fmt.Sprintf("$%s", p.Sprintf("%.2f", r.InitialCapital))})
	table.Append([]string{"Final Equity", fmt.Sprintf("$%s", p.Sprintf("%.2f", r.FinalEquity))})
	table.Append([]string{"Total Return", fmt.Sprintf("%.2f%%", r.TotalReturn*100)})
	table.Append([]string{"Annualized Return", fmt.Sprintf("%.2f%%", r.AnnualizedReturn*100)})
	table.Append([]string{"Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown*100)})
	table.Append([]string{"Sharpe Ratio", fmt.Sprintf("%.2f", r.SharpeRatio)})
	table.Append([]string{"Trades", fmt.Sprintf("%d (%d round trips)", r.TradeCount, r.RoundTrips)})
	table.Append([]string{"Win Rate", fmt.Sprintf("%.1f%%", r.WinRate*100)})
	table.Append([]string{"Avg Win / Loss", fmt.Sprintf("$%s / $%s", p.Sprintf("%.2f", r.AvgWin), p.Sprintf("%.2f", r.AvgLoss))})
	table.Append([]string{"Avg Holding Period", fmt.Sprintf("%.1f days", r.AvgHoldingDays)})

	table.Render()
	return display.String()
}
