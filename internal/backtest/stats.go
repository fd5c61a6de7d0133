package backtest

import (
	"math"

	"signal-monitor/internal/markethours"
	"signal-monitor/internal/model"
)

const (
	// TradingDaysPerYear annualizes daily Sharpe ratios.
	TradingDaysPerYear = 252

	// capacityShare is the fraction of average bar turnover a strategy is
	// assumed to be able to trade.
	capacityShare = 0.01
)

// StatsInput is everything Compute needs from a finished run.
type StatsInput struct {
	InitialCapital float64
	Trades         []model.Trade
	Equity         []model.EquityPoint
	Realized       float64 // sum of all trade profits
	MaxMarginUsed  float64
	Bars           []model.Bar
	Multiplier     float64
	Slippage       float64 // configured per-fill slippage, reported when no trade filled
}

// Compute derives the summary statistics of a run. Every output is finite.
func Compute(in StatsInput) model.Statistics {
	st := model.Statistics{
		TotalTrades:    len(in.Trades),
		FinalEquity:    in.InitialCapital,
		RealizedProfit: in.Realized,
		MaxMarginUsed:  in.MaxMarginUsed,
	}
	if n := len(in.Equity); n > 0 {
		st.FinalEquity = in.Equity[n-1].Equity
	}
	st.TotalProfit = st.FinalEquity - in.InitialCapital
	st.FloatingProfit = st.TotalProfit - st.RealizedProfit
	if in.InitialCapital > 0 {
		st.TotalReturn = st.TotalProfit / in.InitialCapital
	}

	st.MaxDrawdown = MaxDrawdown(in.Equity)
	daily := DailyCurve(in.Equity)
	st.SharpeRatio = Sharpe(daily)
	st.MaxDailyLoss = MaxDailyLoss(daily)

	closing(in.Trades, &st)
	slippage(in.Trades, in.Slippage, &st)

	if in.MaxMarginUsed > 0 {
		st.ReturnOnMargin = st.TotalProfit / in.MaxMarginUsed
	}
	st.StrategyCapacity = Capacity(in.Bars, in.Multiplier)

	return Sanitize(st)
}

// closing fills the statistics derived from closing trades, in order.
func closing(trades []model.Trade, st *model.Statistics) {
	var n, wins, losses int
	var sum, winSum, lossSum float64
	var runW, runL int
	for _, t := range trades {
		if !t.Direction.IsClose() {
			continue
		}
		n++
		sum += t.Profit
		if t.Profit > 0 {
			wins++
			winSum += t.Profit
			runW++
			runL = 0
		} else {
			losses++
			lossSum += t.Profit
			runL++
			runW = 0
		}
		st.MaxConsecutiveWins = max(st.MaxConsecutiveWins, runW)
		st.MaxConsecutiveLosses = max(st.MaxConsecutiveLosses, runL)
	}
	if n == 0 {
		return
	}
	st.WinRate = float64(wins) / float64(n)
	st.AvgProfit = sum / float64(n)
	if wins > 0 {
		st.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		st.AvgLoss = lossSum / float64(losses)
	}
	// No losing trade leaves the factor at 0.
	if lossSum < 0 {
		st.ProfitFactor = winSum / math.Abs(lossSum)
	}
}

func slippage(trades []model.Trade, configured float64, st *model.Statistics) {
	if len(trades) == 0 {
		st.AvgSlippage, st.MaxSlippage = configured, configured
		return
	}
	var sum float64
	for _, t := range trades {
		sum += t.Slippage
		st.MaxSlippage = math.Max(st.MaxSlippage, t.Slippage)
	}
	st.AvgSlippage = sum / float64(len(trades))
}

// MaxDrawdown returns the largest fractional decline from a running peak.
func MaxDrawdown(curve []model.EquityPoint) float64 {
	var peak, dd float64
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd = math.Max(dd, (peak-p.Equity)/peak)
		}
	}
	return dd
}

// DailyCurve resamples an equity curve to the last point of each calendar
// day, in the timestamps' own location.
func DailyCurve(curve []model.EquityPoint) []model.EquityPoint {
	out := make([]model.EquityPoint, 0, len(curve)/4+1)
	var last markethours.Day
	for i, p := range curve {
		day := markethours.DayOf(p.TS)
		if i > 0 && day == last {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
		last = day
	}
	return out
}

// Returns computes period-over-period percentage changes.
func Returns(curve []model.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

// Sharpe returns mean/stdev x sqrt(252) of the day-over-day returns of a
// daily curve. Fewer than two returns or zero variance yield 0.
//
// The input must already be daily; see DailyCurve.
func Sharpe(daily []model.EquityPoint) float64 {
	return annualizedSharpe(Returns(daily))
}

func annualizedSharpe(rets []float64) float64 {
	n := len(rets)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(n)

	var ss float64
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return finite(mean / std * math.Sqrt(TradingDaysPerYear))
}

// MaxDailyLoss returns the most negative day-over-day equity change of a
// daily curve, or 0 when equity never fell.
func MaxDailyLoss(daily []model.EquityPoint) float64 {
	var worst float64
	for i := 1; i < len(daily); i++ {
		worst = math.Min(worst, daily[i].Equity-daily[i-1].Equity)
	}
	return worst
}

// Capacity estimates a liquidity ceiling as 1% of the average per-bar
// notional turnover (volume x close x multiplier).
func Capacity(bars []model.Bar, multiplier float64) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Volume * b.Close * multiplier
	}
	return sum / float64(len(bars)) * capacityShare
}

// Sanitize replaces NaN and Inf fields with 0.
func Sanitize(st model.Statistics) model.Statistics {
	for _, f := range []*float64{
		&st.WinRate, &st.MaxDrawdown, &st.SharpeRatio, &st.TotalReturn, &st.AnnualizedReturn,
		&st.TotalProfit, &st.FinalEquity, &st.RealizedProfit, &st.FloatingProfit, &st.AvgProfit,
		&st.AvgWin, &st.AvgLoss, &st.ProfitFactor, &st.ReturnOnMargin, &st.MaxMarginUsed,
		&st.AvgSlippage, &st.MaxSlippage, &st.StrategyCapacity, &st.MaxDailyLoss,
	} {
		*f = finite(*f)
	}
	return st
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
