package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FundamentalsRecord is one row of demo data
type FundamentalsRecord struct {
	Symbol   string
	Name     string
	Sector   string
	Industry string
	Exchange string
	// Numeric columns keyed by column name; absent keys are stored as NULL
	Metrics map[string]float64
	// Quarterly revenue, most recent first
	Revenue []float64
}

var metricColumns = []string{
	"pe_ratio", "peg_ratio", "pb_ratio", "ps_ratio", "eps", "market_cap",
	"dividend_yield", "profit_margin", "operating_margin", "return_on_equity",
	"return_on_assets", "debt_to_equity", "current_ratio", "revenue",
	"revenue_growth", "ebitda", "beta", "price", "high_52w", "low_52w",
	"promoter_holding",
}

// DemoFundamentals returns the small universe used by DEV_MODE and tests
func DemoFundamentals() []FundamentalsRecord {
	return []FundamentalsRecord{
		{Symbol: "INFY", Name: "Infosys", Sector: "IT", Industry: "IT Services", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 4, "eps": 58.3, "market_cap": 6.1e12, "dividend_yield": 2.6, "profit_margin": 17.1, "return_on_equity": 31.2, "revenue": 1.53e12, "revenue_growth": 4.1, "beta": 0.8, "price": 1470, "high_52w": 1730, "low_52w": 1350, "promoter_holding": 14.9},
			Revenue: []float64{3.9e11, 3.8e11, 3.8e11, 3.7e11, 3.7e11, 3.6e11, 3.6e11, 3.5e11}},
		{Symbol: "TCS", Name: "Tata Consultancy Services", Sector: "IT", Industry: "IT Services", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 3, "eps": 125.8, "market_cap": 1.4e13, "dividend_yield": 1.8, "profit_margin": 19.3, "return_on_equity": 46.5, "revenue": 2.4e12, "revenue_growth": 6.8, "beta": 0.7, "price": 3850, "high_52w": 4250, "low_52w": 3300, "promoter_holding": 72.3},
			Revenue: []float64{6.1e11, 6.0e11, 5.9e11, 5.9e11, 5.8e11, 5.7e11, 5.6e11, 5.5e11}},
		{Symbol: "WIPRO", Name: "Wipro", Sector: "IT", Industry: "IT Services", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 12, "eps": 20.6, "market_cap": 2.4e12, "dividend_yield": 0.2, "profit_margin": 12.6, "return_on_equity": 15.1, "revenue": 9.0e11, "revenue_growth": -1.2, "beta": 0.9, "price": 460, "high_52w": 530, "low_52w": 375},
			Revenue: []float64{2.2e11, 2.2e11, 0, 2.3e11, 2.3e11, 2.3e11, 2.2e11, 2.2e11}},
		{Symbol: "HCLTECH", Name: "HCL Technologies", Sector: "IT", Industry: "IT Services", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 24, "eps": 57.9, "market_cap": 3.9e12, "dividend_yield": 3.5, "profit_margin": 14.8, "return_on_equity": 23.0, "revenue": 1.1e12, "revenue_growth": 5.4, "beta": 0.75, "price": 1450, "high_52w": 1700, "low_52w": 1100, "promoter_holding": 60.8},
			Revenue: []float64{2.9e11, 2.8e11, 2.8e11, 2.7e11}},
		{Symbol: "HDFCBANK", Name: "HDFC Bank", Sector: "Banking", Industry: "Private Bank", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 18, "pb_ratio": 2.6, "eps": 84.3, "market_cap": 1.2e13, "dividend_yield": 1.2, "profit_margin": 24.1, "return_on_equity": 16.9, "revenue": 2.8e12, "revenue_growth": 12.2, "beta": 0.95, "price": 1530, "high_52w": 1790, "low_52w": 1360, "promoter_holding": 0},
			Revenue: []float64{7.1e11, 7.0e11, 6.9e11, 6.8e11, 6.5e11, 6.3e11, 6.0e11, 5.8e11}},
		{Symbol: "SBIN", Name: "State Bank of India", Sector: "Banking", Industry: "Public Bank", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 9.5, "pb_ratio": 1.6, "eps": 75.2, "market_cap": 7.1e12, "dividend_yield": 1.8, "profit_margin": 14.2, "return_on_equity": 18.8, "revenue": 4.5e12, "revenue_growth": 15.0, "beta": 1.1, "price": 790, "high_52w": 912, "low_52w": 543, "promoter_holding": 57.5},
			Revenue: []float64{1.2e12, 1.1e12, 1.1e12, 1.1e12, 1.0e12, 1.0e12, 0.9e12, 0.9e12}},
		{Symbol: "ICICIBANK", Name: "ICICI Bank", Sector: "Banking", Industry: "Private Bank", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 17, "pb_ratio": 3.1, "eps": 63.0, "market_cap": 7.9e12, "dividend_yield": 0.8, "profit_margin": 26.5, "return_on_equity": 18.0, "revenue": 1.9e12, "revenue_growth": 18.4, "beta": 1.0, "price": 1120, "high_52w": 1260, "low_52w": 900},
			Revenue: []float64{4.9e11, 4.8e11, 4.6e11, 4.5e11, 4.3e11, 4.1e11, 3.9e11, 3.7e11}},
		{Symbol: "SUNPHARMA", Name: "Sun Pharmaceutical", Sector: "Pharma", Industry: "Pharmaceuticals", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 36, "eps": 40.2, "market_cap": 3.8e12, "dividend_yield": 0.9, "profit_margin": 19.5, "return_on_equity": 16.1, "revenue": 4.8e11, "revenue_growth": 9.8, "beta": 0.55, "price": 1580, "high_52w": 1640, "low_52w": 1030, "promoter_holding": 54.5},
			Revenue: []float64{1.2e11, 1.2e11, 1.2e11, 1.1e11, 1.1e11, 1.1e11, 1.1e11, 1.0e11}},
		{Symbol: "CIPLA", Name: "Cipla", Sector: "Pharma", Industry: "Pharmaceuticals", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 28, "eps": 51.4, "market_cap": 1.2e12, "dividend_yield": 0.6, "profit_margin": 16.2, "return_on_equity": 15.6, "revenue": 2.6e11, "revenue_growth": 7.2, "beta": 0.5, "price": 1450, "high_52w": 1520, "low_52w": 1100, "promoter_holding": 33.5},
			Revenue: []float64{6.6e10, 6.5e10, 6.6e10, 6.3e10, 6.0e10, 5.9e10, 5.8e10, 5.7e10}},
		{Symbol: "RELIANCE", Name: "Reliance Industries", Sector: "Energy", Industry: "Refineries", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 27, "eps": 102.9, "market_cap": 1.9e13, "dividend_yield": 0.3, "profit_margin": 7.8, "return_on_equity": 9.2, "debt_to_equity": 0.4, "revenue": 9.0e12, "revenue_growth": 2.6, "beta": 1.05, "price": 2900, "high_52w": 3020, "low_52w": 2220, "promoter_holding": 50.3},
			Revenue: []float64{2.3e12, 2.2e12, 2.3e12, 2.3e12, 2.1e12, 2.1e12, 2.2e12, 2.4e12}},
		{Symbol: "ONGC", Name: "Oil and Natural Gas Corporation", Sector: "Energy", Industry: "Oil Exploration", Exchange: "NSE",
			Metrics: map[string]float64{"pe_ratio": 7.5, "eps": 31.2, "market_cap": 3.3e12, "dividend_yield": 4.4, "profit_margin": 7.1, "return_on_equity": 14.9, "revenue": 6.4e12, "beta": 1.2, "price": 265, "high_52w": 292, "low_52w": 158, "promoter_holding": 58.9},
			Revenue: []float64{1.6e12, 1.6e12, 1.5e12, 1.7e12, 1.6e12, 1.6e12, 1.5e12, 1.7e12}},
		{Symbol: "NEWCO", Name: "Newly Listed Co", Sector: "IT", Industry: "Software", Exchange: "BSE",
			Metrics: map[string]float64{"price": 120}},
	}
}

// SeedFundamentals replaces the database contents with the given records.
// Quarter ends are counted back from asOf, most recent first.
func SeedFundamentals(ctx context.Context, db *DB, records []FundamentalsRecord, asOf time.Time) error {
	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM quarterly_financials"); err != nil {
			return fmt.Errorf("failed to clear quarterly financials: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM fundamentals"); err != nil {
			return fmt.Errorf("failed to clear fundamentals: %w", err)
		}

		columns := append([]string{"symbol", "name", "sector", "industry", "exchange", "updated_at"}, metricColumns...)
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		insert := fmt.Sprintf("INSERT INTO fundamentals (%s) VALUES (%s)", strings.Join(columns, ", "), placeholders)

		updated := asOf.UTC().Format("2006-01-02")
		for _, r := range records {
			args := []any{r.Symbol, r.Name, r.Sector, r.Industry, r.Exchange, updated}
			for _, col := range metricColumns {
				if v, ok := r.Metrics[col]; ok {
					args = append(args, v)
				} else {
					args = append(args, nil)
				}
			}
			if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
				return fmt.Errorf("failed to insert %s: %w", r.Symbol, err)
			}

			for i, revenue := range r.Revenue {
				quarterEnd := QuarterEnd(asOf, i).Format("2006-01-02")
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO quarterly_financials (symbol, quarter_end, revenue) VALUES (?, ?, ?)",
					r.Symbol, quarterEnd, revenue,
				); err != nil {
					return fmt.Errorf("failed to insert quarter %s for %s: %w", quarterEnd, r.Symbol, err)
				}
			}
		}
		return nil
	})
}

// QuarterEnd returns the last day of the calendar quarter that ended n
// quarters before the quarter containing asOf (n=0 is the previous quarter).
func QuarterEnd(asOf time.Time, n int) time.Time {
	asOf = asOf.UTC()
	firstMonthOfQuarter := time.Month((int(asOf.Month())-1)/3*3 + 1)
	quarterStart := time.Date(asOf.Year(), firstMonthOfQuarter, 1, 0, 0, 0, 0, time.UTC)
	return quarterStart.AddDate(0, -3*n, -1)
}
