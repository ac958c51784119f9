package parser

import "github.com/aristath/screener/internal/domain"

// fieldAliases maps canonical catalog fields to the phrases users type for them.
// Matching picks the longest alias, so "price to book" wins over "price".
var fieldAliases = map[string][]string{
	"pe_ratio":         {"pe", "p/e", "p e", "pe ratio", "p/e ratio", "price earnings", "price to earnings", "price-to-earnings", "price earnings ratio"},
	"peg_ratio":        {"peg", "peg ratio"},
	"pb_ratio":         {"pb", "p/b", "pb ratio", "p/b ratio", "price to book", "price-to-book"},
	"ps_ratio":         {"ps", "p/s", "ps ratio", "price to sales", "price-to-sales"},
	"eps":              {"eps", "earnings per share"},
	"market_cap":       {"market cap", "marketcap", "market capitalization", "market capitalisation", "mcap"},
	"dividend_yield":   {"dividend", "dividends", "dividend yield", "yield"},
	"profit_margin":    {"profit margin", "net margin", "net profit margin", "profitmargin"},
	"operating_margin": {"operating margin", "op margin", "ebit margin"},
	"return_on_equity": {"roe", "return on equity"},
	"return_on_assets": {"roa", "return on assets"},
	"debt_to_equity":   {"debt to equity", "debt-to-equity", "debt/equity", "d/e", "d/e ratio"},
	"current_ratio":    {"current ratio"},
	"revenue":          {"revenue", "revenues", "sales", "turnover"},
	"revenue_growth":   {"revenue growth", "sales growth"},
	"ebitda":           {"ebitda"},
	"beta":             {"beta"},
	"price":            {"price", "share price", "stock price"},
	"high_52w":         {"52 week high", "52-week high", "52w high"},
	"low_52w":          {"52 week low", "52-week low", "52w low"},
	"promoter_holding": {"promoter holding", "promoter holdings", "promoter stake"},
}

// operatorPhrases lists each operator's phrases. Groups are tried in this
// order so "less than or equal to" resolves before "less than".
var operatorPhrases = []struct {
	op      domain.Operator
	phrases []string
}{
	{domain.OpLessOrEqual, []string{"less than or equal to", "lower than or equal to", "at most", "no more than", "not more than", "not greater than", "not above", "up to", "max", "maximum", "<=", "≤"}},
	{domain.OpGreaterOrEqual, []string{"greater than or equal to", "more than or equal to", "at least", "no less than", "not less than", "not below", "min", "minimum", ">=", "≥"}},
	{domain.OpNotEqual, []string{"not equal to", "not equals", "!=", "<>", "≠"}},
	{domain.OpLessThan, []string{"less than", "lower than", "below", "under", "<"}},
	{domain.OpGreaterThan, []string{"greater than", "more than", "higher than", "above", "over", "exceeding", ">"}},
	{domain.OpEqual, []string{"equal to", "equals", "exactly", "is", "="}},
}

// fillerPhrases carry no filter meaning and are removed during normalization
var fillerPhrases = []string{
	"show me", "show", "find me", "find", "list", "give me", "get me", "get",
	"display", "search for", "search", "i want", "looking for", "please",
	"companies with", "companies having", "companies that have", "stocks with",
	"stocks having", "stocks that have", "shares with", "companies", "stocks",
	"shares", "equities", "sector",
}
