package catalog

// Default relation and column names of the fundamentals store
const (
	DefaultRelation           = "fundamentals"
	DefaultSectorColumn       = "sector"
	DefaultSignificanceColumn = "market_cap"
)

// Default returns the built-in catalog of the fundamentals relation
func Default() *Catalog {
	return New(Options{
		Relation:           DefaultRelation,
		SectorColumn:       DefaultSectorColumn,
		SignificanceColumn: DefaultSignificanceColumn,
	}, defaultFields(), defaultSectors())
}

func defaultFields() []Field {
	return []Field{
		{Name: "pe_ratio", Column: "pe_ratio", Type: TypeNumber, ProviderKey: "PERatio", ShortNames: []string{"pe"}},
		{Name: "peg_ratio", Column: "peg_ratio", Type: TypeNumber, ProviderKey: "PEGRatio", ShortNames: []string{"peg"}},
		{Name: "pb_ratio", Column: "pb_ratio", Type: TypeNumber, ProviderKey: "PriceToBookRatio", ShortNames: []string{"pb"}},
		{Name: "ps_ratio", Column: "ps_ratio", Type: TypeNumber, ProviderKey: "PriceToSalesRatioTTM", ShortNames: []string{"ps"}},
		{Name: "eps", Column: "eps", Type: TypeNumber, ProviderKey: "EPS"},
		{Name: "market_cap", Column: "market_cap", Type: TypeNumber, ProviderKey: "MarketCapitalization", ShortNames: []string{"marketcap"}},
		{Name: "dividend_yield", Column: "dividend_yield", Type: TypeNumber, ProviderKey: "DividendYield", ProviderScale: 100, ShortNames: []string{"dividendyield"}},
		{Name: "profit_margin", Column: "profit_margin", Type: TypeNumber, ProviderKey: "ProfitMargin", ProviderScale: 100, ShortNames: []string{"profitmargin"}},
		{Name: "operating_margin", Column: "operating_margin", Type: TypeNumber, ProviderKey: "OperatingMarginTTM", ProviderScale: 100},
		{Name: "return_on_equity", Column: "return_on_equity", Type: TypeNumber, ProviderKey: "ReturnOnEquityTTM", ProviderScale: 100, ShortNames: []string{"roe"}},
		{Name: "return_on_assets", Column: "return_on_assets", Type: TypeNumber, ProviderKey: "ReturnOnAssetsTTM", ProviderScale: 100, ShortNames: []string{"roa"}},
		{Name: "debt_to_equity", Column: "debt_to_equity", Type: TypeNumber},
		{Name: "current_ratio", Column: "current_ratio", Type: TypeNumber},
		{Name: "revenue", Column: "revenue", Type: TypeNumber, ProviderKey: "RevenueTTM"},
		{Name: "revenue_growth", Column: "revenue_growth", Type: TypeNumber, ProviderKey: "QuarterlyRevenueGrowthYOY", ProviderScale: 100},
		{Name: "ebitda", Column: "ebitda", Type: TypeNumber, ProviderKey: "EBITDA"},
		{Name: "beta", Column: "beta", Type: TypeNumber, ProviderKey: "Beta"},
		{Name: "price", Column: "price", Type: TypeNumber},
		{Name: "high_52w", Column: "high_52w", Type: TypeNumber, ProviderKey: "52WeekHigh"},
		{Name: "low_52w", Column: "low_52w", Type: TypeNumber, ProviderKey: "52WeekLow"},
		{Name: "promoter_holding", Column: "promoter_holding", Type: TypeNumber},
		{Name: "industry", Column: "industry", Type: TypeText, ProviderKey: "Industry"},
		{Name: "exchange", Column: "exchange", Type: TypeText, ProviderKey: "Exchange"},
		{Name: "updated_at", Column: "updated_at", Type: TypeDate, ProviderKey: "LatestQuarter"},
	}
}

// Keywords are matched on word boundaries against normalized (lowercase) text.
// Multi-word keywords must come before their single-word prefixes.
func defaultSectors() []Sector {
	return []Sector{
		{Name: "IT", Keywords: []string{"information technology", "it", "technology", "tech", "software"}, ProviderNames: []string{"TECHNOLOGY", "INFORMATION TECHNOLOGY"}},
		{Name: "Banking", Keywords: []string{"banking", "banks", "bank"}, ProviderNames: []string{"FINANCE", "FINANCIAL SERVICES", "FINANCIALS"}},
		{Name: "Pharma", Keywords: []string{"pharmaceutical", "pharma"}, ProviderNames: []string{"LIFE SCIENCES", "HEALTHCARE"}},
		{Name: "Finance", Keywords: []string{"financials", "financial", "finance"}, ProviderNames: []string{"FINANCE", "FINANCIAL SERVICES", "FINANCIALS"}},
		{Name: "Healthcare", Keywords: []string{"health care", "healthcare"}, ProviderNames: []string{"HEALTHCARE", "LIFE SCIENCES"}},
		{Name: "Energy", Keywords: []string{"energy", "oil"}, ProviderNames: []string{"ENERGY", "ENERGY & TRANSPORTATION"}},
		{Name: "Telecom", Keywords: []string{"telecom", "telecommunications"}, ProviderNames: []string{"COMMUNICATION SERVICES"}},
		{Name: "Consumer", Keywords: []string{"consumer", "fmcg"}, ProviderNames: []string{"CONSUMER", "CONSUMER CYCLICAL", "CONSUMER DEFENSIVE", "TRADE & SERVICES"}},
		{Name: "Industrials", Keywords: []string{"industrials", "manufacturing"}, ProviderNames: []string{"INDUSTRIALS", "MANUFACTURING"}},
	}
}
