package config

import (
	"time"

	"market-feature-lab/internal/features"
)

// Default returns the built-in ETF universe, indicator map and horizon table.
func Default() Config {
	horizons := features.DefaultHorizons()
	hc := make([]HorizonConfig, len(horizons))
	for i, h := range horizons {
		metrics := make([]string, len(h.Metrics))
		for j, m := range h.Metrics {
			metrics[j] = string(m)
		}
		hc[i] = HorizonConfig{Name: h.Name, Days: h.Days, Metrics: metrics, VolumeAgg: string(h.VolumeAgg)}
	}

	return Config{
		Calendar: DateRange{Start: "1998-01-01", End: "2021-03-01"},
		Range:    DateRange{Start: "2003-01-01", End: "2020-12-31"},
		Instruments: []string{
			"SPY", // S&P 500
			"IWV", // Russell 3000
			"QQQ",
			"IYF",
			"XLP",
			"XLU",
			"XLV",
			"IGE",
			"XLE",
		},
		Indicators: []IndicatorConfig{
			{Alias: "3M_TBILL", Code: "DTB3"},
			{Alias: "CPI", Code: "MEDCPIM158SFRBCLE"},
			{Alias: "VIX", Code: "VIXCLS"},
			{Alias: "INDP", Code: "INDPRO", RateOfChange: true},
			{Alias: "USHY_ADJ", Code: "BAMLH0A0HYM2"},
			{Alias: "US_LEADING", Code: "USSLIND"},
			{Alias: "30Y_FRMTG", Code: "MORTGAGE30US"},
			{Alias: "15Y_FRMTG", Code: "MORTGAGE15US"},
			{Alias: "CPI_URBAN", Code: "CUSR0000SEHA", RateOfChange: true},
			{Alias: "RETAIL", Code: "RSAFS", RateOfChange: true},
			{Alias: "PHARMA", Code: "PCU32543254", RateOfChange: true},
			{Alias: "UNEMP", Code: "UNRATE"},
			{Alias: "UNEMP_PERM", Code: "LNS13026638"},
			{Alias: "UNEMP_MEN", Code: "LNS14000001"},
			{Alias: "UNEMP_WMN", Code: "LNS14000002"},
			{Alias: "UNEMP_WHT", Code: "LNS14000003"},
			{Alias: "UNEMP_BLK", Code: "LNS14000006"},
			{Alias: "UNEMP_HIS", Code: "LNS14000009"},
			{Alias: "INC", Code: "PI", RateOfChange: true},
			{Alias: "INC_DISP", Code: "DSPIC96", RateOfChange: true},
			{Alias: "INC_DISP_PC", Code: "A229RX0", RateOfChange: true},
			{Alias: "TAX_HIGH", Code: "IITTRHB"},
			{Alias: "TAX_LOW", Code: "IITTRLB"},
		},
		Horizons: hc,
		Features: FeaturesConfig{
			ReturnConvention: string(features.ReturnRollingMean),
			TargetDays:       features.DefaultTargetDays,
			Workers:          4,
		},
		Simulation: SimulationConfig{
			Replicates: 500,
			Step:       0.01,
			Horizon:    1,
		},
		Sources: SourcesConfig{
			Backend:  "http",
			YahooURL: "https://query1.finance.yahoo.com",
			FredURL:  "https://api.stlouisfed.org",
			Timeout:  30 * time.Second,
			Workers:  4,
		},
		Storage: StorageConfig{
			Backend:   "csv",
			Path:      "data",
			PanelName: "market_data",
		},
	}
}
