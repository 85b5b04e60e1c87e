package training

import "sort"

// Indicator describes one technical indicator the trainer can derive
// features from.
type Indicator struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Essential   bool     `json:"essential"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
}

// indicatorCatalog is the full set of supported indicators. Essential ones
// form the default feature set; the rest are opt-in.
var indicatorCatalog = map[string]Indicator{
	"price": {
		Name: "price", Label: "Price", Essential: true,
		Description: "OHLCV price data",
		Columns:     []string{"open", "high", "low", "close", "volume"},
	},
	"macd": {
		Name: "macd", Label: "MACD", Essential: true,
		Description: "Moving average convergence divergence",
		Columns:     []string{"macd", "macd_signal", "macd_hist"},
	},
	"rsi": {
		Name: "rsi", Label: "RSI", Essential: true,
		Description: "Relative strength index",
		Columns:     []string{"rsi_14"},
	},
	"bb": {
		Name: "bb", Label: "Bollinger Bands", Essential: true,
		Description: "Bollinger band envelope",
		Columns:     []string{"bb_upper", "bb_middle", "bb_lower", "bb_width"},
	},
	"atr": {
		Name: "atr", Label: "ATR", Essential: true,
		Description: "Average true range",
		Columns:     []string{"atr_14"},
	},
	"volume": {
		Name: "volume", Label: "Volume", Essential: true,
		Description: "Volume-derived features",
		Columns:     []string{"volume_sma_20", "volume_ratio"},
	},
	"adx": {
		Name: "adx", Label: "ADX", Essential: true,
		Description: "Average directional index",
		Columns:     []string{"adx_14", "plus_di", "minus_di"},
	},
	"aroon": {
		Name: "aroon", Label: "Aroon", Essential: true,
		Description: "Aroon oscillator",
		Columns:     []string{"aroon_up", "aroon_down", "aroon_osc"},
	},
	"consecutive": {
		Name: "consecutive", Label: "Consecutive Moves", Essential: true,
		Description: "Streaks of up/down closes",
		Columns:     []string{"consecutive_up", "consecutive_down"},
	},
	"trend": {
		Name: "trend", Label: "Trend", Essential: true,
		Description: "Short and long trend slope",
		Columns:     []string{"trend_short", "trend_long"},
	},
	"sma": {
		Name: "sma", Label: "SMA", Essential: false,
		Description: "Simple moving averages",
		Columns:     []string{"sma_20", "sma_50", "sma_200"},
	},
	"ema": {
		Name: "ema", Label: "EMA", Essential: false,
		Description: "Exponential moving averages",
		Columns:     []string{"ema_12", "ema_26"},
	},
	"stoch": {
		Name: "stoch", Label: "Stochastic", Essential: false,
		Description: "Stochastic oscillator",
		Columns:     []string{"stoch_k", "stoch_d"},
	},
	"williams": {
		Name: "williams", Label: "Williams %R", Essential: false,
		Description: "Williams percent range",
		Columns:     []string{"williams_r"},
	},
	"mfi": {
		Name: "mfi", Label: "MFI", Essential: false,
		Description: "Money flow index",
		Columns:     []string{"mfi_14"},
	},
	"vwap": {
		Name: "vwap", Label: "VWAP", Essential: false,
		Description: "Volume weighted average price",
		Columns:     []string{"vwap", "vwap_dist"},
	},
	"volatility": {
		Name: "volatility", Label: "Volatility", Essential: false,
		Description: "Rolling volatility",
		Columns:     []string{"volatility_20"},
	},
}

// EssentialIndicators returns the default indicator names, sorted.
func EssentialIndicators() []string {
	var names []string
	for name, ind := range indicatorCatalog {
		if ind.Essential {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllIndicators returns the full catalog, essential first then by name.
func AllIndicators() []Indicator {
	out := make([]Indicator, 0, len(indicatorCatalog))
	for _, ind := range indicatorCatalog {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Essential != out[j].Essential {
			return out[i].Essential
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// KnownIndicator reports whether name is in the catalog.
func KnownIndicator(name string) bool {
	_, ok := indicatorCatalog[name]
	return ok
}
