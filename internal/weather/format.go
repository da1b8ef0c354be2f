package weather

import (
	"fmt"
	"strings"
)

// unitSymbols は単位系ごとの温度・風速の表示単位。
var unitSymbols = map[string][2]string{
	"metric":   {"°C", "m/s"},
	"imperial": {"°F", "mph"},
	"standard": {"K", "m/s"},
}

// FormatReport は天気レポートを通知向けのテキストにする。
func FormatReport(report *Report, units string) string {
	symbols, ok := unitSymbols[units]
	if !ok {
		symbols = unitSymbols["standard"]
	}

	description := ""
	if len(report.Weather) > 0 {
		description = report.Weather[0].Description
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", report.Name, description)
	fmt.Fprintf(&sb, "Temperature: %.1f%s (feels like %.1f%s)\n",
		report.Main.Temp, symbols[0], report.Main.FeelsLike, symbols[0])
	fmt.Fprintf(&sb, "Humidity: %d%%\n", report.Main.Humidity)
	fmt.Fprintf(&sb, "Wind: %.1f %s", report.Wind.Speed, symbols[1])

	return sb.String()
}
