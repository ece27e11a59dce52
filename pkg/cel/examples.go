package cel

var FilterExpressionExamples = map[string]string{
	"positive_price":    `price > 0.0`,
	"price_ceiling":     `price <= 5000.0`,
	"euro_only":         `currency == "EUR"`,
	"destinations":      `destination in ["LIS", "OPO", "FAO"]`,
	"future_departures": `departureDate > timestamp("2024-01-01T00:00:00Z")`,
	"known_airline":     `airline != ""`,
	"trusted_source":    `source.startsWith("https://")`,
	"combined":          `currency == "EUR" && price < 1000.0 && origin != destination`,
}
