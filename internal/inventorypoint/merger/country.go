package merger

import "strings"

// euCountries are merged into a single EU point. UK is not a member.
var euCountries = map[string]struct{}{
	"FR": {}, "DE": {}, "IT": {}, "ES": {}, "PT": {}, "NL": {}, "BE": {}, "LU": {}, "AT": {},
	"DK": {}, "SE": {}, "FI": {}, "EE": {}, "HR": {}, "SI": {}, "CZ": {}, "RO": {}, "BG": {},
	"GR": {}, "CY": {}, "MT": {}, "IS": {}, "LI": {}, "MC": {}, "SM": {}, "VA": {},
}

var marketplaceCountries = map[string]string{
	"A1F83G8C2ARO7P": "UK",
	"ATVPDKIKX0DER":  "US",
	"A1PA6795UKMFR9": "DE",
	"A13V1IB3VIYZZH": "FR",
	"APJ6JRA9NG5V4":  "IT",
	"A1RKKUPIHCS9HS": "ES",
	"A2EUQ1WTGCTBG2": "CA",
	"A39IBJ37TRP1C6": "AU",
	"A1VC38T7YXB528": "JP",
	"A21TJRUUN4KGV":  "IN",
	"A1805IZSGTT6HS": "NL",
	"A2NODRKZP88ZB9": "SE",
	"A1C3SOZRARQ6R3": "PL",
	"AMEN7PMS3EDWL":  "BE",
	"A1AM78C64UM0Y8": "MX",
	"A2Q3Y263D00KWC": "BR",
}

var currencySymbols = map[string]string{
	"US": "US$", "CA": "C$", "MX": "MX$", "BR": "R$", "UK": "£", "AU": "A$", "JP": "¥", "IN": "₹",
	"SE": "kr", "PL": "zł",
}

func IsEU(country string) bool {
	_, ok := euCountries[strings.ToUpper(country)]
	return ok
}

// MarketplaceCountry maps an ERP marketplace id to its ISO code. Unknown
// ids are returned unchanged.
func MarketplaceCountry(marketplaceID string) string {
	if c, ok := marketplaceCountries[marketplaceID]; ok {
		return c
	}
	return marketplaceID
}

// CountryOf resolves a row's country from its marketplace id, falling back
// to the "-XX" suffix of the store name.
func CountryOf(marketplaceID, store string) string {
	if c, ok := marketplaceCountries[marketplaceID]; ok {
		return c
	}
	if c := storeSuffix(store); c != "" {
		return c
	}
	return marketplaceID
}

// StorePrefix is the store name before its last "-".
// "03 ZipCozy-UK" becomes "03 ZipCozy".
func StorePrefix(store string) string {
	store = strings.TrimSpace(store)
	if i := strings.LastIndex(store, "-"); i > 0 {
		return strings.TrimSpace(store[:i])
	}
	return store
}

// CurrencySymbol is the price prefix used for a country; EU members use €.
func CurrencySymbol(country string) string {
	if IsEU(country) {
		return "€"
	}
	if s, ok := currencySymbols[strings.ToUpper(country)]; ok {
		return s
	}
	return "$"
}

func storeSuffix(store string) string {
	i := strings.LastIndex(store, "-")
	if i < 0 {
		return ""
	}
	suffix := strings.ToUpper(strings.TrimSpace(store[i+1:]))
	if len(suffix) != 2 {
		return ""
	}
	for _, r := range suffix {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	if suffix == "GB" {
		return "UK"
	}
	return suffix
}
