package config

import (
	"fmt"
	"sort"
	"strings"
)

// denylist groups sensitive domains by category. Visits to these domains
// and download sources pointing at them are kept out of the archive when
// archive.use_default_denylist is set; analysis results are unaffected.
var denylist = map[string][]string{
	"banking": {
		"chase.com", "bankofamerica.com", "wellsfargo.com", "citi.com", "usbank.com",
		"capitalone.com", "ally.com", "pnc.com", "truist.com", "navyfederal.org",
		"regions.com", "paypal.com", "venmo.com", "zelle.com",
	},
	"investing": {
		"schwab.com", "fidelity.com", "vanguard.com", "etrade.com", "robinhood.com",
		"coinbase.com", "binance.com", "kraken.com", "gemini.com",
	},
	"credentials": {
		"1password.com", "lastpass.com", "bitwarden.com", "dashlane.com", "keepersecurity.com",
		"accounts.google.com", "login.microsoftonline.com", "login.live.com", "okta.com", "auth0.com",
	},
	"health": {
		"mychart.com", "kp.org", "healthcare.gov", "medicare.gov",
		"member.cigna.com", "member.aetna.com", "member.uhc.com",
	},
	"government": {
		"irs.gov", "ssa.gov", "login.gov", "id.me", "turbotax.intuit.com",
	},
	"payroll": {
		"workday.com", "adp.com", "gusto.com", "paychex.com",
	},
}

// DenylistCategories lists the built-in categories in name order.
func DenylistCategories() []string {
	names := make([]string, 0, len(denylist))
	for name := range denylist {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultDenylistDomains returns the built-in domains for the given
// categories, or for all of them when none are given.
func DefaultDenylistDomains(categories ...string) []string {
	if len(categories) == 0 {
		categories = DenylistCategories()
	}
	var domains []string
	for _, c := range categories {
		domains = append(domains, denylist[strings.ToLower(strings.TrimSpace(c))]...)
	}
	return domains
}

func validateDenylistCategories(categories []string) error {
	for _, c := range categories {
		if _, ok := denylist[strings.ToLower(strings.TrimSpace(c))]; !ok {
			return fmt.Errorf("archive.denylist_categories: unknown category %q (have %s)",
				c, strings.Join(DenylistCategories(), ", "))
		}
	}
	return nil
}
