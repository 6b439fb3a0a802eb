package config

// Seller is a marketplace seller profile to scrape.
type Seller struct {
	Name       string
	ProfileURL string
}

var testSellers = []Seller{
	{"DURSAN D.", "https://es.wallapop.com/user/dursan-96099038"},
}

// Sellers are split in groups so that several scrape jobs can run in
// parallel, each writing its own partition sheet.
var sellerGroups = [][]Seller{
	// smallest catalogues
	{
		{"DURSAN D.", "https://es.wallapop.com/user/dursan-96099038"},
		{"Beatriz D.", "https://es.wallapop.com/user/jhonnyg-324627202"},
		{"GESTICAR G.", "https://es.wallapop.com/user/gesticarbilbao-76967810"},
		{"Garage Club C.", "https://es.wallapop.com/user/carlesb-25499485"},
		{"CARHAY.COM", "https://es.wallapop.com/user/carhaycom-67203195"},
		{"CRESTANEVADA S.L M.", "https://es.wallapop.com/user/grupoc-462243034"},
	},
	{
		{"CRESTANEVADA VIC C.", "https://es.wallapop.com/user/grupoc-467547033"},
		{"CRESTANEVADA TOLEDO C.", "https://es.wallapop.com/user/crestanevadam-428487033"},
		{"CRESTANEVADA HUESCA C.", "https://es.wallapop.com/user/grupoc-459881034"},
		{"CRESTANEVADA MURCIA", "https://es.wallapop.com/user/antonio-425989040"},
		{"CRESTANEVADA ALMERIA C.", "https://es.wallapop.com/user/grupoc-460007033"},
		{"Mundicars G.", "https://es.wallapop.com/user/mundicarst-450893033"},
	},
	// largest catalogues
	{
		{"Mundicars V.", "https://es.wallapop.com/user/mundicarsv-460263033"},
		{"MundiCars B.", "https://es.wallapop.com/user/mundicarst-439083033"},
		{"MundiCars S.", "https://es.wallapop.com/user/mundicarst-443905034"},
		{"OCASIONPLUS E.", "https://es.wallapop.com/user/ocasionpluse-437961034"},
		{"GRUPO O.", "https://es.wallapop.com/user/grupoo-468103033"},
		{"Flexicar L.", "https://es.wallapop.com/user/flexicar-395335033"},
		{"INTEGRAL MOTION M.", "https://es.wallapop.com/user/integralm-463115034"},
	},
}

// Sellers returns the sellers to scrape. Test mode uses a single seller;
// otherwise group 1..3 selects one group and any other value selects all.
func Sellers(testMode bool, group int) []Seller {
	if testMode {
		return append([]Seller(nil), testSellers...)
	}
	if group >= 1 && group <= len(sellerGroups) {
		return append([]Seller(nil), sellerGroups[group-1]...)
	}
	var all []Seller
	for _, g := range sellerGroups {
		all = append(all, g...)
	}
	return all
}
