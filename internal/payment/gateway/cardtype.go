package gateway

var cardTypes = map[string]string{
	"001": "Visa",
	"002": "Mastercard",
	"003": "American Express",
	"004": "Discover",
	"005": "Diners Club",
	"006": "Carte Blanche",
	"007": "JCB",
	"014": "EnRoute",
	"021": "JAL",
	"024": "Maestro (UK Domestic)",
	"031": "Delta",
	"033": "Visa Electron",
	"034": "Dankort",
	"036": "Cartes Bancaires",
	"037": "Carta Si",
	"039": "Encoded account number",
	"040": "UATP",
	"042": "Maestro (International)",
	"050": "Hipercard",
	"051": "Aura",
	"054": "Elo",
	"062": "China UnionPay",
}

// CardTypeName maps the gateway's req_card_type code to a display name.
func CardTypeName(code string) string {
	if name, ok := cardTypes[code]; ok {
		return name
	}
	return "Unknown"
}
