package vocabulary

// Vocabulary kinds correspond to the target fields that carry controlled values.
const (
	KindCategory    = "category"
	KindSubtype     = "subtype"
	KindEquipment   = "equipment"
	KindServiceMode = "service_mode"
)

// Entry is a canonical value with the aliases it is known by.
type Entry struct {
	Canonical string   `mapstructure:"canonical" json:"canonical"`
	Aliases   []string `mapstructure:"aliases" json:"aliases,omitempty"`
}

// Defaults returns the built-in vocabularies.
func Defaults() map[string][]Entry {
	return map[string][]Entry{
		KindCategory: {
			{Canonical: "El-Kontroll", Aliases: []string{"elektrisk kontroll", "electrical inspection", "el kontroll"}},
			{Canonical: "Brannalarm", Aliases: []string{"fire alarm", "brannvarsling"}},
			{Canonical: "Nødlys", Aliases: []string{"emergency lighting", "ledelys"}},
			{Canonical: "Sprinkler", Aliases: []string{"sprinkleranlegg", "sprinkler system"}},
			{Canonical: "Slukkeutstyr", Aliases: []string{"fire extinguishers", "brannslukking"}},
			{Canonical: "Ventilasjon", Aliases: []string{"ventilation", "hvac"}},
		},
		KindSubtype: {
			{Canonical: "Bolig", Aliases: []string{"residential", "privat"}},
			{Canonical: "Næring", Aliases: []string{"commercial", "bedrift", "naeringsbygg"}},
			{Canonical: "Landbruk", Aliases: []string{"agriculture", "gård", "gardsbruk"}},
			{Canonical: "Offentlig", Aliases: []string{"public", "kommune"}},
			{Canonical: "Industri", Aliases: []string{"industrial", "fabrikk"}},
		},
		KindEquipment: {
			{Canonical: "Brannslukker", Aliases: []string{"extinguisher", "pulverapparat", "skumapparat"}},
			{Canonical: "Røykvarsler", Aliases: []string{"smoke detector", "røykdetektor"}},
			{Canonical: "Brannslange", Aliases: []string{"fire hose", "husbrannslange"}},
			{Canonical: "Nødlysarmatur", Aliases: []string{"emergency light fixture"}},
			{Canonical: "Sentralapparat", Aliases: []string{"alarm panel", "brannsentral"}},
		},
		KindServiceMode: {
			{Canonical: "Årlig", Aliases: []string{"annual", "yearly", "1 gang i året"}},
			{Canonical: "Halvårlig", Aliases: []string{"semiannual", "biannual", "hvert halvår"}},
			{Canonical: "Kvartalsvis", Aliases: []string{"quarterly"}},
			{Canonical: "Månedlig", Aliases: []string{"monthly"}},
			{Canonical: "Ved behov", Aliases: []string{"on demand", "ad hoc", "etter avtale"}},
		},
	}
}
