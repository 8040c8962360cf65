package mapping

import "github.com/rpattn/custimport/internal/domain"

// synonyms lists the header labels recognised for each target field, Norwegian first.
var synonyms = map[domain.Field][]string{
	domain.FieldName: {
		"navn", "kundenavn", "firmanavn", "firma", "bedrift", "kunde",
		"name", "customer name", "customer", "company", "company name",
	},
	domain.FieldOrgNumber: {
		"orgnr", "org nr", "org.nr", "organisasjonsnummer", "orgnummer", "foretaksnummer",
		"org number", "organization number", "organisation number",
	},
	domain.FieldAddress: {
		"adresse", "gateadresse", "besøksadresse", "gate",
		"address", "street", "street address", "addr",
	},
	domain.FieldPostalCode: {
		"postnr", "postnummer", "post nr",
		"zip", "zip code", "postal code", "postcode",
	},
	domain.FieldCity: {
		"poststed", "sted", "by",
		"city", "town",
	},
	domain.FieldContactPerson: {
		"kontaktperson", "kontakt",
		"contact", "contact person", "contact name",
	},
	domain.FieldEmail: {
		"e-post", "epost", "e-postadresse",
		"email", "e-mail", "mail", "email address",
	},
	domain.FieldPhone: {
		"telefon", "tlf", "mobil", "telefonnummer", "mobilnummer",
		"phone", "mobile", "phone number", "tel",
	},
	domain.FieldCategory: {
		"kategori", "tjeneste", "tjenestetype",
		"category", "service type",
	},
	domain.FieldSubtype: {
		"type", "undertype", "kundetype", "segment",
		"subtype", "customer type",
	},
	domain.FieldEquipment: {
		"utstyr", "anlegg", "utstyrstype",
		"equipment",
	},
	domain.FieldServiceMode: {
		"intervall", "serviceintervall", "frekvens", "kontrollintervall",
		"service interval", "frequency", "service mode",
	},
	domain.FieldLastServiceDate: {
		"sist kontrollert", "siste service", "siste kontroll", "forrige kontroll",
		"last service", "last service date", "last inspection",
	},
	domain.FieldNextServiceDate: {
		"neste kontroll", "neste service", "neste besøk",
		"next service", "next service date", "next inspection",
	},
	domain.FieldExternalRef: {
		"kundenr", "kundenummer", "referanse", "ref", "id",
		"customer number", "customer id", "external id", "external ref",
	},
	domain.FieldNotes: {
		"notater", "notat", "merknad", "kommentar", "beskrivelse",
		"notes", "note", "comment", "comments",
	},
}
