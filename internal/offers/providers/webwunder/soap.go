package webwunder

import (
	"encoding/xml"
)

const (
	soapEnvNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	offerNamespace   = "http://webwunder.gendev7.check24.fun/offerservice"
)

type requestEnvelope struct {
	XMLName xml.Name    `xml:"soapenv:Envelope"`
	SoapEnv string      `xml:"xmlns:soapenv,attr"`
	GS      string      `xml:"xmlns:gs,attr"`
	Header  struct{}    `xml:"soapenv:Header"`
	Body    requestBody `xml:"soapenv:Body"`
}

type requestBody struct {
	Request legacyGetInternetOffers `xml:"gs:legacyGetInternetOffers"`
}

type legacyGetInternetOffers struct {
	Input offersInput `xml:"gs:input"`
}

type offersInput struct {
	Installation   bool         `xml:"gs:installation"`
	ConnectionEnum string       `xml:"gs:connectionEnum"`
	Address        inputAddress `xml:"gs:address"`
}

type inputAddress struct {
	Street      string `xml:"gs:street"`
	HouseNumber string `xml:"gs:houseNumber"`
	City        string `xml:"gs:city"`
	PLZ         string `xml:"gs:plz"`
	CountryCode string `xml:"gs:countryCode"`
}

// Response elements are matched by local name so that whatever prefix the
// server binds to the offer namespace is accepted.
type responseEnvelope struct {
	Body struct {
		Response *struct {
			Outputs []output `xml:"output"`
		} `xml:"legacyGetInternetOffersResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type output struct {
	ProductID    string `xml:"productId"`
	ID           string `xml:"id"`
	ProviderName string `xml:"providerName"`
	Title        string `xml:"title"`

	ProductInfo *struct {
		Speed                    string `xml:"speed"`
		ContractDurationInMonths string `xml:"contractDurationInMonths"`
		ConnectionType           string `xml:"connectionType"`
		TV                       string `xml:"tv"`
		LimitFrom                string `xml:"limitFrom"`
		MaxAge                   string `xml:"maxAge"`
	} `xml:"productInfo"`
	PricingDetails *struct {
		MonthlyCostInCent   string `xml:"monthlyCostInCent"`
		InstallationService string `xml:"installationService"`
	} `xml:"pricingDetails"`
	Voucher *struct {
		Percentage        string `xml:"percentage"`
		MaxDiscountInCent string `xml:"maxDiscountInCent"`
		DiscountInCent    string `xml:"discountInCent"`
		MinOrderValue     string `xml:"minOrderValue"`
	} `xml:"voucher"`

	// Flat layout used by older service versions.
	Speed             string `xml:"speed"`
	MonthlyCostInCent string `xml:"monthlyCostInCent"`
	DurationInMonths  string `xml:"durationInMonths"`
	ConnectionType    string `xml:"connectionType"`
	TV                string `xml:"tv"`
	VoucherType       string `xml:"voucherType"`
}

func newRequestEnvelope(in offersInput) requestEnvelope {
	return requestEnvelope{
		SoapEnv: soapEnvNamespace,
		GS:      offerNamespace,
		Body:    requestBody{Request: legacyGetInternetOffers{Input: in}},
	}
}
