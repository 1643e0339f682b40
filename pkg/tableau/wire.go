package tableau

import "encoding/xml"

// Request and response bodies follow the tsRequest/tsResponse envelope the
// REST API defines. Responses arrive in the http://tableau.com/api namespace;
// encoding/xml matches elements by local name, so the structs below stay
// namespace-agnostic.

type signInRequest struct {
	XMLName     xml.Name          `xml:"tsRequest"`
	Credentials signInCredentials `xml:"credentials"`
}

type signInCredentials struct {
	Name     string    `xml:"name,attr"`
	Password string    `xml:"password,attr"`
	Site     siteByURL `xml:"site"`
}

type switchSiteRequest struct {
	XMLName xml.Name  `xml:"tsRequest"`
	Site    siteByURL `xml:"site"`
}

// siteByURL addresses a site by content URL. An empty contentUrl selects the
// default site, so the attribute is emitted even when blank.
type siteByURL struct {
	ContentURL string `xml:"contentUrl,attr"`
}

type updateSiteRequest struct {
	XMLName xml.Name       `xml:"tsRequest"`
	Site    siteEncryption `xml:"site"`
}

type siteEncryption struct {
	ExtractEncryptionMode string `xml:"extractEncryptionMode,attr"`
}

type tsResponse struct {
	XMLName     xml.Name        `xml:"tsResponse"`
	Error       *errorXML       `xml:"error"`
	Credentials *credentialsXML `xml:"credentials"`
	Pagination  *paginationXML  `xml:"pagination"`
	Sites       []siteXML       `xml:"sites>site"`
	Site        *siteXML        `xml:"site"`
	Groups      []groupXML      `xml:"groups>group"`
	Users       []userXML       `xml:"users>user"`
}

type errorXML struct {
	Code    string `xml:"code,attr"`
	Summary string `xml:"summary"`
	Detail  string `xml:"detail"`
}

type credentialsXML struct {
	Token string  `xml:"token,attr"`
	Site  siteXML `xml:"site"`
}

type paginationXML struct {
	PageNumber     int `xml:"pageNumber,attr"`
	PageSize       int `xml:"pageSize,attr"`
	TotalAvailable int `xml:"totalAvailable,attr"`
}

type siteXML struct {
	ID                    string `xml:"id,attr"`
	Name                  string `xml:"name,attr"`
	ContentURL            string `xml:"contentUrl,attr"`
	ExtractEncryptionMode string `xml:"extractEncryptionMode,attr"`
}

func (s siteXML) toSite() Site {
	return Site{
		ID:             s.ID,
		Name:           s.Name,
		ContentURL:     s.ContentURL,
		EncryptionMode: EncryptionMode(s.ExtractEncryptionMode),
	}
}

type groupXML struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type userXML struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	SiteRole string `xml:"siteRole,attr"`
}
