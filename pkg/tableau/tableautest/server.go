// Package tableautest provides an in-memory Tableau Server stand-in for
// tests: a mutex-guarded site store behind a michi router that speaks the
// tsRequest/tsResponse XML wire format, with fault injection and per-endpoint
// call counters.
package tableautest

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-michi/michi"
	"github.com/tabadm/tabenc/pkg/tableau"
)

const xmlns = "http://tableau.com/api"

// Server simulates one Tableau Server instance. All exported fields are
// fault-injection switches; set them before issuing requests.
type Server struct {
	// FailSignIn rejects every sign-in with a 401.
	FailSignIn bool
	// FailSignOut makes sign-out return a 500 instead of 204.
	FailSignOut bool
	// FailSitesPage makes that page (1-based) of the sites listing fail.
	FailSitesPage int
	// FailUpdate makes updates of the listed site ids return a 500.
	FailUpdate map[string]bool

	mu        sync.Mutex
	sites     []tableau.Site
	groups    map[string][]tableau.Group
	users     map[string][]tableau.User
	creds     map[string]string
	tokens    map[string]string
	nextToken int
	calls     map[string]int

	httpServer *httptest.Server
}

// NewServer starts a mock server with the given credentials accepted for
// sign-in. Callers must Close it.
func NewServer(username, password string) *Server {
	s := &Server{
		FailUpdate: map[string]bool{},
		groups:     map[string][]tableau.Group{},
		users:      map[string][]tableau.User{},
		creds:      map[string]string{username: password},
		tokens:     map[string]string{},
		calls:      map[string]int{},
	}
	r := michi.NewRouter()
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/auth/signin", http.HandlerFunc(s.handleSignIn))
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/auth/switchSite", http.HandlerFunc(s.handleSwitchSite))
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/auth/signout", http.HandlerFunc(s.handleSignOut))
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/sites", http.HandlerFunc(s.handleSites))
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/sites/{id}", http.HandlerFunc(s.handleSite))
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/sites/{id}/groups", http.HandlerFunc(s.handleGroups))
	r.Handle("/api/"+tableau.DefaultAPIVersion+"/sites/{id}/groups/{gid}/users", http.HandlerFunc(s.handleGroupUsers))
	s.httpServer = httptest.NewServer(r)
	return s
}

// URL is the base address clients should be pointed at.
func (s *Server) URL() string {
	return s.httpServer.URL
}

func (s *Server) Close() {
	s.httpServer.Close()
}

// AddSite registers a site. The first site added acts as the default site
// for sign-ins with an empty content URL.
func (s *Server) AddSite(site tableau.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites = append(s.sites, site)
}

// AddGroup registers a group on a site.
func (s *Server) AddGroup(siteID string, group tableau.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[siteID] = append(s.groups[siteID], group)
}

// AddGroupUser registers a user as a member of a group.
func (s *Server) AddGroupUser(groupID string, user tableau.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[groupID] = append(s.users[groupID], user)
}

// Site returns the current state of a site by id.
func (s *Server) Site(id string) (tableau.Site, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, site := range s.sites {
		if site.ID == id {
			return site, true
		}
	}
	return tableau.Site{}, false
}

// CallCount reports how many requests hit an endpoint family: one of
// "signin", "switchSite", "signout", "sites", "getSite", "update", "groups",
// "users".
func (s *Server) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// TotalCalls reports how many requests the server received in total.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Server) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

func (s *Server) issueToken(siteID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextToken++
	token := fmt.Sprintf("token-%d", s.nextToken)
	s.tokens[token] = siteID
	return token
}

// authSiteID resolves the X-Tableau-Auth header to the site the token is
// scoped to.
func (s *Server) authSiteID(r *http.Request) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	siteID, ok := s.tokens[r.Header.Get("X-Tableau-Auth")]
	return siteID, ok
}

func (s *Server) siteByContentURL(contentURL string) (tableau.Site, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contentURL == "" && len(s.sites) > 0 {
		return s.sites[0], true
	}
	for _, site := range s.sites {
		if site.ContentURL == contentURL {
			return site, true
		}
	}
	return tableau.Site{}, false
}

func writeError(w http.ResponseWriter, status int, code, summary, detail string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<tsResponse xmlns=%q><error code=%q><summary>%s</summary><detail>%s</detail></error></tsResponse>`,
		xmlns, code, summary, detail)
}

func writeCredentials(w http.ResponseWriter, token string, site tableau.Site) {
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<tsResponse xmlns=%q><credentials token=%q><site id=%q contentUrl=%q/></credentials></tsResponse>`,
		xmlns, token, site.ID, site.ContentURL)
}

func siteElement(site tableau.Site) string {
	return fmt.Sprintf(`<site id=%q name=%q contentUrl=%q extractEncryptionMode=%q/>`,
		site.ID, site.Name, site.ContentURL, site.EncryptionMode)
}

type credentialsRequest struct {
	Credentials struct {
		Name     string `xml:"name,attr"`
		Password string `xml:"password,attr"`
		Site     struct {
			ContentURL string `xml:"contentUrl,attr"`
		} `xml:"site"`
	} `xml:"credentials"`
	Site struct {
		ContentURL            string `xml:"contentUrl,attr"`
		ExtractEncryptionMode string `xml:"extractEncryptionMode,attr"`
	} `xml:"site"`
}

func parseRequest(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}
	return req, xml.Unmarshal(body, &req)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.count("signin")
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "400000", "Bad Request", "malformed sign-in body")
		return
	}
	s.mu.Lock()
	password, known := s.creds[req.Credentials.Name]
	s.mu.Unlock()
	if s.FailSignIn || !known || password != req.Credentials.Password {
		writeError(w, http.StatusUnauthorized, "401001", "Signin Error", "Error signing in to Tableau Server")
		return
	}
	site, ok := s.siteByContentURL(req.Credentials.Site.ContentURL)
	if !ok {
		writeError(w, http.StatusNotFound, "404000", "Resource Not Found", "site not found")
		return
	}
	writeCredentials(w, s.issueToken(site.ID), site)
}

func (s *Server) handleSwitchSite(w http.ResponseWriter, r *http.Request) {
	s.count("switchSite")
	if _, ok := s.authSiteID(r); !ok {
		writeError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid authentication credentials")
		return
	}
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "400000", "Bad Request", "malformed switch-site body")
		return
	}
	site, ok := s.siteByContentURL(req.Site.ContentURL)
	if !ok {
		writeError(w, http.StatusNotFound, "404000", "Resource Not Found", "site not found")
		return
	}
	s.mu.Lock()
	delete(s.tokens, r.Header.Get("X-Tableau-Auth"))
	s.mu.Unlock()
	writeCredentials(w, s.issueToken(site.ID), site)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.count("signout")
	if _, ok := s.authSiteID(r); !ok {
		writeError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid authentication credentials")
		return
	}
	if s.FailSignOut {
		writeError(w, http.StatusInternalServerError, "500000", "Internal Server Error", "sign-out failed")
		return
	}
	s.mu.Lock()
	delete(s.tokens, r.Header.Get("X-Tableau-Auth"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// page slices a listing the way the REST API does and renders the
// pagination element.
func page(r *http.Request, total int) (lo, hi, pageNumber, pageSize int) {
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 {
		pageSize = tableau.DefaultPageSize
	}
	pageNumber, _ = strconv.Atoi(r.URL.Query().Get("pageNumber"))
	if pageNumber <= 0 {
		pageNumber = 1
	}
	lo = (pageNumber - 1) * pageSize
	hi = lo + pageSize
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	return lo, hi, pageNumber, pageSize
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	s.count("sites")
	if _, ok := s.authSiteID(r); !ok {
		writeError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid authentication credentials")
		return
	}
	s.mu.Lock()
	sites := append([]tableau.Site(nil), s.sites...)
	s.mu.Unlock()
	lo, hi, pageNumber, pageSize := page(r, len(sites))
	if s.FailSitesPage != 0 && pageNumber == s.FailSitesPage {
		writeError(w, http.StatusInternalServerError, "500000", "Internal Server Error", "listing failed")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<tsResponse xmlns=%q><pagination pageNumber="%d" pageSize="%d" totalAvailable="%d"/><sites>`,
		xmlns, pageNumber, pageSize, len(sites))
	for _, site := range sites[lo:hi] {
		io.WriteString(w, siteElement(site))
	}
	io.WriteString(w, `</sites></tsResponse>`)
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("id")
	tokenSite, ok := s.authSiteID(r)
	if !ok {
		s.count("getSite")
		writeError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid authentication credentials")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.count("getSite")
		site, ok := s.Site(siteID)
		if !ok {
			writeError(w, http.StatusNotFound, "404000", "Resource Not Found", "site not found")
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<tsResponse xmlns=%q>%s</tsResponse>`, xmlns, siteElement(site))
	case http.MethodPut:
		s.count("update")
		if tokenSite != siteID {
			writeError(w, http.StatusForbidden, "403004", "Forbidden", "the session is not scoped to this site")
			return
		}
		if s.FailUpdate[siteID] {
			writeError(w, http.StatusInternalServerError, "500000", "Internal Server Error", "update failed")
			return
		}
		req, err := parseRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "400000", "Bad Request", "malformed site body")
			return
		}
		mode, err := tableau.ParseEncryptionMode(req.Site.ExtractEncryptionMode)
		if err != nil {
			writeError(w, http.StatusBadRequest, "400066", "Invalid extract encryption mode", err.Error())
			return
		}
		s.mu.Lock()
		var updated tableau.Site
		for i := range s.sites {
			if s.sites[i].ID == siteID {
				s.sites[i].EncryptionMode = mode
				updated = s.sites[i]
			}
		}
		s.mu.Unlock()
		if updated.ID == "" {
			writeError(w, http.StatusNotFound, "404000", "Resource Not Found", "site not found")
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<tsResponse xmlns=%q>%s</tsResponse>`, xmlns, siteElement(updated))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.count("groups")
	if _, ok := s.authSiteID(r); !ok {
		writeError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid authentication credentials")
		return
	}
	s.mu.Lock()
	groups := append([]tableau.Group(nil), s.groups[r.PathValue("id")]...)
	s.mu.Unlock()
	lo, hi, pageNumber, pageSize := page(r, len(groups))
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<tsResponse xmlns=%q><pagination pageNumber="%d" pageSize="%d" totalAvailable="%d"/><groups>`,
		xmlns, pageNumber, pageSize, len(groups))
	for _, g := range groups[lo:hi] {
		fmt.Fprintf(w, `<group id=%q name=%q/>`, g.ID, g.Name)
	}
	io.WriteString(w, `</groups></tsResponse>`)
}

func (s *Server) handleGroupUsers(w http.ResponseWriter, r *http.Request) {
	s.count("users")
	if _, ok := s.authSiteID(r); !ok {
		writeError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid authentication credentials")
		return
	}
	s.mu.Lock()
	users := append([]tableau.User(nil), s.users[r.PathValue("gid")]...)
	s.mu.Unlock()
	lo, hi, pageNumber, pageSize := page(r, len(users))
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<tsResponse xmlns=%q><pagination pageNumber="%d" pageSize="%d" totalAvailable="%d"/><users>`,
		xmlns, pageNumber, pageSize, len(users))
	for _, u := range users[lo:hi] {
		fmt.Fprintf(w, `<user id=%q name=%q siteRole=%q/>`, u.ID, u.Name, u.SiteRole)
	}
	io.WriteString(w, `</users></tsResponse>`)
}
