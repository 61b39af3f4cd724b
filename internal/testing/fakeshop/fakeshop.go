// File: internal/testing/fakeshop/fakeshop.go

// Package fakeshop serves an in-process imitation of the nopCommerce demo shop:
// form login issuing a forms-auth cookie, a static asset for browser priming,
// an identity header, the AJAX add-to-cart endpoint and the shopping cart page.
// It is meant for tests only.
package fakeshop

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

const (
	DefaultCookieName = "NOPCOMMERCE.AUTH"
	DefaultIdentifier = "user@example.com"
	DefaultSecret     = "secret123"
	DefaultProductID  = 13
	DefaultProduct    = "Computing and Internet"
	PrimeAssetPath    = "/Themes/DefaultClean/Content/images/logo.png"
)

// 1x1 transparent PNG.
var logoPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

// Faults make the shop break its own contract so failure paths can be tested.
type Faults struct {
	// LoginStatus replaces the 302 of a successful login. The cookie is still set.
	LoginStatus int
	// OmitAuthCookie drops the Set-Cookie header from a successful login.
	OmitAuthCookie bool
	// RejectAddToCart answers add-to-cart with success=false.
	RejectAddToCart bool
	// IgnoreRemoval accepts cart updates without removing anything.
	IgnoreRemoval bool
	// HideAccount renders the identity header without the account element.
	HideAccount bool
}

// Line is a row of a customer's cart.
type Line struct {
	ID        int
	ProductID int
	Name      string
	Quantity  int
}

// Shop is a running fake shop.
type Shop struct {
	*httptest.Server
	CookieName string

	mu       sync.Mutex
	faults   Faults
	accounts map[string]string
	products map[int]string
	sessions map[string]string
	carts    map[string][]Line
	nextLine int

	logins     atomic.Int32
	removeForm atomic.Value
}

// Option customizes a Shop.
type Option func(*Shop)

// WithAccount registers an additional customer.
func WithAccount(identifier, secret string) Option {
	return func(s *Shop) { s.accounts[identifier] = secret }
}

// WithProduct registers an additional catalog product.
func WithProduct(id int, name string) Option {
	return func(s *Shop) { s.products[id] = name }
}

// WithFaults sets the initial faults.
func WithFaults(f Faults) Option {
	return func(s *Shop) { s.faults = f }
}

// New starts a shop with the default account and product, and closes it when
// the test ends.
func New(t testing.TB, opts ...Option) *Shop {
	t.Helper()
	s := &Shop{
		CookieName: DefaultCookieName,
		accounts:   map[string]string{DefaultIdentifier: DefaultSecret},
		products:   map[int]string{DefaultProductID: DefaultProduct},
		sessions:   make(map[string]string),
		carts:      make(map[string][]Line),
		nextLine:   4000,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET "+PrimeAssetPath, s.handleLogo)
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /addproducttocart/catalog/{productID}/{cartType}/{quantity}", s.handleAddToCart)
	mux.HandleFunc("GET /cart", s.handleCart)
	mux.HandleFunc("POST /cart", s.handleUpdateCart)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// SetFaults replaces the active faults.
func (s *Shop) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// Login mints a session ticket for identifier without going through the form.
func (s *Shop) Login(identifier string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newSessionLocked(identifier)
}

// Cart returns a copy of the customer's cart.
func (s *Shop) Cart(identifier string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.carts[identifier]...)
}

// SeedCart puts a product into the customer's cart and returns the new line ID.
func (s *Shop) SeedCart(identifier string, productID, quantity int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(identifier, productID, quantity)
}

// LoginCount is the number of POST /login requests served.
func (s *Shop) LoginCount() int { return int(s.logins.Load()) }

// LastRemoval returns the form fields of the most recent POST /cart.
func (s *Shop) LastRemoval() map[string][]string {
	v, _ := s.removeForm.Load().(map[string][]string)
	return v
}

func (s *Shop) newSessionLocked(identifier string) string {
	ticket := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	s.sessions[ticket] = identifier
	return ticket
}

func (s *Shop) addLocked(identifier string, productID, quantity int) int {
	for i, l := range s.carts[identifier] {
		if l.ProductID == productID {
			s.carts[identifier][i].Quantity += quantity
			return l.ID
		}
	}
	s.nextLine++
	s.carts[identifier] = append(s.carts[identifier], Line{
		ID:        s.nextLine,
		ProductID: productID,
		Name:      s.products[productID],
		Quantity:  quantity,
	})
	return s.nextLine
}

// customer resolves the authenticated identifier from the request cookie.
func (s *Shop) customer(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[c.Value]
	return id, ok
}

func (s *Shop) currentFaults() Faults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// -- Handlers --

func (s *Shop) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, loginTemplate, map[string]interface{}{"Error": ""})
}

func (s *Shop) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email, password := r.PostForm.Get("Email"), r.PostForm.Get("Password")

	s.mu.Lock()
	secret, known := s.accounts[email]
	valid := known && secret == password && password != ""
	var ticket string
	if valid {
		ticket = s.newSessionLocked(email)
	}
	faults := s.faults
	s.mu.Unlock()

	if !valid {
		// nopCommerce re-renders the form with 200 on bad credentials.
		s.render(w, r, loginTemplate, map[string]interface{}{
			"Error": "Login was unsuccessful. Please correct the errors and try again.",
		})
		return
	}

	if !faults.OmitAuthCookie {
		http.SetCookie(w, &http.Cookie{Name: s.CookieName, Value: ticket, Path: "/", HttpOnly: true})
	}
	status := http.StatusFound
	if faults.LoginStatus != 0 {
		status = faults.LoginStatus
	}
	w.Header().Set("Location", "/")
	w.WriteHeader(status)
}

func (s *Shop) handleLogo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(logoPNG)
}

func (s *Shop) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, homeTemplate, nil)
}

func (s *Shop) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	productID, err1 := strconv.Atoi(r.PathValue("productID"))
	quantity, err2 := strconv.Atoi(r.PathValue("quantity"))
	if err1 != nil || err2 != nil || quantity <= 0 {
		writeJSON(w, map[string]interface{}{"success": false, "message": "Invalid request"})
		return
	}

	identifier, ok := s.customer(r)
	if !ok {
		writeJSON(w, map[string]interface{}{"success": false, "message": "Your session has expired"})
		return
	}
	if s.currentFaults().RejectAddToCart {
		writeJSON(w, map[string]interface{}{"success": false, "message": "The product is out of stock"})
		return
	}

	s.mu.Lock()
	_, known := s.products[productID]
	var qty int
	if known {
		s.addLocked(identifier, productID, quantity)
		qty = totalQuantity(s.carts[identifier])
	}
	s.mu.Unlock()

	if !known {
		writeJSON(w, map[string]interface{}{"success": false, "message": "No product found with the specified ID"})
		return
	}
	writeJSON(w, map[string]interface{}{
		"success":                 true,
		"message":                 `The product has been added to your <a href="/cart">shopping cart</a>`,
		"updatetopcartsectionhtml": fmt.Sprintf("(%d)", qty),
	})
}

func (s *Shop) handleCart(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, cartTemplate, nil)
}

func (s *Shop) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(1 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.removeForm.Store(map[string][]string(r.PostForm))

	identifier, ok := s.customer(r)
	if ok && r.PostForm.Get("updatecart") != "" && !s.currentFaults().IgnoreRemoval {
		s.applyCartUpdate(identifier, r.PostForm)
	}
	s.render(w, r, cartTemplate, nil)
}

// applyCartUpdate removes checked rows and applies quantity edits; a quantity
// of zero removes the row as well.
func (s *Shop) applyCartUpdate(identifier string, form map[string][]string) {
	remove := make(map[int]bool)
	for _, v := range form["removefromcart"] {
		if id, err := strconv.Atoi(v); err == nil {
			remove[id] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.carts[identifier][:0]
	for _, l := range s.carts[identifier] {
		if q, ok := form[fmt.Sprintf("itemquantity%d", l.ID)]; ok && len(q) > 0 {
			if n, err := strconv.Atoi(q[0]); err == nil {
				l.Quantity = n
			}
		}
		if remove[l.ID] || l.Quantity <= 0 {
			continue
		}
		kept = append(kept, l)
	}
	s.carts[identifier] = kept
}

// -- Rendering --

type pageData struct {
	Customer    string
	ShowAccount bool
	CartQty     int
	Lines       []Line
	Data        map[string]interface{}
}

func (s *Shop) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data map[string]interface{}) {
	identifier, ok := s.customer(r)
	faults := s.currentFaults()

	page := pageData{Customer: identifier, ShowAccount: ok && !faults.HideAccount, Data: data}
	if ok {
		s.mu.Lock()
		page.Lines = append([]Line(nil), s.carts[identifier]...)
		s.mu.Unlock()
		sort.Slice(page.Lines, func(i, j int) bool { return page.Lines[i].ID < page.Lines[j].ID })
		page.CartQty = totalQuantity(page.Lines)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func totalQuantity(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
