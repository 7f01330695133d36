package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/booking"
	"github.com/MikeMC777/storefront/internal/cart"
	"github.com/MikeMC777/storefront/internal/catalog"
	"github.com/MikeMC777/storefront/internal/checkout"
	"github.com/MikeMC777/storefront/internal/config"
	"github.com/MikeMC777/storefront/internal/events"
	"github.com/MikeMC777/storefront/internal/feedback"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/ratelimit"
	"github.com/MikeMC777/storefront/internal/user"
)

//
// ===== recording publisher =====
//

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, string(e.Type))
	}
	return out
}

//
// ===== fixture: the real router over in-memory backends =====
//

var knownUser = "6f1c2a3e-8d4b-4c55-9a3e-2f7d1b0c9e11"

type fixture struct {
	r          *gin.Engine
	sid        string
	pub        *recorder
	margherita int64
	calzone    int64
}

func newFixture(t *testing.T, checkoutLimit int) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cat := catalog.NewMemStore()
	pizzas := &catalog.Category{Name: "Pizzas"}
	if err := cat.CreateCategory(ctx, pizzas); err != nil {
		t.Fatalf("category: %v", err)
	}
	m := &catalog.Item{Name: "Margherita", Price: decimal.RequireFromString("20.00"), CategoryID: pizzas.ID}
	c := &catalog.Item{Name: "Calzone", Price: decimal.RequireFromString("15.00"), CategoryID: pizzas.ID}
	for _, it := range []*catalog.Item{m, c} {
		if err := cat.CreateItem(ctx, it); err != nil {
			t.Fatalf("item: %v", err)
		}
	}
	now := time.Now()
	if err := cat.CreateOffer(ctx, &catalog.Offer{
		Title:           "Margherita Monday",
		DiscountPercent: decimal.NewFromInt(25),
		ItemIDs:         []int64{m.ID},
		StartDate:       now.Add(-24 * time.Hour),
		EndDate:         now.Add(24 * time.Hour),
		IsActive:        true,
	}); err != nil {
		t.Fatalf("offer: %v", err)
	}

	st := stores{
		catalog:  cat,
		orders:   order.NewMemStore(),
		users:    user.NewMemRepo(user.User{ID: knownUser, Username: "ana"}),
		bookings: booking.NewMemRepo(),
		feedback: feedback.NewMemRepo(),
	}
	cfg := config.Config{Location: time.UTC, CheckoutMaxAttempts: 5, CartTTL: time.Hour}
	pub := &recorder{}
	a := newApp(cfg, st, cart.NewMemStore(), ratelimit.NewMemFixedWindow(checkoutLimit, time.Minute), pub, zerolog.Nop())
	return &fixture{r: newRouter(a), sid: uuid.NewString(), pub: pub, margherita: m.ID, calzone: c.ID}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: f.sid})
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json: %v body=%s", err, w.Body.String())
	}
	return v
}

func validCheckout() CheckoutRequest {
	return CheckoutRequest{
		Name:            "Ana Perez",
		Email:           "ana@example.com",
		Phone:           "(555) 123-4567",
		DeliveryAddress: "Calle 10 #4-20",
	}
}

//
// ===== TESTS =====
//

func TestHealthz(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	w := f.do(http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestMenu_PricesWithBestOffer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)

	w := f.do(http.MethodGet, "/menu?category=pizzas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[MenuResponse](t, w)
	if resp.Category != "pizzas" || resp.Limit != defaultLimit || len(resp.Items) != 2 {
		t.Fatalf("unexpected menu: %+v", resp)
	}
	for _, it := range resp.Items {
		switch it.ID {
		case f.margherita:
			if it.Price != "20.00" || it.FinalPrice != "15.00" || it.OfferTitle != "Margherita Monday" {
				t.Fatalf("margherita not discounted: %+v", it)
			}
		case f.calzone:
			if it.Price != "15.00" || it.FinalPrice != "15.00" || it.OfferID != nil {
				t.Fatalf("calzone should be full price: %+v", it)
			}
		}
	}

	w = f.do(http.MethodGet, fmt.Sprintf("/menu/%d", f.margherita), nil)
	if w.Code != http.StatusOK || decode[MenuItem](t, w).FinalPrice != "15.00" {
		t.Fatalf("item detail status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestMenu_BadParams(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	cases := map[string]int{
		"/menu?category=desserts": http.StatusNotFound,
		"/menu?limit=abc":         http.StatusBadRequest,
		"/menu?offset=-1":         http.StatusBadRequest,
		"/menu/abc":               http.StatusBadRequest,
		"/menu/999":               http.StatusNotFound,
	}
	for path, want := range cases {
		if w := f.do(http.MethodGet, path, nil); w.Code != want {
			t.Fatalf("%s: status=%d want=%d body=%s", path, w.Code, want, w.Body.String())
		}
	}
}

func TestCategoriesAndOffers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)

	w := f.do(http.MethodGet, "/categories", nil)
	cats := decode[[]catalog.Category](t, w)
	if w.Code != http.StatusOK || len(cats) != 1 || cats[0].Slug != "pizzas" {
		t.Fatalf("categories status=%d body=%s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodGet, "/offers", nil)
	offers := decode[[]OfferView](t, w)
	if w.Code != http.StatusOK || len(offers) != 1 || offers[0].DiscountPercent != "25.00" {
		t.Fatalf("offers status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCart_Flow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	itemPath := fmt.Sprintf("/cart/items/%d", f.margherita)

	f.do(http.MethodPost, itemPath, nil)
	w := f.do(http.MethodPost, itemPath, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("add status=%d body=%s", w.Code, w.Body.String())
	}
	view := decode[CartView](t, w)
	if view.Count != 2 || view.FinalTotal != "30.00" || view.DiscountAmount != "10.00" {
		t.Fatalf("after add: %+v", view)
	}

	w = f.do(http.MethodPut, itemPath, gin.H{"quantity": 3})
	if view = decode[CartView](t, w); w.Code != http.StatusOK || view.Count != 3 {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}

	if w = f.do(http.MethodPut, fmt.Sprintf("/cart/items/%d", f.calzone), gin.H{"quantity": 1}); w.Code != http.StatusNotFound {
		t.Fatalf("update absent item: status=%d", w.Code)
	}
	if w = f.do(http.MethodPut, itemPath, gin.H{"quantity": -1}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative quantity: status=%d", w.Code)
	}
	if w = f.do(http.MethodPut, itemPath, gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing quantity: status=%d", w.Code)
	}
	if w = f.do(http.MethodPost, "/cart/items/999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item: status=%d", w.Code)
	}

	w = f.do(http.MethodDelete, itemPath, nil)
	if view = decode[CartView](t, w); w.Code != http.StatusOK || view.Count != 0 || view.FinalTotal != "0.00" {
		t.Fatalf("remove status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCart_IsPerSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	f.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", f.calzone), nil)

	other := *f
	other.sid = uuid.NewString()
	if view := decode[CartView](t, other.do(http.MethodGet, "/cart", nil)); view.Count != 0 {
		t.Fatalf("other session sees cart: %+v", view)
	}
	if view := decode[CartView](t, f.do(http.MethodGet, "/cart", nil)); view.Count != 1 {
		t.Fatalf("own cart lost: %+v", view)
	}
}

func placeOrder(t *testing.T, f *fixture, req CheckoutRequest) OrderView {
	t.Helper()
	f.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", f.margherita), nil)
	f.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", f.calzone), nil)
	w := f.do(http.MethodPost, "/checkout", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout status=%d body=%s", w.Code, w.Body.String())
	}
	return decode[OrderView](t, w)
}

func TestCheckout_CreatesOrderAndClearsCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	o := placeOrder(t, f, validCheckout())

	if !strings.HasPrefix(o.OrderNumber, "ORD") || len(o.OrderNumber) != 15 {
		t.Fatalf("order number: %q", o.OrderNumber)
	}
	if o.OriginalTotal != "35.00" || o.DiscountAmount != "5.00" || o.FinalTotal != "30.00" || len(o.Items) != 2 {
		t.Fatalf("totals: %+v", o)
	}
	if o.Status != "pending" || o.PaymentStatus != "pending" || o.CustomerPhone != "(555) 123-4567" {
		t.Fatalf("order fields: %+v", o)
	}

	if view := decode[CartView](t, f.do(http.MethodGet, "/cart", nil)); view.Count != 0 {
		t.Fatalf("cart not cleared: %+v", view)
	}
	w := f.do(http.MethodGet, "/orders/"+o.OrderNumber, nil)
	if w.Code != http.StatusOK || decode[OrderView](t, w).FinalTotal != "30.00" {
		t.Fatalf("get order status=%d body=%s", w.Code, w.Body.String())
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != string(events.OrderPlaced) {
		t.Fatalf("events: %v", got)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	if w := f.do(http.MethodPost, "/checkout", validCheckout()); w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCheckout_FieldErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	f.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", f.calzone), nil)

	req := validCheckout()
	req.Email = "not-an-email"
	req.Phone = "123"
	w := f.do(http.MethodPost, "/checkout", req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[ValidationErrorResponse](t, w)
	if resp.Fields["email"] == "" || resp.Fields["phone"] == "" {
		t.Fatalf("fields: %+v", resp.Fields)
	}
	if view := decode[CartView](t, f.do(http.MethodGet, "/cart", nil)); view.Count != 1 {
		t.Fatalf("cart touched by failed checkout: %+v", view)
	}

	if w = f.do(http.MethodPost, "/checkout", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty body: status=%d", w.Code)
	}
}

func TestCheckout_RateLimited(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	f.do(http.MethodPost, "/checkout", validCheckout())
	if w := f.do(http.MethodPost, "/checkout", validCheckout()); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCart_QuantityCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	itemPath := fmt.Sprintf("/cart/items/%d", f.margherita)
	f.do(http.MethodPost, itemPath, nil)

	for _, q := range []any{3000000000, 100, -1} {
		if w := f.do(http.MethodPut, itemPath, gin.H{"quantity": q}); w.Code != http.StatusBadRequest {
			t.Fatalf("quantity %v: status=%d body=%s", q, w.Code, w.Body.String())
		}
	}
	if v := decode[CartView](t, f.do(http.MethodGet, "/cart", nil)); v.Count != 1 {
		t.Fatalf("rejected update changed the cart: %+v", v)
	}

	if w := f.do(http.MethodPut, itemPath, gin.H{"quantity": 99}); w.Code != http.StatusOK || decode[CartView](t, w).Count != 99 {
		t.Fatalf("quantity 99: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPost, itemPath, nil); w.Code != http.StatusConflict {
		t.Fatalf("add past cap: status=%d body=%s", w.Code, w.Body.String())
	}
	if v := decode[CartView](t, f.do(http.MethodGet, "/cart", nil)); v.Count != 99 {
		t.Fatalf("count=%d, want 99", v.Count)
	}
}

func TestCheckout_ZeroRateLimitDisablesLimiter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		f.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", f.calzone), nil)
		if w := f.do(http.MethodPost, "/checkout", validCheckout()); w.Code != http.StatusCreated {
			t.Fatalf("checkout %d: status=%d body=%s", i+1, w.Code, w.Body.String())
		}
	}
}

func TestOrderStatusWorkflow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	o := placeOrder(t, f, validCheckout())
	base := "/orders/" + o.OrderNumber

	w := f.do(http.MethodPut, base+"/status", StatusRequest{Status: "confirmed"})
	if w.Code != http.StatusOK || decode[OrderView](t, w).Status != "confirmed" {
		t.Fatalf("confirm status=%d body=%s", w.Code, w.Body.String())
	}
	if w = f.do(http.MethodPut, base+"/status", StatusRequest{Status: "pending"}); w.Code != http.StatusConflict {
		t.Fatalf("backwards transition: status=%d", w.Code)
	}
	if w = f.do(http.MethodPut, base+"/status", StatusRequest{Status: "teleported"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: status=%d", w.Code)
	}
	if w = f.do(http.MethodPut, "/orders/ORD209901010001/status", StatusRequest{Status: "confirmed"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown order: status=%d", w.Code)
	}

	w = f.do(http.MethodPut, base+"/payment-status", PaymentStatusRequest{PaymentStatus: "paid"})
	if w.Code != http.StatusOK || decode[OrderView](t, w).PaymentStatus != "paid" {
		t.Fatalf("pay status=%d body=%s", w.Code, w.Body.String())
	}
	if w = f.do(http.MethodPut, base+"/payment-status", PaymentStatusRequest{PaymentStatus: "failed"}); w.Code != http.StatusConflict {
		t.Fatalf("paid -> failed: status=%d", w.Code)
	}

	got := f.pub.types()
	want := []string{string(events.OrderPlaced), string(events.OrderStatusChanged), string(events.OrderStatusChanged)}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v want=%v", got, want)
	}
}

func TestListUserOrders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	req := validCheckout()
	req.UserID = &knownUser
	o := placeOrder(t, f, req)

	w := f.do(http.MethodGet, "/orders/user/"+knownUser, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	list := decode[OrderListResponse](t, w)
	if len(list.Orders) != 1 || list.Orders[0].OrderNumber != o.OrderNumber {
		t.Fatalf("history: %+v", list)
	}

	if w = f.do(http.MethodGet, "/orders/user/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad user id: status=%d", w.Code)
	}

	stranger := uuid.NewString()
	req.UserID = &stranger
	f.do(http.MethodPost, fmt.Sprintf("/cart/items/%d", f.calzone), nil)
	w = f.do(http.MethodPost, "/checkout", req)
	if w.Code != http.StatusBadRequest || decode[ValidationErrorResponse](t, w).Fields["user_id"] == "" {
		t.Fatalf("unknown user: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestBookingsAndFeedback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	w := f.do(http.MethodPost, "/bookings", booking.Request{
		Name: "Ana", Phone: "5551234567", Email: "ana@example.com", PartySize: 4, Date: tomorrow,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("booking status=%d body=%s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodPost, "/bookings", booking.Request{Name: "Ana", Phone: "555", Email: "ana", PartySize: 0, Date: tomorrow})
	if w.Code != http.StatusBadRequest || len(decode[ValidationErrorResponse](t, w).Fields) < 3 {
		t.Fatalf("bad booking status=%d body=%s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodPost, "/feedback", feedback.Request{Name: "Ana", Email: "ana@example.com", Rating: 5, Message: "Great pasta"})
	if w.Code != http.StatusCreated {
		t.Fatalf("feedback status=%d body=%s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodGet, "/feedback", nil)
	if list := decode[[]feedback.Feedback](t, w); w.Code != http.StatusOK || len(list) != 1 || list[0].Rating != 5 {
		t.Fatalf("list feedback status=%d body=%s", w.Code, w.Body.String())
	}
}

//
// ===== checkout handler in isolation: error mapping =====
//

type stubCheckout struct{ err error }

func (s stubCheckout) Checkout(context.Context, string, order.Customer) (*order.Order, error) {
	return nil, s.err
}

func TestCheckoutHandler_ErrorMapping(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{checkout.ErrOrderNumberCollision, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: %w", checkout.ErrPersistence, errors.New("db down")), http.StatusServiceUnavailable},
		{checkout.ErrEmptyCart, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := gin.New()
		r.POST("/checkout", checkoutHandler(stubCheckout{err: tc.err}))
		w := httptest.NewRecorder()
		body, _ := json.Marshal(validCheckout())
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(body)))
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want=%d body=%s", tc.err, w.Code, tc.want, w.Body.String())
		}
		if tc.want == http.StatusServiceUnavailable && strings.Contains(w.Body.String(), "db down") {
			t.Fatalf("internal detail leaked: %s", w.Body.String())
		}
	}
}
