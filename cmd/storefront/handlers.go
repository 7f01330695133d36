package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MikeMC777/storefront/internal/booking"
	"github.com/MikeMC777/storefront/internal/cart"
	"github.com/MikeMC777/storefront/internal/catalog"
	"github.com/MikeMC777/storefront/internal/checkout"
	"github.com/MikeMC777/storefront/internal/events"
	"github.com/MikeMC777/storefront/internal/feedback"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/offer"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/pricing"
	"github.com/MikeMC777/storefront/internal/validation"
)

type priceResolver interface {
	ResolvePrice(ctx context.Context, it *catalog.Item, at time.Time) (offer.Resolution, error)
}

type cartPricer interface {
	PriceCart(ctx context.Context, lines []cart.Line, at time.Time) (pricing.Quote, error)
}

type checkoutService interface {
	Checkout(ctx context.Context, sessionID string, c order.Customer) (*order.Order, error)
}

type orderBook interface {
	GetByNumber(ctx context.Context, number string) (*order.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error)
	UpdateStatus(ctx context.Context, number string, to order.Status, now time.Time) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, number string, to order.PaymentStatus, now time.Time) (*order.Order, error)
}

type bookingService interface {
	Book(ctx context.Context, req booking.Request) (*booking.Booking, error)
}

type feedbackService interface {
	Submit(ctx context.Context, req feedback.Request) (*feedback.Feedback, error)
	List(ctx context.Context, limit, offset int) ([]feedback.Feedback, error)
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// pageParams reads limit/offset with defaults; out of range limits are clamped.
func pageParams(c *gin.Context) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	return limit, offset, nil
}

func itemIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid item id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors to status codes. Anything unknown is a 500 and gets logged.
func respondError(c *gin.Context, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusConflict, HTTPError{Error: err.Error()})
	case errors.Is(err, checkout.ErrOrderNumberCollision):
		c.JSON(http.StatusServiceUnavailable, HTTPError{Error: err.Error()})
	case errors.Is(err, checkout.ErrPersistence):
		log.Error().Err(err).Str("rid", httpx.RequestIDFrom(c)).Msg("[http] persistence failure")
		c.JSON(http.StatusServiceUnavailable, HTTPError{Error: checkout.ErrPersistence.Error()})
	case errors.Is(err, order.ErrNotFound), errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound), errors.Is(err, cart.ErrNotInCart):
		c.JSON(http.StatusNotFound, HTTPError{Error: err.Error()})
	case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrConflict),
		errors.Is(err, cart.ErrQuantityLimit):
		c.JSON(http.StatusConflict, HTTPError{Error: err.Error()})
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, HTTPError{Error: err.Error()})
	default:
		log.Error().Err(err).Str("rid", httpx.RequestIDFrom(c)).Str("path", c.FullPath()).Msg("[http] unexpected error")
		c.JSON(http.StatusInternalServerError, HTTPError{Error: "internal error"})
	}
}

// healthHandler godoc
// @Summary      Liveness
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listMenuHandler godoc
// @Summary      Menu with current prices
// @Tags         catalog
// @Produce      json
// @Param        category  query     string  false  "category slug"
// @Param        q         query     string  false  "search by name or description"
// @Param        limit     query     int     false  "page size (default 20, max 100)"
// @Param        offset    query     int     false  "offset"
// @Success      200  {object}  MenuResponse
// @Failure      400  {object}  HTTPError
// @Failure      404  {object}  HTTPError
// @Router       /menu [get]
func listMenuHandler(repo catalog.Repository, prices priceResolver, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, err := pageParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: err.Error()})
			return
		}
		ctx := c.Request.Context()
		q := catalog.Query{Q: strings.TrimSpace(c.Query("q")), Limit: limit, Offset: offset}
		slug := strings.TrimSpace(c.Query("category"))
		if slug != "" {
			cat, err := repo.GetCategoryBySlug(ctx, slug)
			if err != nil {
				respondError(c, err)
				return
			}
			q.CategoryID = cat.ID
		}

		items, err := repo.ListItems(ctx, q)
		if err != nil {
			respondError(c, err)
			return
		}
		now := clock()
		out := make([]MenuItem, 0, len(items))
		for i := range items {
			res, err := prices.ResolvePrice(ctx, &items[i], now)
			if err != nil {
				respondError(c, err)
				return
			}
			out = append(out, toMenuItem(items[i], res))
		}
		c.JSON(http.StatusOK, MenuResponse{Category: slug, Q: q.Q, Limit: limit, Offset: offset, Items: out})
	}
}

// getMenuItemHandler godoc
// @Summary      One menu item with its current price
// @Tags         catalog
// @Produce      json
// @Param        item_id  path      int  true  "item id"
// @Success      200  {object}  MenuItem
// @Failure      400  {object}  HTTPError
// @Failure      404  {object}  HTTPError
// @Router       /menu/{item_id} [get]
func getMenuItemHandler(items catalog.Reader, prices priceResolver, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemIDParam(c)
		if !ok {
			return
		}
		it, err := items.GetItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		res, err := prices.ResolvePrice(c.Request.Context(), it, clock())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toMenuItem(*it, res))
	}
}

// listCategoriesHandler godoc
// @Summary      Categories
// @Tags         catalog
// @Produce      json
// @Success      200  {array}  catalog.Category
// @Router       /categories [get]
func listCategoriesHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := repo.ListCategories(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if cats == nil {
			cats = []catalog.Category{}
		}
		c.JSON(http.StatusOK, cats)
	}
}

// listOffersHandler godoc
// @Summary      Offers active right now
// @Tags         catalog
// @Produce      json
// @Success      200  {array}  OfferView
// @Router       /offers [get]
func listOffersHandler(repo catalog.Repository, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := repo.ListOffers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		active := offer.Active(all, clock())
		out := make([]OfferView, 0, len(active))
		for _, o := range active {
			out = append(out, toOfferView(o))
		}
		c.JSON(http.StatusOK, out)
	}
}

// writeCart prices the cart and writes it as the response body.
func writeCart(c *gin.Context, crt *cart.Cart, pricer cartPricer, now time.Time) {
	q, err := pricer.PriceCart(c.Request.Context(), crt.Snapshot(), now)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartView(q))
}

// viewCartHandler godoc
// @Summary      Priced session cart
// @Tags         cart
// @Produce      json
// @Success      200  {object}  CartView
// @Router       /cart [get]
func viewCartHandler(carts cart.Store, pricer cartPricer, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		crt, err := carts.Load(c.Request.Context(), httpx.SessionID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		writeCart(c, crt, pricer, clock())
	}
}

// addToCartHandler godoc
// @Summary      Add one unit of an item to the cart
// @Tags         cart
// @Produce      json
// @Param        item_id  path      int  true  "item id"
// @Success      200  {object}  CartView
// @Failure      400  {object}  HTTPError
// @Failure      404  {object}  HTTPError
// @Failure      409  {object}  HTTPError
// @Router       /cart/items/{item_id} [post]
func addToCartHandler(carts cart.Store, items catalog.Reader, pricer cartPricer, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemIDParam(c)
		if !ok {
			return
		}
		ctx, sid := c.Request.Context(), httpx.SessionID(c)
		if _, err := items.GetItem(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		crt, err := carts.Load(ctx, sid)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := crt.Add(id); err != nil {
			respondError(c, err)
			return
		}
		if err := carts.Save(ctx, sid, crt); err != nil {
			respondError(c, err)
			return
		}
		writeCart(c, crt, pricer, clock())
	}
}

// updateCartHandler godoc
// @Summary      Set the quantity of an item in the cart (0 removes it)
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        item_id  path      int              true  "item id"
// @Param        payload  body      QuantityRequest  true  "new quantity"
// @Success      200  {object}  CartView
// @Failure      400  {object}  HTTPError
// @Failure      404  {object}  HTTPError
// @Router       /cart/items/{item_id} [put]
func updateCartHandler(carts cart.Store, pricer cartPricer, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemIDParam(c)
		if !ok {
			return
		}
		var req QuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid body"})
			return
		}
		ctx, sid := c.Request.Context(), httpx.SessionID(c)
		crt, err := carts.Load(ctx, sid)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := crt.SetQuantity(id, *req.Quantity); err != nil {
			respondError(c, err)
			return
		}
		if err := carts.Save(ctx, sid, crt); err != nil {
			respondError(c, err)
			return
		}
		writeCart(c, crt, pricer, clock())
	}
}

// removeFromCartHandler godoc
// @Summary      Remove an item from the cart
// @Tags         cart
// @Produce      json
// @Param        item_id  path      int  true  "item id"
// @Success      200  {object}  CartView
// @Failure      400  {object}  HTTPError
// @Router       /cart/items/{item_id} [delete]
func removeFromCartHandler(carts cart.Store, pricer cartPricer, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemIDParam(c)
		if !ok {
			return
		}
		ctx, sid := c.Request.Context(), httpx.SessionID(c)
		crt, err := carts.Load(ctx, sid)
		if err != nil {
			respondError(c, err)
			return
		}
		crt.Remove(id)
		if err := carts.Save(ctx, sid, crt); err != nil {
			respondError(c, err)
			return
		}
		writeCart(c, crt, pricer, clock())
	}
}

// checkoutHandler godoc
// @Summary      Place an order from the session cart
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        payload  body      CheckoutRequest  true  "customer details"
// @Success      201  {object}  OrderView
// @Failure      400  {object}  ValidationErrorResponse
// @Failure      409  {object}  HTTPError
// @Failure      429  {object}  HTTPError
// @Failure      503  {object}  HTTPError
// @Router       /checkout [post]
func checkoutHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid body"})
			return
		}
		o, err := svc.Checkout(c.Request.Context(), httpx.SessionID(c), req.customer())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toOrderView(o))
	}
}

// getOrderHandler godoc
// @Summary      Order detail by number
// @Tags         orders
// @Produce      json
// @Param        number  path      string  true  "order number"
// @Success      200  {object}  OrderView
// @Failure      404  {object}  HTTPError
// @Router       /orders/{number} [get]
func getOrderHandler(orders orderBook) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := orders.GetByNumber(c.Request.Context(), c.Param("number"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderView(o))
	}
}

// listUserOrdersHandler godoc
// @Summary      Order history of a user, newest first
// @Tags         orders
// @Produce      json
// @Param        user_id  path      string  true   "user id (uuid)"
// @Param        limit    query     int     false  "page size"
// @Param        offset   query     int     false  "offset"
// @Success      200  {object}  OrderListResponse
// @Failure      400  {object}  HTTPError
// @Router       /orders/user/{user_id} [get]
func listUserOrdersHandler(orders orderBook) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if uuid.Validate(userID) != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid user id"})
			return
		}
		limit, offset, err := pageParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: err.Error()})
			return
		}
		list, err := orders.ListByUser(c.Request.Context(), userID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]OrderView, 0, len(list))
		for i := range list {
			out = append(out, toOrderView(&list[i]))
		}
		c.JSON(http.StatusOK, OrderListResponse{UserID: userID, Limit: limit, Offset: offset, Orders: out})
	}
}

func publishStatusChange(c *gin.Context, pub events.Publisher, o *order.Order, now time.Time) {
	err := pub.Publish(c.Request.Context(), events.Event{
		Type:        events.OrderStatusChanged,
		OrderNumber: o.OrderNumber,
		OccurredAt:  now,
		Payload: gin.H{
			"status":         o.Status,
			"payment_status": o.PaymentStatus,
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("order_number", o.OrderNumber).Msg("[http] publish order.status_changed")
	}
}

// updateOrderStatusHandler godoc
// @Summary      Move an order through its workflow
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        number   path      string         true  "order number"
// @Param        payload  body      StatusRequest  true  "target status"
// @Success      200  {object}  OrderView
// @Failure      400  {object}  ValidationErrorResponse
// @Failure      404  {object}  HTTPError
// @Failure      409  {object}  HTTPError
// @Router       /orders/{number}/status [put]
func updateOrderStatusHandler(orders orderBook, pub events.Publisher, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid body"})
			return
		}
		to := order.Status(strings.TrimSpace(req.Status))
		if !to.Valid() {
			respondError(c, validation.Field("status", "unknown status"))
			return
		}
		now := clock()
		o, err := orders.UpdateStatus(c.Request.Context(), c.Param("number"), to, now)
		if err != nil {
			respondError(c, err)
			return
		}
		publishStatusChange(c, pub, o, now)
		c.JSON(http.StatusOK, toOrderView(o))
	}
}

// updatePaymentStatusHandler godoc
// @Summary      Record a payment state change
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        number   path      string                true  "order number"
// @Param        payload  body      PaymentStatusRequest  true  "target payment status"
// @Success      200  {object}  OrderView
// @Failure      400  {object}  ValidationErrorResponse
// @Failure      404  {object}  HTTPError
// @Failure      409  {object}  HTTPError
// @Router       /orders/{number}/payment-status [put]
func updatePaymentStatusHandler(orders orderBook, pub events.Publisher, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid body"})
			return
		}
		to := order.PaymentStatus(strings.TrimSpace(req.PaymentStatus))
		if !to.Valid() {
			respondError(c, validation.Field("payment_status", "unknown payment status"))
			return
		}
		now := clock()
		o, err := orders.UpdatePaymentStatus(c.Request.Context(), c.Param("number"), to, now)
		if err != nil {
			respondError(c, err)
			return
		}
		publishStatusChange(c, pub, o, now)
		c.JSON(http.StatusOK, toOrderView(o))
	}
}

// createBookingHandler godoc
// @Summary      Book a table
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        payload  body      booking.Request  true  "booking form"
// @Success      201  {object}  booking.Booking
// @Failure      400  {object}  ValidationErrorResponse
// @Router       /bookings [post]
func createBookingHandler(svc bookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req booking.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid body"})
			return
		}
		b, err := svc.Book(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	}
}

// createFeedbackHandler godoc
// @Summary      Leave a review
// @Tags         feedback
// @Accept       json
// @Produce      json
// @Param        payload  body      feedback.Request  true  "feedback form"
// @Success      201  {object}  feedback.Feedback
// @Failure      400  {object}  ValidationErrorResponse
// @Router       /feedback [post]
func createFeedbackHandler(svc feedbackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req feedback.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: "invalid body"})
			return
		}
		f, err := svc.Submit(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, f)
	}
}

// listFeedbackHandler godoc
// @Summary      Reviews, newest first
// @Tags         feedback
// @Produce      json
// @Param        limit   query     int  false  "page size"
// @Param        offset  query     int  false  "offset"
// @Success      200  {array}  feedback.Feedback
// @Router       /feedback [get]
func listFeedbackHandler(svc feedbackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, err := pageParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, HTTPError{Error: err.Error()})
			return
		}
		list, err := svc.List(c.Request.Context(), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}
