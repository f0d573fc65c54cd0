package apiv1

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
	"ai-image-billing/internal/infra/logging"
	"ai-image-billing/internal/infra/web"
	"ai-image-billing/internal/usecase"
)

// createSessionRequest mirrors the product the client thinks it is buying.
// The use case checks every field against the server price table.
type createSessionRequest struct {
	ProductID   string `json:"product_id" validate:"required,max=64"`
	ProductName string `json:"product_name" validate:"required,max=200"`
	Amount      *int64 `json:"amount" validate:"required,gte=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	Interval    string `json:"interval" validate:"required,oneof=year month one-time"`
	Credits     int64  `json:"credits" validate:"gte=0"`
	ValidMonths int    `json:"valid_months" validate:"gte=0,lte=120"`
	CancelURL   string `json:"cancel_url,omitempty" validate:"omitempty,max=2048"`
	Locale      string `json:"locale,omitempty" validate:"omitempty,max=16"`
}

type createSessionResponse struct {
	CheckoutURL string         `json:"checkout_url"`
	OrderID     string         `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	Provider    model.Provider `json:"provider"`
	PublicKey   string         `json:"public_key,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSessionRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = acceptLanguage(r)
	}
	res, err := s.deps.Checkout.CreateSession(ctx, web.SessionUserFrom(ctx), usecase.CheckoutInput{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Interval:    model.Interval(req.Interval),
		Credits:     req.Credits,
		ValidMonths: req.ValidMonths,
		CancelURL:   req.CancelURL,
		Locale:      locale,
	})
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, createSessionResponse{
		CheckoutURL: res.CheckoutURL,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		Provider:    res.Provider,
		PublicKey:   res.PublicKey,
	})
}

// acceptLanguage returns the first language tag of the header, e.g. "zh-CN".
func acceptLanguage(r *http.Request) string {
	raw := r.Header.Get("Accept-Language")
	if raw == "" {
		return ""
	}
	first := strings.SplitN(raw, ",", 2)[0]
	return strings.TrimSpace(strings.SplitN(first, ";", 2)[0])
}

type orderView struct {
	ID          string            `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      model.OrderStatus `json:"status"`
	Provider    model.Provider    `json:"provider"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	ProductType model.ProductType `json:"product_type"`
	Credits     int64             `json:"credits"`
	CreatedAt   time.Time         `json:"created_at"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	ExpiredAt   time.Time         `json:"expired_at"`
}

func toOrderView(o *model.Order) orderView {
	return orderView{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Provider:    o.PaymentProvider,
		Amount:      o.Amount,
		Currency:    o.Currency,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		ProductType: o.ProductType,
		Credits:     o.Credits,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		ExpiredAt:   o.ExpiredAt,
	}
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "id")
	ctx = logging.WithOrderID(ctx, orderID)
	r = r.WithContext(ctx)

	user := web.SessionUserFrom(ctx)
	o, err := s.deps.Orders.Get(ctx, user.ID, orderID)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toOrderView(o))
}

type orderListResponse struct {
	Orders []orderView `json:"orders"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := api.QueryInt(r, "limit", 20, 1, 100)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	offset, err := api.QueryInt(r, "offset", 0, 0, 1_000_000)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}

	orders, err := s.deps.Orders.ListByUser(ctx, web.SessionUserFrom(ctx).ID, limit, offset)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	resp := orderListResponse{Orders: make([]orderView, 0, len(orders)), Limit: limit, Offset: offset}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderView(o))
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// fakeCheckout stands in for the provider-hosted page of the fake gateway.
// ?outcome=success|fail|expire decides which signed webhook is delivered
// before the browser is sent to the result page.
func (s *Server) fakeCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checkoutID := r.URL.Query().Get("checkout_id")
	if checkoutID == "" {
		api.WriteError(w, r, s.log, derror.New(derror.CodeValidation, "checkout_id is required"))
		return
	}

	kind := adapter.WebhookCheckoutCompleted
	switch r.URL.Query().Get("outcome") {
	case "", "success":
	case "fail":
		kind = adapter.WebhookPaymentFailed
	case "expire":
		kind = adapter.WebhookCheckoutExpired
	default:
		api.WriteError(w, r, s.log, derror.New(derror.CodeValidation, "outcome must be success, fail or expire"))
		return
	}

	payload, sig, successURL, err := s.deps.Fake.SignedEvent(checkoutID, kind)
	if err != nil {
		api.WriteError(w, r, s.log, derror.Wrap(derror.CodeNotFound, err, "unknown checkout"))
		return
	}
	res, err := s.deps.Webhooks.Handle(ctx, model.ProviderCreem, payload, sig)
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	s.log.Info().
		Str("checkout_id", checkoutID).
		Str("outcome", string(res.Outcome)).
		Str("order_id", res.OrderID).
		Msg("fake checkout delivered")

	if kind == adapter.WebhookCheckoutExpired {
		successURL += "&status=cancel"
	}
	http.Redirect(w, r, successURL, http.StatusSeeOther)
}
