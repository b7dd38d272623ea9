package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/services"
)

const checkoutCustomer = `"name":"Budi","email":"budi@example.com","phone":"+62 812 0000","address":"Jl. Melati 1, Bandung","country":"Indonesia"`

func TestCreateOrder_FromSavedCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	monstera := env.addProduct("Monstera Thai Constellation", 12000, 4)
	alocasia := env.addProduct("Alocasia Frydek", 3500, 9)

	var cookie *http.Cookie
	for _, id := range []uuid.UUID{monstera.ID, alocasia.ID} {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"productId":"`+id.String()+`","quantity":1}`))
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		env.h.AddCartItem(rec, req)
		if cookie == nil {
			cookie = cartCookie(t, rec)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{`+checkoutCustomer+`}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.h.CreateOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var result services.CreateOrderResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if !result.Success || result.OrderID == uuid.Nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Token != "" {
		t.Fatalf("expected no payment token with payments disabled, got %q", result.Token)
	}

	if len(env.orders.created) != 1 {
		t.Fatalf("expected one order, got %d", len(env.orders.created))
	}
	order := env.orders.created[0]
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}
	if order.TotalUSDCents != 15500 {
		t.Fatalf("unexpected total: got=%d want=15500", order.TotalUSDCents)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	getReq.AddCookie(cookie)
	getRec := httptest.NewRecorder()
	env.h.GetCart(getRec, getReq)
	if resp := decodeCart(t, getRec); resp.Count != 0 {
		t.Fatalf("expected cart to be cleared after checkout, got %+v", resp)
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		stockErr   error
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no items and no cart",
			body:       `{` + checkoutCustomer + `}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "insufficient stock",
			body:       `{` + checkoutCustomer + `,"items":[{"productId":"` + uuid.NewString() + `","quantity":3,"unitPrice":"10.00"}],"total":"30.00"}`,
			stockErr:   &db.StockError{ProductID: uuid.New(), Requested: 3},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.orders.stockErr = tt.stockErr

			rec := httptest.NewRecorder()
			env.h.CreateOrder(rec, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestTrackOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	orderID := env.orders.add(db.Order{
		Status:         db.StatusShipped,
		PaymentStatus:  db.PaymentPaid,
		Courier:        "DHL",
		TrackingNumber: "JD014600003828",
	})

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "known order", id: orderID.String(), wantStatus: http.StatusOK},
		{name: "unknown order", id: uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "malformed id", id: "not-a-uuid", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.id+"/track", nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.id})
			rec := httptest.NewRecorder()
			env.h.TrackOrder(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var info services.TrackingInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
				t.Fatalf("failed to decode tracking info: %v", err)
			}
			if info.Courier != "DHL" || info.TrackingURL == "" {
				t.Fatalf("unexpected tracking info: %+v", info)
			}
		})
	}
}
