package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/verdantshop/verdant/internal/cart"
	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/services"
)

const cartCookieName = "verdant_cart"

type cartResponse struct {
	Items      []cart.Item `json:"items"`
	Count      int         `json:"count"`
	TotalCents int64       `json:"total_cents"`
	Total      string      `json:"total"`
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type setCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	return cartResponse{
		Items:      c.Items,
		Count:      c.Count(),
		TotalCents: c.TotalCents(),
		Total:      catalog.FormatCents(c.TotalCents()),
	}
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.loadCart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == uuid.Nil {
		writeFailure(w, r, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	product, err := h.storefront.ProductByID(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, cartID, err := h.loadCart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item := cart.Item{
		ProductID:  product.ID,
		Slug:       product.Slug,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Quantity:   req.Quantity,
	}
	if len(product.Images) > 0 {
		item.Image = product.Images[0]
	}
	c.Add(item)

	if err := h.carts.Save(ctx, cartID, c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidVar(w, r, "productId")
	if !ok {
		return
	}

	var req setCartQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, cartID, err := h.loadCart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !c.SetQuantity(productID, req.Quantity) {
		writeFailure(w, r, http.StatusNotFound, "Item is not in the cart")
		return
	}

	if err := h.carts.Save(r.Context(), cartID, c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidVar(w, r, "productId")
	if !ok {
		return
	}

	c, cartID, err := h.loadCart(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !c.Remove(productID) {
		writeFailure(w, r, http.StatusNotFound, "Item is not in the cart")
		return
	}

	if err := h.carts.Save(r.Context(), cartID, c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(c))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if cartID := cartIDFromRequest(r); cartID != "" {
		if err := h.carts.Delete(r.Context(), cartID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, newCartResponse(cart.New()))
}

// loadCart returns the caller's cart, issuing a new cart cookie when the
// request has none.
func (h *Handlers) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, string, error) {
	cartID := cartIDFromRequest(r)
	if cartID == "" {
		cartID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cartCookieName,
			Value:    cartID,
			Path:     "/",
			MaxAge:   int(cart.TTL.Seconds()),
			HttpOnly: true,
			Secure:   h.isSecure(),
			SameSite: http.SameSiteLaxMode,
		})
		return cart.New(), cartID, nil
	}

	c, err := h.carts.Load(r.Context(), cartID)
	if err != nil {
		return nil, "", err
	}
	return c, cartID, nil
}

func cartIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(cartCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(strings.TrimSpace(cookie.Value)); err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// checkoutLines converts saved cart items into order lines.
func checkoutLines(c *cart.Cart) []services.CheckoutLine {
	lines := make([]services.CheckoutLine, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, services.CheckoutLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: centsToDollars(item.PriceCents),
		})
	}
	return lines
}
