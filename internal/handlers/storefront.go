package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/services"
)

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := catalog.FilterFromQuery(r.URL.Query())
	if err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.storefront.SearchProducts(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.storefront.ProductBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, product)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.storefront.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categories)
}

func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	summary, err := h.storefront.ListReviews(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (h *Handlers) SubmitReview(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	var input services.ReviewInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	review, err := h.storefront.SubmitReview(r.Context(), principal.UserID, mux.Vars(r)["slug"], input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, review)
}

func (h *Handlers) PublicSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.storefront.PublicSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, values)
}

func (h *Handlers) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	productID, ok := uuidVar(w, r, "productId")
	if !ok {
		return
	}

	added, err := h.storefront.ToggleWishlist(r.Context(), principal.UserID, productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"success": true, "added": added})
}

func (h *Handlers) ListWishlist(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	items, err := h.storefront.ListWishlist(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

// uuidVar parses a route variable, writing a 400 when it is not a UUID.
func uuidVar(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeFailure(w, r, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
