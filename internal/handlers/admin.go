package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/verdantshop/verdant/internal/catalog"
	"github.com/verdantshop/verdant/internal/export"
	"github.com/verdantshop/verdant/internal/services"
	"github.com/verdantshop/verdant/internal/uploads"
)

const (
	maxProductImages      = 10
	maxProductFormBytes   = maxProductImages*uploads.MaxImageSize + maxJSONBodyBytes
	maxCatalogImportBytes = 5 << 20
)

func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.admin.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dashboard)
}

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	orders, err := h.admin.ListOrders(r.Context(), services.ListOrdersInput{
		Status: query.Get("status"),
		Limit:  queryInt(query.Get("limit")),
		Offset: queryInt(query.Get("offset")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, orders)
}

func (h *Handlers) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	order, err := h.admin.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) AdminShipOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	var input services.ShipmentInput
	if err := decodeOptionalJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := h.admin.ShipOrder(r.Context(), orderID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) AdminMarkPaid(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	order, err := h.admin.MarkPaid(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) AdminUpdateShipment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	var input services.ShipmentInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := h.admin.UpdateShipment(r.Context(), orderID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	products, err := h.admin.ListProducts(r.Context(), queryInt(query.Get("limit")), queryInt(query.Get("offset")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (h *Handlers) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	input, cleanup, err := h.productInputFromRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	product, err := h.admin.CreateProduct(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, product)
}

func (h *Handlers) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	input, cleanup, err := h.productInputFromRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	product, err := h.admin.UpdateProduct(r.Context(), productID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, product)
}

func (h *Handlers) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	if err := h.admin.DeleteProduct(r.Context(), productID); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, "Product deleted")
}

func (h *Handlers) AdminUpdateStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidVar(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Stock *int `json:"stock"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Stock == nil {
		writeFailure(w, r, http.StatusBadRequest, "stock is required")
		return
	}

	if err := h.admin.UpdateStock(r.Context(), productID, *req.Stock); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, "Stock updated")
}

// AdminImportCatalog accepts a YAML document either as the "file" field of a
// multipart form or as the raw request body.
func (h *Handlers) AdminImportCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCatalogImportBytes)

	var content []byte
	if isMultipart(r) {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeFailure(w, r, http.StatusBadRequest, "Upload a catalog file in the \"file\" field")
			return
		}
		defer file.Close()
		content, err = io.ReadAll(file)
		if err != nil {
			writeFailure(w, r, http.StatusBadRequest, "Catalog file is too large")
			return
		}
	} else {
		var err error
		content, err = io.ReadAll(r.Body)
		if err != nil {
			writeFailure(w, r, http.StatusBadRequest, "Catalog file is too large")
			return
		}
	}

	result, err := h.admin.ImportCatalog(r.Context(), content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Imported %d new and %d updated products", result.Created, result.Updated),
		"created": result.Created,
		"updated": result.Updated,
	})
}

func (h *Handlers) AdminGetSettings(w http.ResponseWriter, r *http.Request) {
	site, err := h.admin.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, site)
}

func (h *Handlers) AdminUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(w, r, err)
		return
	}

	site, err := h.admin.UpdateSettings(r.Context(), values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, site)
}

func (h *Handlers) AdminListCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	customers, err := h.admin.ListCustomers(r.Context(), queryInt(query.Get("limit")), queryInt(query.Get("offset")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, customers)
}

func (h *Handlers) AdminExportOrders(w http.ResponseWriter, r *http.Request) {
	h.writeCSV(w, r, "orders", h.admin.ExportOrders)
}

func (h *Handlers) AdminExportCustomers(w http.ResponseWriter, r *http.Request) {
	h.writeCSV(w, r, "customers", h.admin.ExportCustomers)
}

// writeCSV renders the report into memory first so a failure can still be
// answered with a JSON error instead of a truncated download.
func (h *Handlers) writeCSV(w http.ResponseWriter, r *http.Request, report string, render func(ctx context.Context, w io.Writer) error) {
	var buf bytes.Buffer
	if err := render(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(report, time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.loggerFromContext(r.Context()).Warn("failed to write csv export", "error", err, "report", report)
	}
}

// productInputFromRequest reads a product from JSON or from a multipart form
// with image files in "files". The returned cleanup closes opened uploads.
func (h *Handlers) productInputFromRequest(w http.ResponseWriter, r *http.Request) (services.ProductInput, func(), error) {
	noop := func() {}
	if !isMultipart(r) {
		var entry catalog.ProductEntry
		if err := decodeJSON(w, r, &entry); err != nil {
			return services.ProductInput{}, noop, err
		}
		return services.ProductInput{Entry: entry}, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return services.ProductInput{}, noop, services.UserError{Message: "Invalid product form"}
	}

	form := r.MultipartForm
	entry := catalog.ProductEntry{
		Slug:           formValue(form, "slug"),
		Name:           formValue(form, "name"),
		ScientificName: formValue(form, "scientific_name"),
		Category:       formValue(form, "category"),
		Description:    formValue(form, "description"),
		Price:          formValue(form, "price"),
		Images:         nonEmpty(form.Value["images"]),
	}
	if raw := formValue(form, "stock"); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			return services.ProductInput{}, noop, services.UserError{Message: "Stock must be a whole number"}
		}
		entry.Stock = stock
	}

	headers := form.File["files"]
	if len(headers)+len(entry.Images) > maxProductImages {
		return services.ProductInput{}, noop, services.UserError{Message: fmt.Sprintf("A product can have at most %d images", maxProductImages)}
	}

	files := make([]multipart.File, 0, len(headers))
	cleanup := func() {
		for _, f := range files {
			_ = f.Close()
		}
		_ = form.RemoveAll()
	}
	readers := make([]io.Reader, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			cleanup()
			return services.ProductInput{}, noop, fmt.Errorf("failed to open uploaded image: %w", err)
		}
		files = append(files, file)
		readers = append(readers, file)
	}

	return services.ProductInput{Entry: entry, NewImages: readers}, cleanup, nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(w, r, dst)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func queryInt(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}
