package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anupamdas/zevar-backend/api/responses"
	"github.com/anupamdas/zevar-backend/internal/products"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/logger"
)

// ProductList returns active catalog products, optionally narrowed to a
// category via the ?category query parameter.
func ProductList(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := products.ListParams{ActiveOnly: true}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			categoryID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid category id"))
				return
			}
			params.CategoryID = &categoryID
		}

		rows, err := repo.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": rows})
	}
}

// ProductDetail returns a single product with its category.
func ProductDetail(repo products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := repo.FindByID(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": product})
	}
}
