package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/udhaarplus/backend/internal/config"
	"github.com/udhaarplus/backend/internal/middleware"
	"github.com/udhaarplus/backend/internal/models"
)

// CatalogService holds shop and product records. Read-mostly; the one
// write path is a shopkeeper adding a product to their own shop.
type CatalogService struct {
	db        *sql.DB
	redis     *redis.Client
	qrCfg     *config.QRConfig
	validator *ValidationHelper
}

func NewCatalogService(db *sql.DB, redisClient *redis.Client) *CatalogService {
	return &CatalogService{
		db:        db,
		redis:     redisClient,
		qrCfg:     config.LoadQRConfig(),
		validator: NewValidationHelper(),
	}
}

// ListShops returns every shop with its owner's display name.
func (s *CatalogService) ListShops(ctx context.Context) ([]models.Shop, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.shop_name, s.owner_id, u.name
		FROM shops s
		JOIN users u ON u.id = s.owner_id
		ORDER BY s.shop_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shops := []models.Shop{}
	for rows.Next() {
		var shop models.Shop
		if err := rows.Scan(&shop.ID, &shop.ShopName, &shop.OwnerID, &shop.OwnerName); err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

// ListProducts returns a shop's products in name order. Reads go
// straight to the table, so a shopkeeper sees their own AddProduct
// immediately.
func (s *CatalogService) ListProducts(ctx context.Context, shopID int64) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, name, price, category
		FROM products
		WHERE shop_id = $1
		ORDER BY name`,
		shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Category); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AddProduct creates a product in the caller's shop.
func (s *CatalogService) AddProduct(ctx context.Context, actor middleware.Actor, shopID int64, name string, price decimal.Decimal, category string) (*models.Product, error) {
	if name == "" {
		return nil, validationErrorf("product name must not be empty")
	}
	if price.Sign() < 0 {
		return nil, validationErrorf("product price must not be negative, got %s", price)
	}
	if !actor.IsShopkeeperOf(shopID) {
		return nil, authorizationErrorf("shop %d is not owned by the caller", shopID)
	}
	if category == "" {
		category = "General"
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shops WHERE id = $1)`, shopID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Kind: "shop", ID: strconv.FormatInt(shopID, 10)}
	}

	p := &models.Product{
		ShopID:    shopID,
		Name:      name,
		Price:     price,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (shop_id, name, price, category, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.ShopID, p.Name, p.Price, p.Category, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[CATALOG] Product %d (%s) added to shop %d", p.ID, p.Name, p.ShopID)
	return p, nil
}

// ShopQR renders a QR code PNG pointing at the shop's storefront, for
// shopkeepers to print and hand out. The PNG is cached in Redis when
// available.
func (s *CatalogService) ShopQR(ctx context.Context, shopID int64) ([]byte, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shops WHERE id = $1)`, shopID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Kind: "shop", ID: strconv.FormatInt(shopID, 10)}
	}

	cacheKey := fmt.Sprintf("shopqr:%d", shopID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/%d", s.qrCfg.StorefrontURL, shopID)
	png, err := qrcode.Encode(url, qrcode.Medium, s.qrCfg.ImageSize)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, png, s.qrCfg.CacheTTL).Err(); err != nil {
			log.Printf("[CATALOG] Failed to cache QR for shop %d: %v", shopID, err)
		}
	}
	return png, nil
}

// HTTP handlers

// HandleListShops lists all shops
// @Summary List shops
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Shop
// @Router /shops [get]
func (s *CatalogService) HandleListShops(w http.ResponseWriter, r *http.Request) {
	shops, err := s.ListShops(r.Context())
	if err != nil {
		log.Printf("[CATALOG] Failed to list shops: %v", err)
		SendErrorResponse(w, "Failed to list shops", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shops)
}

// HandleListProducts lists a shop's products
// @Summary List products
// @Tags catalog
// @Produce json
// @Param shopID path int true "Shop ID"
// @Success 200 {array} models.Product
// @Router /shops/{shopID}/products [get]
func (s *CatalogService) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(chi.URLParam(r, "shopID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid shop id", http.StatusBadRequest, nil)
		return
	}

	products, err := s.ListProducts(r.Context(), shopID)
	if err != nil {
		log.Printf("[CATALOG] Failed to list products for shop %d: %v", shopID, err)
		SendErrorResponse(w, "Failed to list products", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

// AddProductRequest is the body of POST /products.
type AddProductRequest struct {
	ShopID   int64           `json:"shop_id" validate:"required,gt=0"`
	Name     string          `json:"name" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category" validate:"max=50"`
}

// HandleAddProduct adds a product to the caller's shop
// @Summary Add product
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param product body AddProductRequest true "Product data"
// @Success 201 {object} models.Product
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /products [post]
func (s *CatalogService) HandleAddProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req AddProductRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	product, err := s.AddProduct(r.Context(), actor, req.ShopID, req.Name, req.Price, req.Category)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(product)
}

// HandleShopQR serves the shop's storefront QR code
// @Summary Shop QR code
// @Tags catalog
// @Produce png
// @Param shopID path int true "Shop ID"
// @Success 200 {file} png
// @Failure 404 {object} ErrorResponse
// @Router /shops/{shopID}/qr [get]
func (s *CatalogService) HandleShopQR(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(chi.URLParam(r, "shopID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid shop id", http.StatusBadRequest, nil)
		return
	}

	png, err := s.ShopQR(r.Context(), shopID)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(png)
}
