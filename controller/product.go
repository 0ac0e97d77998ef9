package controller

import (
	"strings"

	"unimarket/apperror"
	"unimarket/middleware"
	"unimarket/model"
	"unimarket/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductCreateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	CategoryID  uint    `json:"categoryId"`
	ImageURL    string  `json:"imageUrl"`
}

type ProductUpdateInput struct {
	IsSold *bool `json:"isSold"`
}

type CategoryCreateInput struct {
	Name string `json:"name"`
}

type ProductListQuery struct {
	CategoryID uint   `query:"categoryId"`
	SellerID   uint   `query:"sellerId"`
	Search     string `query:"search"`
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
	Sort       string `query:"sort"`
}

// ProductResponse exposes the seller's public summary alongside the listing.
type ProductResponse struct {
	model.Product
	Seller model.UserSummary `json:"seller"`
}

func productResponse(p model.Product) ProductResponse {
	seller := p.Seller.Summary()
	seller.Email = ""
	return ProductResponse{Product: p, Seller: seller}
}

type Product struct {
	products   *store.ProductStore
	categories *store.CategoryStore
	log        *zap.SugaredLogger
}

func NewProduct(products *store.ProductStore, categories *store.CategoryStore, log *zap.SugaredLogger) *Product {
	return &Product{products: products, categories: categories, log: log}
}

func (h *Product) List(c *fiber.Ctx) error {
	query := new(ProductListQuery)
	if err := c.QueryParser(query); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid query")
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	page, err := h.products.List(c.UserContext(), store.ProductFilter{
		CategoryID: query.CategoryID,
		SellerID:   query.SellerID,
		Search:     strings.TrimSpace(query.Search),
		Page:       query.Page,
		Limit:      query.Limit,
		Sort:       query.Sort,
	})
	if err != nil {
		return failWith(c, h.log, err)
	}

	products := make([]ProductResponse, 0, len(page.Products))
	for _, p := range page.Products {
		products = append(products, productResponse(p))
	}
	return c.JSON(fiber.Map{
		"products": products,
		"metadata": fiber.Map{
			"total":      page.Total,
			"page":       page.Page,
			"totalPages": page.TotalPages,
		},
	})
}

func (h *Product) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return failWith(c, h.log, err)
	}

	product, err := h.products.Get(c.UserContext(), id)
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(productResponse(*product))
}

func (h *Product) Create(c *fiber.Ctx) error {
	input := new(ProductCreateInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}
	if strings.TrimSpace(input.Title) == "" || input.CategoryID == 0 {
		return fail(c, fiber.StatusBadRequest, "Title and category are required")
	}
	if input.Price < 0 {
		return fail(c, fiber.StatusBadRequest, "Price cannot be negative")
	}

	product := &model.Product{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Price:       input.Price,
		ImageURL:    input.ImageURL,
		CategoryID:  input.CategoryID,
		SellerID:    middleware.UserID(c),
	}
	if err := h.products.Create(c.UserContext(), product); err != nil {
		return failWith(c, h.log, err)
	}

	created, err := h.products.Get(c.UserContext(), product.ID)
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(productResponse(*created))
}

// owned loads the product in the path and checks the session user sells it.
func (h *Product) owned(c *fiber.Ctx) (*model.Product, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	product, err := h.products.Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != middleware.UserID(c) {
		return nil, apperror.Forbidden("you can only change your own products")
	}
	return product, nil
}

func (h *Product) Update(c *fiber.Ctx) error {
	input := new(ProductUpdateInput)
	if err := c.BodyParser(input); err != nil || input.IsSold == nil {
		return fail(c, fiber.StatusBadRequest, "isSold is required")
	}

	product, err := h.owned(c)
	if err != nil {
		return failWith(c, h.log, err)
	}
	if err := h.products.SetSold(c.UserContext(), product.ID, *input.IsSold); err != nil {
		return failWith(c, h.log, err)
	}
	product.IsSold = *input.IsSold
	return c.JSON(productResponse(*product))
}

func (h *Product) Delete(c *fiber.Ctx) error {
	product, err := h.owned(c)
	if err != nil {
		return failWith(c, h.log, err)
	}
	if err := h.products.Delete(c.UserContext(), product.ID); err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Product) Categories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.JSON(categories)
}

func (h *Product) CategoryCreate(c *fiber.Ctx) error {
	input := new(CategoryCreateInput)
	if err := c.BodyParser(input); err != nil {
		return fail(c, fiber.StatusBadRequest, "Review your input")
	}

	category, err := h.categories.Create(c.UserContext(), strings.TrimSpace(input.Name))
	if err != nil {
		return failWith(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}
