package store

import (
	"context"
	"math"

	"unimarket/apperror"
	"unimarket/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

type ProductFilter struct {
	CategoryID uint
	SellerID   uint
	Search     string
	Page       int
	Limit      int
	Sort       string
}

type ProductPage struct {
	Products   []model.Product
	Total      int64
	Page       int
	TotalPages int
}

type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

func (s *ProductStore) List(ctx context.Context, f ProductFilter) (*ProductPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 12
	}

	q := s.db.WithContext(ctx).Model(&model.Product{})
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.SellerID != 0 {
		q = q.Where("seller_id = ?", f.SellerID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("LOWER(title) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "productStore.List.Count")
	}

	order := "created_at desc"
	switch f.Sort {
	case SortPriceAsc:
		order = "price asc"
	case SortPriceDesc:
		order = "price desc"
	}

	products := []model.Product{}
	err := q.Preload("Category").
		Preload("Seller").
		Order(order).
		Order("id desc").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "productStore.List.Find")
	}

	return &ProductPage{
		Products:   products,
		Total:      total,
		Page:       f.Page,
		TotalPages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}, nil
}

func (s *ProductStore) Get(ctx context.Context, id uint) (*model.Product, error) {
	product := new(model.Product)
	err := s.db.WithContext(ctx).Preload("Category").Preload("Seller").First(product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("product not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "productStore.Get.First")
	}
	return product, nil
}

func (s *ProductStore) Create(ctx context.Context, product *model.Product) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", product.CategoryID).Count(&count).Error; err != nil {
		return errors.Wrap(err, "productStore.Create.CountCategory")
	}
	if count == 0 {
		return apperror.InvalidArg("invalid category id")
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error
	return errors.Wrap(err, "productStore.Create.Insert")
}

func (s *ProductStore) SetSold(ctx context.Context, id uint, sold bool) error {
	err := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("is_sold", sold).Error
	return errors.Wrap(err, "productStore.SetSold.Update")
}

func (s *ProductStore) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Delete(&model.Product{}, id).Error
	return errors.Wrap(err, "productStore.Delete")
}

type CategoryStore struct {
	db *gorm.DB
}

func NewCategoryStore(db *gorm.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	categories := []model.Category{}
	err := s.db.WithContext(ctx).Order("name asc").Find(&categories).Error
	if err != nil {
		return nil, errors.Wrap(err, "categoryStore.List.Find")
	}
	return categories, nil
}

func (s *CategoryStore) Create(ctx context.Context, name string) (*model.Category, error) {
	if name == "" {
		return nil, apperror.InvalidArg("category name is required")
	}
	category := &model.Category{Name: name}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(category)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "categoryStore.Create.Insert")
	}
	if res.RowsAffected == 0 {
		return nil, apperror.AlreadyExists("category already exists")
	}
	return category, nil
}
