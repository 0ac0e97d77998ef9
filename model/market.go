package model

import "gorm.io/gorm"

type Category struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

type Product struct {
	gorm.Model
	Title       string   `gorm:"not null" json:"title"`
	Description string   `json:"description"`
	Price       float64  `gorm:"not null" json:"price"`
	ImageURL    string   `json:"imageUrl"`
	IsSold      bool     `gorm:"not null;default:false" json:"isSold"`
	CategoryID  uint     `gorm:"not null;index" json:"categoryId"`
	Category    Category `gorm:"foreignKey:CategoryID" json:"category"`
	SellerID    uint     `gorm:"not null;index" json:"sellerId"`
	Seller      User     `gorm:"foreignKey:SellerID" json:"-"`
}

type Order struct {
	gorm.Model
	BuyerID   uint    `gorm:"not null;index" json:"buyerId"`
	Buyer     User    `gorm:"foreignKey:BuyerID" json:"-"`
	ProductID uint    `gorm:"not null;index" json:"productId"`
	Product   Product `gorm:"foreignKey:ProductID" json:"-"`
	Status    string  `gorm:"not null;default:pending" json:"status"`
}
