package enums

import "fmt"

// ProductCategory represents the canonical product categories supported by the catalog.
type ProductCategory string

const (
	ProductCategoryElectronics ProductCategory = "electronics"
	ProductCategoryApparel     ProductCategory = "apparel"
	ProductCategoryHome        ProductCategory = "home"
	ProductCategoryBeauty      ProductCategory = "beauty"
	ProductCategorySports      ProductCategory = "sports"
	ProductCategoryToys        ProductCategory = "toys"
	ProductCategoryGrocery     ProductCategory = "grocery"
	ProductCategoryBooks       ProductCategory = "books"
	ProductCategoryOther       ProductCategory = "other"
)

var validProductCategories = []ProductCategory{
	ProductCategoryElectronics,
	ProductCategoryApparel,
	ProductCategoryHome,
	ProductCategoryBeauty,
	ProductCategorySports,
	ProductCategoryToys,
	ProductCategoryGrocery,
	ProductCategoryBooks,
	ProductCategoryOther,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
