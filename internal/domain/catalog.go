package domain

// MaxRecords — верхняя граница выборок каталога и позиций. Это не пагинация.
const MaxRecords = 50000

// PriceBook — именованный набор цен. Стандартный прайс-лист в системе один.
type PriceBook struct {
	ID         string
	Name       string
	IsStandard bool
	IsActive   bool
}

// Product описывает товар.
type Product struct {
	ID          string
	Name        string
	ProductCode string
	IsActive    bool
}

// CatalogEntry — цена одного товара в конкретном прайс-листе. Только для чтения.
type CatalogEntry struct {
	ID          string
	PriceBookID string
	ProductID   string
	ProductName string
	ProductCode string
	UnitPrice   float64
	IsActive    bool
}
