package model

import "time"

// Product: товар каталога одного арендатора (tenant). Владелец хранится в store, не в JSON.
type Product struct {
	ID            string        `json:"id"`
	Code          string        `json:"codigo"`            // штрихкод или сгенерированный код
	AliasCode     string        `json:"codigoAlternativo"` // старое поле кода (legacy)
	Name          string        `json:"nombre" validate:"required,max=200"`
	Description   string        `json:"descripcion,omitempty"`
	CostPrice     float64       `json:"precioCosto" validate:"gte=0"`
	SellPrice     float64       `json:"precioVenta" validate:"gte=0"`
	OriginalPrice *float64      `json:"precioOriginal,omitempty"`
	VATRate       float64       `json:"iva" validate:"gte=0,lte=100"`
	Stock         int           `json:"stock" validate:"gte=0"`
	Category      string        `json:"categoria"`
	Supplier      string        `json:"proveedor,omitempty"`
	Image         string        `json:"imagen,omitempty"`
	Tags          []string      `json:"etiquetas,omitempty"`
	Active        bool          `json:"activo"`
	Deleted       bool          `json:"eliminado,omitempty"`
	LastPurchase  *LastPurchase `json:"ultimaCompra,omitempty"`
	CreatedAt     time.Time     `json:"creadoEn"`
	UpdatedAt     time.Time     `json:"actualizadoEn"`
}

type LastPurchase struct {
	Date     time.Time `json:"fecha"`
	Quantity int       `json:"cantidad"`
	Cost     float64   `json:"costo"`
	Supplier string    `json:"proveedor"`
}

// LineItem: строка накладной поставщика (после OCR/импорта и правки оператором).
type LineItem struct {
	Code           string  `json:"codigo"`
	Name           string  `json:"nombre"`
	Quantity       int     `json:"cantidad"`
	UnitCost       float64 `json:"precioUnitario"`
	Subtotal       float64 `json:"subtotal"`
	ConfirmedMatch *string `json:"productoExistente,omitempty"` // ручной выбор оператора
	Validated      bool    `json:"validado"`
	ProductID      string  `json:"productoId,omitempty"` // заполняется после сверки
}

// Invoice: проведённая (или черновая) накладная поставщика.
type Invoice struct {
	ID        string     `json:"id"`
	Number    string     `json:"numero"`
	Supplier  string     `json:"proveedor"`
	Date      time.Time  `json:"fecha"`
	Total     float64    `json:"total"`
	Items     []LineItem `json:"items"`
	Processed bool       `json:"procesada"`
	Deleted   bool       `json:"eliminada,omitempty"`
	CreatedAt time.Time  `json:"creadaEn"`
	UpdatedAt time.Time  `json:"actualizadaEn"`
}

type SaleItem struct {
	ProductID string  `json:"productoId" validate:"required_without=Code"`
	Code      string  `json:"codigo,omitempty"`
	Name      string  `json:"nombre,omitempty"`
	Quantity  int     `json:"cantidad" validate:"gt=0"`
	Price     float64 `json:"precio" validate:"gte=0"`
}

type Sale struct {
	ID            string     `json:"id"`
	Items         []SaleItem `json:"items" validate:"required,min=1,dive"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"metodoPago,omitempty"`
	Date          time.Time  `json:"fecha"`
}

// FeatureSet: признаки, извлечённые из наименования. Не хранится.
type FeatureSet struct {
	Brand       string   `json:"brand,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	Flavor      string   `json:"flavor,omitempty"`
	PackageType string   `json:"packageType,omitempty"`
	Size        float64  `json:"size,omitempty"` // 0 = нет размера
	Unit        string   `json:"unit,omitempty"`
	Words       []string `json:"words,omitempty"`
	Tokens      []string `json:"tokens,omitempty"`
}

// HasSize: размер учитывается только вместе с единицей.
func (f FeatureSet) HasSize() bool { return f.Size > 0 && f.Unit != "" }

// Breakdown: вклад каждого критерия в итоговый балл.
type Breakdown struct {
	Brand   float64 `json:"brand"`
	Flavor  float64 `json:"flavor"`
	Size    float64 `json:"size"`
	Package float64 `json:"package"`
	Tokens  float64 `json:"tokens"`
	Gate    string  `json:"gate,omitempty"` // brand | flavor
	Total   int     `json:"total"`
}

const (
	MethodCode      = "code"
	MethodName      = "name"
	MethodFuzzy     = "fuzzy"
	MethodConfirmed = "confirmed"
)

type Match struct {
	Product   Product    `json:"product"`
	Method    string     `json:"method"`
	Score     int        `json:"score"`
	Breakdown *Breakdown `json:"breakdown,omitempty"`
}

type Candidate struct {
	Product    Product   `json:"product"`
	Score      int       `json:"score"`
	Similarity float64   `json:"similarity"`
	Breakdown  Breakdown `json:"breakdown"`
}

// Policy: параметры создания новых товаров при сверке.
type Policy struct {
	Threshold       int     // порог fuzzy (0..100)
	Markup          float64 // цена продажи = себестоимость * Markup
	DefaultCategory string
	DefaultVATRate  float64
	GenerateCodes   bool // генерировать код, если в строке его нет
}

func DefaultPolicy() Policy {
	return Policy{
		Threshold:       85,
		Markup:          1.30,
		DefaultCategory: "General",
		DefaultVATRate:  21,
		GenerateCodes:   true,
	}
}

const (
	StatusApplied = "applied"
	StatusFailed  = "failed"

	ActionUpdated = "updated"
	ActionCreated = "created"
)

// LineOutcome: итог по одной строке: pending -> matched|unmatched -> applied|failed.
type LineOutcome struct {
	Index     int    `json:"index"`
	Name      string `json:"nombre"`
	Status    string `json:"status"`
	Action    string `json:"action,omitempty"`
	Method    string `json:"method,omitempty"`
	Score     int    `json:"score,omitempty"`
	ProductID string `json:"productoId,omitempty"`
	NewStock  int    `json:"stock,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Result struct {
	Lines   []LineOutcome `json:"lines"`
	Updated int           `json:"updated"`
	Created int           `json:"created"`
	Failed  []LineOutcome `json:"failed"`
}

// Summary: ответ на проведение накладной.
type Summary struct {
	Invoice Invoice `json:"invoice"`
	Result  Result  `json:"result"`
	Message string  `json:"message"`
	Warning string  `json:"warning,omitempty"`
}

// PreviewLine: автоматический матч и кандидаты для ручного выбора.
type PreviewLine struct {
	Index       int         `json:"index"`
	Line        LineItem    `json:"line"`
	Features    FeatureSet  `json:"features"`
	Match       *Match      `json:"match,omitempty"`
	Suggestions []Candidate `json:"suggestions"`
}

// Mapping: колонки файла накладной (варианты через "|").
type Mapping struct {
	CodeKey   string
	NameKey   string
	QtyKey    string
	CostKey   string
	TotalKey  string // если нет цены за единицу: cost = total / qty
	HeaderRow int    // 1-based
}

func DefaultMapping() Mapping {
	return Mapping{
		CodeKey:   "codigo|código|code|ean|sku|referencia",
		NameKey:   "nombre|descripcion|descripción|articulo|artículo|producto|name",
		QtyKey:    "cantidad|cant|unidades|qty|quantity",
		CostKey:   "precio unitario|precio|coste|costo|unit cost|price",
		TotalKey:  "importe|subtotal|total",
		HeaderRow: 1,
	}
}
