package catalog

import "time"

// Artist is the person behind one or more artworks. Not a login
// account; the gallery staff curates these rows.
type Artist struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Slug      string `gorm:"uniqueIndex;not null"`
	Bio       string
	Country   string
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Artist) TableName() string {
	return "artists"
}

type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Slug      string `gorm:"uniqueIndex;not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
}

func (Category) TableName() string {
	return "categories"
}

type Tag struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Tag) TableName() string {
	return "tags"
}

// Artwork is a published piece. Pricing lives on the size variants;
// Views is a denormalized counter bumped on each detail read.
type Artwork struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Description string
	Technique   string
	Year        int
	ArtistID    uint `gorm:"index;not null"`
	CategoryID  uint `gorm:"index;not null"`
	Featured    bool  `gorm:"not null;default:false"`
	Active      bool  `gorm:"not null;default:true"`
	Views       int64 `gorm:"not null;default:0"`

	Artist   Artist         `gorm:"foreignKey:ArtistID"`
	Category Category       `gorm:"foreignKey:CategoryID"`
	Tags     []Tag          `gorm:"many2many:artwork_tags"`
	Images   []ArtworkImage `gorm:"foreignKey:ArtworkID"`
	Sizes    []ArtworkSize  `gorm:"foreignKey:ArtworkID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Artwork) TableName() string {
	return "artworks"
}

// ArtworkSize is one purchasable variant. Prices are stored in cents.
type ArtworkSize struct {
	ID         uint   `gorm:"primaryKey"`
	ArtworkID  uint   `gorm:"index;not null"`
	Label      string `gorm:"not null"`
	WidthCM    int
	HeightCM   int
	PriceCents int64 `gorm:"not null"`
	InStock    bool  `gorm:"not null;default:true"`
}

func (ArtworkSize) TableName() string {
	return "artwork_sizes"
}

type ArtworkImage struct {
	ID        uint   `gorm:"primaryKey"`
	ArtworkID uint   `gorm:"index;not null"`
	Key       string `gorm:"not null"`
	URL       string `gorm:"not null"`
	Position  int    `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (ArtworkImage) TableName() string {
	return "artwork_images"
}
