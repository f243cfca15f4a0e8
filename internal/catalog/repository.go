package catalog

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("catalog entry not found")

// Filter narrows artwork listings. Zero values mean "no constraint".
type Filter struct {
	CategorySlug string
	ArtistSlug   string
	Featured     bool
	Limit        int
	Offset       int
}

type Repository interface {
	ListArtworks(filter Filter) ([]Artwork, error)
	GetArtworkBySlug(slug string) (*Artwork, error)
	GetArtworkByID(id uint) (*Artwork, error)
	CreateArtwork(artwork *Artwork) error
	UpdateArtwork(artwork *Artwork) error
	DeactivateArtwork(id uint) error
	IncrementViews(id uint) error

	ListArtists() ([]Artist, error)
	GetArtistBySlug(slug string) (*Artist, error)
	CreateArtist(artist *Artist) error

	ListCategories() ([]Category, error)
	CreateCategory(category *Category) error

	AddImage(image *ArtworkImage) error
	GetImage(id uint) (*ArtworkImage, error)
	RemoveImage(id uint) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListArtworks(filter Filter) ([]Artwork, error) {
	q := r.db.
		Preload("Artist").
		Preload("Category").
		Preload("Images").
		Preload("Sizes").
		Where("artworks.active = true")

	if filter.CategorySlug != "" {
		q = q.Joins("JOIN categories ON categories.id = artworks.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if filter.ArtistSlug != "" {
		q = q.Joins("JOIN artists ON artists.id = artworks.artist_id").
			Where("artists.slug = ?", filter.ArtistSlug)
	}
	if filter.Featured {
		q = q.Where("artworks.featured = true")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 24
	}
	q = q.Limit(limit).Offset(filter.Offset).Order("artworks.created_at DESC")

	var artworks []Artwork
	if err := q.Find(&artworks).Error; err != nil {
		return nil, err
	}
	return artworks, nil
}

func (r *repository) GetArtworkBySlug(slug string) (*Artwork, error) {
	var artwork Artwork
	err := r.db.
		Preload("Artist").
		Preload("Category").
		Preload("Tags").
		Preload("Images").
		Preload("Sizes").
		Where("slug = ? AND active = true", slug).
		First(&artwork).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artwork, nil
}

func (r *repository) GetArtworkByID(id uint) (*Artwork, error) {
	var artwork Artwork
	if err := r.db.Preload("Images").First(&artwork, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artwork, nil
}

func (r *repository) CreateArtwork(artwork *Artwork) error {
	return r.db.Create(artwork).Error
}

func (r *repository) UpdateArtwork(artwork *Artwork) error {
	return r.db.Save(artwork).Error
}

// DeactivateArtwork hides the piece without deleting history.
func (r *repository) DeactivateArtwork(id uint) error {
	res := r.db.Model(&Artwork{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the counter atomically in SQL; no read-modify-
// write race under concurrent detail requests.
func (r *repository) IncrementViews(id uint) error {
	return r.db.Model(&Artwork{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (r *repository) ListArtists() ([]Artist, error) {
	var artists []Artist
	if err := r.db.Where("active = true").Order("name").Find(&artists).Error; err != nil {
		return nil, err
	}
	return artists, nil
}

func (r *repository) GetArtistBySlug(slug string) (*Artist, error) {
	var artist Artist
	if err := r.db.Where("slug = ? AND active = true", slug).First(&artist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artist, nil
}

func (r *repository) CreateArtist(artist *Artist) error {
	return r.db.Create(artist).Error
}

func (r *repository) ListCategories() ([]Category, error) {
	var categories []Category
	if err := r.db.Where("active = true").Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) CreateCategory(category *Category) error {
	return r.db.Create(category).Error
}

func (r *repository) AddImage(image *ArtworkImage) error {
	return r.db.Create(image).Error
}

func (r *repository) GetImage(id uint) (*ArtworkImage, error) {
	var image ArtworkImage
	if err := r.db.First(&image, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &image, nil
}

func (r *repository) RemoveImage(id uint) error {
	return r.db.Delete(&ArtworkImage{}, id).Error
}
