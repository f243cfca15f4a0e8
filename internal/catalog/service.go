package catalog

import (
	"context"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/storage"
)

type Service struct {
	log        *zap.Logger
	repository Repository
	images     storage.ImageStore
}

func NewService(log *zap.Logger, repo Repository, images storage.ImageStore) *Service {
	return &Service{log: log, repository: repo, images: images}
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe identifier from a title.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
	)
	s = replacer.Replace(s)
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func (s *Service) ListArtworks(ctx context.Context, filter Filter) ([]Artwork, error) {
	return s.repository.ListArtworks(filter)
}

// GetArtwork fetches a piece by slug and counts the view. The counter
// write is best effort; a failed bump never fails the read.
func (s *Service) GetArtwork(ctx context.Context, slug string) (*Artwork, error) {
	artwork, err := s.repository.GetArtworkBySlug(slug)
	if err != nil {
		return nil, err
	}
	if err := s.repository.IncrementViews(artwork.ID); err != nil {
		s.log.Warn("view counter bump failed", zap.Uint("artwork_id", artwork.ID), zap.Error(err))
	}
	return artwork, nil
}

func (s *Service) CreateArtwork(ctx context.Context, artwork *Artwork) error {
	if artwork.Slug == "" {
		artwork.Slug = Slugify(artwork.Title)
	}
	if artwork.Slug == "" {
		return fmt.Errorf("artwork needs a title")
	}
	if err := s.repository.CreateArtwork(artwork); err != nil {
		return err
	}
	s.log.Info("artwork created", zap.Uint("artwork_id", artwork.ID), zap.String("slug", artwork.Slug))
	return nil
}

func (s *Service) DeactivateArtwork(ctx context.Context, id uint) error {
	return s.repository.DeactivateArtwork(id)
}

func (s *Service) ListArtists(ctx context.Context) ([]Artist, error) {
	return s.repository.ListArtists()
}

func (s *Service) CreateArtist(ctx context.Context, artist *Artist) error {
	if artist.Slug == "" {
		artist.Slug = Slugify(artist.Name)
	}
	return s.repository.CreateArtist(artist)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repository.ListCategories()
}

func (s *Service) CreateCategory(ctx context.Context, category *Category) error {
	if category.Slug == "" {
		category.Slug = Slugify(category.Name)
	}
	return s.repository.CreateCategory(category)
}

// AttachImage uploads the file to the image store and records it under
// the artwork. Keys embed the slug so bucket listings stay readable.
func (s *Service) AttachImage(ctx context.Context, artworkID uint, file multipart.File, header *multipart.FileHeader) (*ArtworkImage, error) {
	artwork, err := s.repository.GetArtworkByID(artworkID)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	key := fmt.Sprintf("artworks/%s/%s", artwork.Slug, uuid.NewString())
	url, err := s.images.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, err
	}

	image := &ArtworkImage{
		ArtworkID: artwork.ID,
		Key:       key,
		URL:       url,
		Position:  len(artwork.Images),
	}
	if err := s.repository.AddImage(image); err != nil {
		// Orphaned object cleanup, best effort.
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			s.log.Warn("failed to delete orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	return image, nil
}

func (s *Service) RemoveImage(ctx context.Context, imageID uint) error {
	image, err := s.repository.GetImage(imageID)
	if err != nil {
		return err
	}
	if err := s.images.Delete(ctx, image.Key); err != nil {
		return err
	}
	return s.repository.RemoveImage(image.ID)
}
