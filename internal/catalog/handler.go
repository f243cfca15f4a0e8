package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nubstudio/galeria-backend/internal/auth"
)

const maxImageUpload = 10 << 20 // 10 MiB

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes wires the catalog endpoints. Reads are public;
// mutations require a session.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, mw *auth.Middleware) {
	mux.HandleFunc("GET /api/obras", h.ListArtworks)
	mux.HandleFunc("GET /api/obras/{slug}", h.GetArtwork)
	mux.HandleFunc("GET /api/artistas", h.ListArtists)
	mux.HandleFunc("GET /api/categorias", h.ListCategories)

	mux.Handle("POST /api/obras", mw.RequireAuth(h.CreateArtwork))
	mux.Handle("DELETE /api/obras/{id}", mw.RequireAuth(h.DeactivateArtwork))
	mux.Handle("POST /api/obras/{id}/imagenes", mw.RequireAuth(h.UploadImage))
	mux.Handle("DELETE /api/imagenes/{id}", mw.RequireAuth(h.RemoveImage))
	mux.Handle("POST /api/artistas", mw.RequireAuth(h.CreateArtist))
	mux.Handle("POST /api/categorias", mw.RequireAuth(h.CreateCategory))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func (h *Handler) ListArtworks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := Filter{
		CategorySlug: q.Get("categoria"),
		ArtistSlug:   q.Get("artista"),
		Featured:     q.Get("destacadas") == "true",
		Limit:        limit,
		Offset:       offset,
	}

	artworks, err := h.service.ListArtworks(r.Context(), filter)
	if err != nil {
		h.fail(w, "list artworks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"obras": artworks})
}

func (h *Handler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	artwork, err := h.service.GetArtwork(r.Context(), r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Artwork not found")
			return
		}
		h.fail(w, "get artwork", err)
		return
	}
	writeJSON(w, http.StatusOK, artwork)
}

type createArtworkRequest struct {
	Titulo      string `json:"titulo"`
	Descripcion string `json:"descripcion"`
	Tecnica     string `json:"tecnica"`
	Anio        int    `json:"anio"`
	ArtistaID   uint   `json:"artista_id"`
	CategoriaID uint   `json:"categoria_id"`
	Destacada   bool   `json:"destacada"`
}

func (h *Handler) CreateArtwork(w http.ResponseWriter, r *http.Request) {
	var req createArtworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Titulo == "" || req.ArtistaID == 0 || req.CategoriaID == 0 {
		writeMessage(w, http.StatusBadRequest, "Title, artist and category are required")
		return
	}

	artwork := &Artwork{
		Title:       req.Titulo,
		Description: req.Descripcion,
		Technique:   req.Tecnica,
		Year:        req.Anio,
		ArtistID:    req.ArtistaID,
		CategoryID:  req.CategoriaID,
		Featured:    req.Destacada,
		Active:      true,
	}
	if err := h.service.CreateArtwork(r.Context(), artwork); err != nil {
		h.fail(w, "create artwork", err)
		return
	}
	writeJSON(w, http.StatusCreated, artwork)
}

func (h *Handler) DeactivateArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid artwork id")
		return
	}
	if err := h.service.DeactivateArtwork(r.Context(), uint(id)); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Artwork not found")
			return
		}
		h.fail(w, "deactivate artwork", err)
		return
	}
	writeMessage(w, http.StatusOK, "Artwork removed from the gallery")
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid artwork id")
		return
	}

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Image upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("imagen")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Field 'imagen' is required")
		return
	}
	defer file.Close()

	image, err := h.service.AttachImage(r.Context(), uint(id), file, header)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Artwork not found")
			return
		}
		h.fail(w, "upload image", err)
		return
	}
	writeJSON(w, http.StatusCreated, image)
}

func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid image id")
		return
	}
	if err := h.service.RemoveImage(r.Context(), uint(id)); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Image not found")
			return
		}
		h.fail(w, "remove image", err)
		return
	}
	writeMessage(w, http.StatusOK, "Image removed")
}

func (h *Handler) ListArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := h.service.ListArtists(r.Context())
	if err != nil {
		h.fail(w, "list artists", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"artistas": artists})
}

type createArtistRequest struct {
	Nombre string `json:"nombre"`
	Bio    string `json:"bio"`
	Pais   string `json:"pais"`
}

func (h *Handler) CreateArtist(w http.ResponseWriter, r *http.Request) {
	var req createArtistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Nombre == "" {
		writeMessage(w, http.StatusBadRequest, "Name is required")
		return
	}

	artist := &Artist{Name: req.Nombre, Bio: req.Bio, Country: req.Pais, Active: true}
	if err := h.service.CreateArtist(r.Context(), artist); err != nil {
		h.fail(w, "create artist", err)
		return
	}
	writeJSON(w, http.StatusCreated, artist)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categorias": categories})
}

type createCategoryRequest struct {
	Nombre string `json:"nombre"`
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Nombre == "" {
		writeMessage(w, http.StatusBadRequest, "Name is required")
		return
	}

	category := &Category{Name: req.Nombre, Active: true}
	if err := h.service.CreateCategory(r.Context(), category); err != nil {
		h.fail(w, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.log.Error("handler failure", zap.String("op", op), zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}
