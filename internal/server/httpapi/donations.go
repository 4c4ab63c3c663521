package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/session"
	"github.com/go-chi/chi/v5"
)

// photoField is the multipart field carrying the photo files.
const photoField = "photos"

// multipartMemory is kept in memory while parsing; larger parts spill to
// temporary files.
const multipartMemory = 8 << 20

func (a *API) submitDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := a.deps.Sessions.RequireAuthenticated(ctx, session.FromContext(ctx))
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}
		a.log.Error(ctx, "session lookup failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	if a.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, badFields := parseDonationForm(r.MultipartForm)
	if len(badFields) > 0 {
		writeErrorWith(w, r, http.StatusBadRequest, "Missing required fields", map[string]any{"fields": badFields})
		return
	}

	headers := r.MultipartForm.File[photoField]
	attachments := make([]models.Attachment, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			a.log.Error(ctx, "could not open uploaded part", "name", fh.Filename, "error", err)
			writeError(w, r, http.StatusInternalServerError, "Server error")
			return
		}
		defer f.Close()
		attachments = append(attachments, models.Attachment{
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Content:      f,
		})
	}

	donation, err := a.deps.Donations.Submit(ctx, account.ID, form, attachments)
	if err != nil {
		var verr *common.ValidationError
		switch {
		case errors.As(err, &verr):
			writeErrorWith(w, r, http.StatusBadRequest, "Missing required fields", map[string]any{"fields": verr.Fields})
		case errors.Is(err, common.ErrUnsupportedMedia):
			writeError(w, r, http.StatusBadRequest, "Only image files are allowed")
		case errors.Is(err, common.ErrPayloadTooLarge):
			writeError(w, r, http.StatusRequestEntityTooLarge, "Payload too large")
		default:
			writeError(w, r, http.StatusInternalServerError, "Server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"donationId": donation.ID,
	})
}

// parseDonationForm reads the scalar fields. Coordinates that are present but
// not numbers are returned as bad fields; range checks belong to the service.
func parseDonationForm(mf *multipart.Form) (models.DonationForm, []string) {
	get := func(key string) string {
		if v := mf.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	form := models.DonationForm{
		Quantity:    get("quantity"),
		Category:    get("category"),
		Condition:   get("condition"),
		Description: get("description"),
		Address:     get("address"),
		Contact:     get("contact"),
	}

	var bad []string
	for _, c := range []struct {
		key string
		dst **float64
	}{
		{"locationLat", &form.LocationLat},
		{"locationLon", &form.LocationLon},
	} {
		raw := get(c.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			bad = append(bad, c.key)
			continue
		}
		*c.dst = &v
	}
	return form, bad
}

func (a *API) listDonations(w http.ResponseWriter, r *http.Request) {
	var ownerID *int64
	if raw := r.URL.Query().Get("ownerId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid ownerId")
			return
		}
		ownerID = &id
	}

	donations, err := a.deps.Donations.List(r.Context(), ownerID)
	if err != nil {
		a.log.Error(r.Context(), "list donations failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"donations": donations,
	})
}

func (a *API) getDonation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "Donation not found")
		return
	}

	donation, err := a.deps.Donations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Donation not found")
			return
		}
		a.log.Error(r.Context(), "get donation failed", "donation_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"donation": donation,
	})
}
