package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/texbridge/internal/server/storage"
)

// AllowedImageTypes is the set of accepted attachment media types.
var AllowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Rejection reasons reported to the Recorder.
const (
	RejectValidation = "validation"
	RejectMedia      = "unsupported_media"
	RejectTooLarge   = "too_large"
	RejectStorage    = "storage"
)

// SubmissionLimits bounds one submission.
type SubmissionLimits struct {
	MaxPhotos int
	MaxBytes  int64
}

// DonationService runs the submission pipeline and serves donation reads.
type DonationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Store
	limits      SubmissionLimits
	log         logging.Logger
	rec         Recorder
}

func NewDonationService(db *sql.DB, m repomanager.RepositoryManager, store storage.Store,
	limits SubmissionLimits, log logging.Logger, rec Recorder) *DonationService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &DonationService{
		db:          db,
		repomanager: m,
		store:       store,
		limits:      limits,
		log:         log.With("module", "donations"),
		rec:         rec,
	}
}

// Submit validates and stores a donation with its photos. Either the row and
// every photo are committed, or nothing is: photos written before a failure
// are deleted again, and the row insert is rolled back.
//
// Every missing field is reported at once, in a fixed order. A single
// disallowed media type rejects the whole batch. The size limit is checked
// before anything is written and enforced again while streaming.
func (s *DonationService) Submit(ctx context.Context, ownerID int64, form models.DonationForm, attachments []models.Attachment) (*models.Donation, error) {
	if err := s.validate(form, attachments); err != nil {
		s.rec.SubmissionRejected(RejectValidation)
		return nil, err
	}

	var total int64
	for _, a := range attachments {
		if !AllowedMediaType(a.ContentType) {
			s.rec.SubmissionRejected(RejectMedia)
			return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedMedia, a.ContentType)
		}
		total += a.Size
	}
	if s.limits.MaxBytes > 0 && total > s.limits.MaxBytes {
		s.rec.SubmissionRejected(RejectTooLarge)
		return nil, common.ErrPayloadTooLarge
	}

	names := make([]string, len(attachments))
	for i, a := range attachments {
		names[i] = storage.NewName(a.OriginalName)
	}

	donation := &models.Donation{
		OwnerID:     ownerID,
		Quantity:    form.Quantity,
		Category:    form.Category,
		Condition:   form.Condition,
		Description: form.Description,
		Address:     form.Address,
		Contact:     form.Contact,
		LocationLat: form.LocationLat,
		LocationLon: form.LocationLon,
		PhotoPaths:  names,
	}

	var stored []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Donations(tx).Insert(ctx, donation); err != nil {
			return err
		}

		budget := s.limits.MaxBytes
		for i, a := range attachments {
			var r io.Reader = a.Content
			if s.limits.MaxBytes > 0 {
				r = io.LimitReader(a.Content, budget+1)
			}
			n, err := s.store.Put(ctx, names[i], a.ContentType, r)
			if err != nil {
				return err
			}
			stored = append(stored, names[i])
			if s.limits.MaxBytes > 0 {
				budget -= n
				if budget < 0 {
					return common.ErrPayloadTooLarge
				}
			}
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, stored)
		if errors.Is(err, common.ErrPayloadTooLarge) {
			s.rec.SubmissionRejected(RejectTooLarge)
			return nil, err
		}
		s.rec.SubmissionRejected(RejectStorage)
		s.log.Error(ctx, "donation not stored", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	s.rec.DonationSubmitted(len(names))
	s.log.Info(ctx, "donation stored", "donation_id", donation.ID, "owner_id", ownerID, "photos", len(names))
	return donation, nil
}

// discard removes blobs of a failed submission. Anything left behind is
// collected later by the OrphanSweeper.
func (s *DonationService) discard(ctx context.Context, names []string) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range names {
		if err := s.store.Delete(ctx, n); err != nil {
			s.log.Warn(ctx, "could not remove attachment of failed submission", "name", n, "error", err)
		}
	}
}

func (s *DonationService) validate(form models.DonationForm, attachments []models.Attachment) error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"quantity", form.Quantity},
		{"category", form.Category},
		{"condition", form.Condition},
		{"description", form.Description},
		{"address", form.Address},
		{"contact", form.Contact},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if form.LocationLat != nil && (*form.LocationLat < -90 || *form.LocationLat > 90) {
		missing = append(missing, "locationLat")
	}
	if form.LocationLon != nil && (*form.LocationLon < -180 || *form.LocationLon > 180) {
		missing = append(missing, "locationLon")
	}
	if len(attachments) == 0 || (s.limits.MaxPhotos > 0 && len(attachments) > s.limits.MaxPhotos) {
		missing = append(missing, "photos")
	}
	return common.NewValidationError(missing...)
}

// AllowedMediaType reports whether contentType (parameters ignored) is an
// accepted image type.
func AllowedMediaType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := AllowedImageTypes[strings.ToLower(mt)]
	return ok
}

// Get returns one donation or common.ErrNotFound.
func (s *DonationService) Get(ctx context.Context, id int64) (*models.Donation, error) {
	d, err := s.repomanager.Donations(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return d, nil
}

// List returns donations newest first, restricted to ownerID when given.
func (s *DonationService) List(ctx context.Context, ownerID *int64) ([]*models.Donation, error) {
	ds, err := s.repomanager.Donations(s.db).List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return ds, nil
}
