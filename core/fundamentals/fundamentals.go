// Package fundamentals holds the cross-cutting helpers of the API: image uploads and the daily
// USD to ZAR exchange rate.
package fundamentals

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
)

const KeyPrefix = "sys/"

var ErrNotAnImage = errors.New("the file is not a supported image")

type (
	// ZarRate is the USD to ZAR rate of one day.
	ZarRate struct {
		core.Model
		Date core.Date `db:"date" json:"date"`
		Rate float64   `db:"rate" json:"rate"`
	}

	// RateSource fetches the current USD to ZAR rate.
	RateSource interface {
		USDToZAR(ctx context.Context) (float64, error)
	}

	// ObjectStore publishes an object and returns its public URL.
	ObjectStore interface {
		Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	}

	Upload struct {
		Filename string
		Data     []byte
		Width    int // resize to this width, keeping the aspect ratio; 0 keeps the size
	}

	UploadResult struct {
		SecureURL string `json:"secure_url"`
	}

	Service struct {
		rates   core.Store[ZarRate]
		source  RateSource
		objects ObjectStore
		now     func() time.Time
	}
)

func NewService(rates core.Store[ZarRate], source RateSource, objects ObjectStore) *Service {
	return &Service{rates: rates, source: source, objects: objects, now: time.Now}
}

// ZarRate returns the rate of the day, fetching and caching it on the first call of the day.
func (svc *Service) ZarRate(ctx context.Context) (float64, error) {
	today := core.DateFrom(svc.now())
	cached, err := svc.rates.First(ctx, query.Global(), sq.Eq{"date": today})
	if err == nil {
		return cached.Rate, nil
	}
	if !core.IsNotFound(err) {
		return 0, errors.Wrap(err, "reading cached rate")
	}

	rate, err := svc.source.USDToZAR(ctx)
	if err != nil {
		return 0, err
	}
	rate = math.Round(rate*100) / 100
	if err := svc.rates.Create(ctx, query.Global(), &ZarRate{Date: today, Rate: rate}); err != nil {
		// a concurrent request cached the day first
		if cached, ferr := svc.rates.First(ctx, query.Global(), sq.Eq{"date": today}); ferr == nil {
			return cached.Rate, nil
		}
		return 0, errors.Wrap(err, "caching rate")
	}
	return rate, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// ObjectKey names an upload: sys/sms-<name>-<random id><ext>.
func ObjectKey(filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(base), "-"), "-")
	if base == "" {
		base = "file"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:21]
	return KeyPrefix + "sms-" + base + "-" + id + ext
}

// UploadImage publishes an image, resized to the requested width first.
func (svc *Service) UploadImage(ctx context.Context, up Upload) (UploadResult, error) {
	mtype := mimetype.Detect(up.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return UploadResult{}, core.NewValidationError(ErrNotAnImage, core.FieldError{Field: "image", Error: ErrNotAnImage.Error()})
	}
	data, ext, contentType := up.Data, mtype.Extension(), mtype.String()
	if up.Width > 0 {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return UploadResult{}, core.NewValidationError(ErrNotAnImage, core.FieldError{Field: "image", Error: ErrNotAnImage.Error()})
		}
		format, err := imaging.FormatFromExtension(ext)
		if err != nil {
			format, ext, contentType = imaging.JPEG, ".jpg", "image/jpeg"
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, imaging.Resize(img, up.Width, 0, imaging.Lanczos), format, imaging.JPEGQuality(90)); err != nil {
			return UploadResult{}, errors.Wrap(err, "encoding image")
		}
		data = buf.Bytes()
	}

	url, err := svc.objects.Put(ctx, ObjectKey(up.Filename, ext), contentType, data)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "uploading image")
	}
	return UploadResult{SecureURL: url}, nil
}
