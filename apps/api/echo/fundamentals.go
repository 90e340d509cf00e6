package echoapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/fundamentals"
)

const maxUploadSize = 10 << 20

type fundamentalsApi struct {
	svc *fundamentals.Service
}

func registerFundamentalsAPI(_, authed *echo.Group, deps ServerDeps) {
	h := fundamentalsApi{svc: deps.Fundamentals}
	fg := authed.Group("/fundamentals")
	fg.POST("/upload-image", h.uploadImage)
	fg.GET("/get-zar-rate", h.zarRate)
}

// uploadImage publishes the multipart `file` (or `image`), resized to the optional `width`.
func (h *fundamentalsApi) uploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		if fh, err = ctx.FormFile("image"); err != nil {
			return core.NewFieldError("file", "no file was submitted")
		}
	}
	if fh.Size > maxUploadSize {
		return core.NewFieldError("file", "the file is too large")
	}

	var width int
	if raw := strings.TrimSpace(ctx.FormValue("width")); raw != "" {
		if width, err = strconv.Atoi(raw); err != nil || width < 0 {
			return core.NewFieldError("width", "a valid integer is required")
		}
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}

	res, err := h.svc.UploadImage(ctx.Request().Context(), fundamentals.Upload{Filename: fh.Filename, Data: data, Width: width})
	if err != nil {
		return err
	}
	return success(ctx, http.StatusCreated, res)
}

func (h *fundamentalsApi) zarRate(ctx echo.Context) error {
	rate, err := h.svc.ZarRate(ctx.Request().Context())
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, echo.Map{"rate": rate})
}
