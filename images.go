package spacetraveling

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/spacetraveling/prismic"
)

const (
	maxImageWidth  = 800
	jpegQuality    = 80
	maxBannerBytes = 10 << 20 // 10MB
)

// processImage decodes an image from src, resizes it to maxImageWidth if it
// is wider, and encodes it as JPEG.
func processImage(src io.Reader) (width, height int, data []byte, err error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return 0, 0, nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return w, h, buf.Bytes(), nil
}

// fetchBanner downloads and downscales the image at src.
func (a *App) fetchBanner(ctx context.Context, uid, src string) (Banner, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Banner{}, err
	}
	client := a.httpClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Banner{}, fmt.Errorf("fetch banner: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Banner{}, fmt.Errorf("fetch banner: %s returned %d", src, resp.StatusCode)
	}
	w, h, data, err := processImage(io.LimitReader(resp.Body, maxBannerBytes))
	if err != nil {
		return Banner{}, err
	}
	return Banner{UID: uid, SourceURL: src, Width: w, Height: h, Data: data, CreatedAt: time.Now()}, nil
}

// handleBanner serves a post's banner from the store, fetching it from the
// CMS image host when missing or when the post now points elsewhere.
func (a *App) handleBanner(c echo.Context) error {
	uid := c.Param("slug")
	ctx := c.Request().Context()
	d, err := a.Post(ctx, uid)
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	src := d.BannerURL
	if u, err := url.Parse(src); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return echo.ErrNotFound
	}

	b, err := a.Store.GetBanner(uid)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err != nil || b.SourceURL != src {
		v, err, _ := a.banners.Do(uid, func() (interface{}, error) {
			fresh, err := a.fetchBanner(ctx, uid, src)
			if err != nil {
				return nil, err
			}
			if err := a.Store.SaveBanner(fresh); err != nil {
				c.Logger().Warnf("save banner %s: %v", uid, err)
			}
			return fresh, nil
		})
		if err != nil {
			c.Logger().Errorf("banner %s: %v", uid, err)
			return c.Redirect(http.StatusTemporaryRedirect, src)
		}
		b = v.(Banner)
	}
	return c.Blob(http.StatusOK, "image/jpeg", b.Data)
}
