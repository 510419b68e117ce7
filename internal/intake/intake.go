// Package intake turns document sources (local paths or URLs) into
// model.Documents ready for the pipelines, downloading, sniffing media
// types, and recovering text layers along the way.
package intake

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/ocr"
)

// Media types produced by Detect.
const (
	MediaPDF  = "application/pdf"
	MediaCSV  = "text/csv"
	MediaXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"
	MediaWebP = "image/webp"
	MediaGIF  = "image/gif"
	MediaText = "text/plain"
)

var extMedia = map[string]string{
	".pdf":  MediaPDF,
	".csv":  MediaCSV,
	".xlsx": MediaXLSX,
	".jpg":  MediaJPEG,
	".jpeg": MediaJPEG,
	".png":  MediaPNG,
	".webp": MediaWebP,
	".gif":  MediaGIF,
	".txt":  MediaText,
}

// Source describes where one document comes from. Exactly one of Path and
// URL is set.
type Source struct {
	Type model.DocumentType `yaml:"type" json:"type"`
	Path string             `yaml:"path,omitempty" json:"path,omitempty"`
	URL  string             `yaml:"url,omitempty" json:"url,omitempty"`
	// Name overrides the file name derived from Path or URL.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Loader reads sources into documents.
type Loader struct {
	http     *Downloader
	ocr      ocr.Extractor
	maxBytes int64
	parallel int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOCR sets the extractor used to recover PDF text layers.
func WithOCR(e ocr.Extractor) LoaderOption {
	return func(l *Loader) { l.ocr = e }
}

// WithDownloader replaces the HTTP downloader.
func WithDownloader(d *Downloader) LoaderOption {
	return func(l *Loader) { l.http = d }
}

// NewLoader creates a Loader from fetch config.
func NewLoader(cfg config.FetchConfig, opts ...LoaderOption) *Loader {
	l := &Loader{
		http: NewDownloader(HTTPOptions{
			UserAgent: cfg.UserAgent,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxBytes:  cfg.MaxBytes,
			PerMinute: cfg.MaxPerMinute,
		}),
		maxBytes: cfg.MaxBytes,
		parallel: 4,
	}
	if l.maxBytes <= 0 {
		l.maxBytes = 25 << 20
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads one source. A failed text-layer recovery is logged and leaves
// Text empty; the pipelines report the unreadable document.
func (l *Loader) Load(ctx context.Context, src Source) (model.Document, error) {
	if !src.Type.Valid() {
		return model.Document{}, eris.Errorf("intake: unknown document type %q", src.Type)
	}

	var (
		data   []byte
		header string
		name   = src.Name
		err    error
	)
	switch {
	case src.URL != "" && src.Path != "":
		return model.Document{}, eris.New("intake: source sets both path and url")
	case src.URL != "":
		data, header, err = l.http.Download(ctx, src.URL)
		if err != nil {
			return model.Document{}, eris.Wrapf(err, "intake: fetch %s document", src.Type)
		}
		if name == "" {
			name = urlName(src.URL)
		}
	case src.Path != "":
		data, err = l.readFile(src.Path)
		if err != nil {
			return model.Document{}, err
		}
		if name == "" {
			name = filepath.Base(src.Path)
		}
	default:
		return model.Document{}, eris.Errorf("intake: %s source has neither path nor url", src.Type)
	}
	if len(data) == 0 {
		return model.Document{}, eris.Errorf("intake: %s is empty", name)
	}

	doc := model.Document{
		ID:        uuid.NewString(),
		Type:      src.Type,
		Name:      name,
		MediaType: Detect(name, header, data),
		Data:      data,
	}
	doc.Text = l.textLayer(ctx, doc)
	return doc, nil
}

// LoadAll reads sources concurrently, preserving order. A source that
// cannot be read yields a placeholder document with LoadError set, so one
// bad source never stops the others. The returned count is the number of
// failed sources.
func (l *Loader) LoadAll(ctx context.Context, srcs []Source) ([]model.Document, int) {
	docs := make([]model.Document, len(srcs))
	failed := make([]bool, len(srcs))
	var g errgroup.Group
	g.SetLimit(l.parallel)
	for i, src := range srcs {
		g.Go(func() error {
			doc, err := l.Load(ctx, src)
			if err != nil {
				zap.L().Warn("intake: source unreadable",
					zap.String("type", string(src.Type)),
					zap.String("source", sourceLabel(src)),
					zap.Error(err),
				)
				doc = placeholder(src, err)
				failed[i] = true
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return docs, n
}

// placeholder stands in for a source that failed to load.
func placeholder(src Source, err error) model.Document {
	name := src.Name
	if name == "" && sourceLabel(src) != "" {
		name = path.Base(sourceLabel(src))
	}
	if name == "" {
		name = string(src.Type)
	}
	return model.Document{
		ID:        uuid.NewString(),
		Type:      src.Type,
		Name:      name,
		LoadError: err.Error(),
	}
}

func sourceLabel(src Source) string {
	if src.URL != "" {
		return src.URL
	}
	return src.Path
}

func (l *Loader) readFile(p string) ([]byte, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: stat %s", p)
	}
	if info.IsDir() {
		return nil, eris.Errorf("intake: %s is a directory", p)
	}
	if info.Size() > l.maxBytes {
		return nil, eris.Errorf("intake: %s exceeds %d bytes", p, l.maxBytes)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: read %s", p)
	}
	return data, nil
}

func (l *Loader) textLayer(ctx context.Context, doc model.Document) string {
	log := zap.L().With(zap.String("document", doc.Name), zap.String("type", string(doc.Type)))

	var (
		text string
		err  error
	)
	switch doc.MediaType {
	case MediaCSV:
		text, err = RenderCSV(doc.Data)
	case MediaXLSX:
		text, err = RenderXLSX(doc.Data)
	case MediaPDF:
		if l.ocr == nil {
			return ""
		}
		text, err = l.ocr.ExtractText(ctx, doc.Data)
	default:
		return ""
	}
	if errors.Is(err, ocr.ErrNoTextLayer) {
		log.Info("intake: pdf has no text layer, extraction will rely on the model")
		return ""
	}
	if err != nil {
		log.Warn("intake: text layer unavailable", zap.Error(err))
		return ""
	}
	return text
}

// Detect picks a media type from the file extension, then the Content-Type
// header, then content sniffing.
func Detect(name, header string, data []byte) string {
	if mt, ok := extMedia[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	if mt := baseType(header); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return baseType(http.DetectContentType(data))
}

func baseType(ct string) string {
	mt, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func urlName(raw string) string {
	u, _, _ := strings.Cut(raw, "?")
	base := path.Base(u)
	if base == "." || base == "/" || strings.Contains(base, ":") {
		return "document"
	}
	return base
}
