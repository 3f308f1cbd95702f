package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/okanyucel2/coloring-book-generator-sub000/store"
	"github.com/sirupsen/logrus"
)

// SVGGenerator renders a placeholder line-art page as an SVG document and
// writes it into the artifact store. It stands in for an external image
// service during local development and tests.
type SVGGenerator struct {
	store  *store.ArtifactManager
	logger *logrus.Logger
	width  int
	height int
}

// NewSVGGenerator creates a placeholder page generator backed by the store
func NewSVGGenerator(artifacts *store.ArtifactManager, logger *logrus.Logger) *SVGGenerator {
	return &SVGGenerator{
		store:  artifacts,
		logger: logger,
		width:  2048,
		height: 2048,
	}
}

// Generate renders the page and stores it under a key derived from the item
// name. The same name always produces the same key, so retries overwrite
// rather than accumulate.
func (g *SVGGenerator) Generate(ctx context.Context, name, prompt string) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, Permanent(fmt.Errorf("empty prompt for page %q", name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		g.width, g.height, g.width, g.height)
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>`)
	fmt.Fprintf(&b, `<rect x="64" y="64" width="%d" height="%d" fill="none" stroke="black" stroke-width="8"/>`,
		g.width-128, g.height-128)
	fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="72" text-anchor="middle" fill="black">%s</text>`,
		g.width/2, g.height/2, escapeText(prompt))
	b.WriteString(`</svg>`)

	data := []byte(b.String())
	ref := fmt.Sprintf("pages/%s.svg", sanitizeName(name))
	if err := g.store.Put(ref, data); err != nil {
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"page":       name,
		"output_ref": ref,
		"size_bytes": len(data),
	}).Debug("Rendered placeholder page")

	return &Output{Ref: ref, Size: int64(len(data))}, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
