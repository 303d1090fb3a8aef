package pipeline

import (
	"context"
	"log/slog"

	"imgsync/internal/document"
	"imgsync/internal/extract"
	"imgsync/internal/logging"
)

// Reference is one remote image occurrence found by Scan.
type Reference struct {
	Document   string `json:"document"`
	Source     string `json:"source"`
	URL        string `json:"url"`
	Offset     int    `json:"offset,omitempty"`
	PublicPath string `json:"public_path"`
	Local      bool   `json:"local"`
}

// ScanReport is the result of a discovery-only pass.
type ScanReport struct {
	Documents  int         `json:"documents"`
	Skipped    int         `json:"skipped"`
	References []Reference `json:"references"`
}

// Scan enumerates and parses documents and reports every remote reference
// with the asset it would map to. Nothing is fetched or written.
func (p *Pipeline) Scan(ctx context.Context) (ScanReport, error) {
	logger := logging.WithContext(ctx, p.logger)
	paths, err := Enumerate(p.cfg.Paths.SourceDir, p.cfg.Discovery.AcceptedFileExtensions, p.cfg.Discovery.Exclude)
	if err != nil {
		return ScanReport{}, err
	}
	report := ScanReport{Documents: len(paths)}
	for _, path := range paths {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		doc, err := document.Load(path, p.codec)
		if err != nil {
			var discard Summary
			p.loadFailed(logger, path, err, &discard)
			report.Skipped += discard.Skipped
			continue
		}
		report.References = append(report.References, p.references(logger, doc)...)
	}
	return report, nil
}

func (p *Pipeline) references(logger *slog.Logger, doc *document.Document) []Reference {
	var refs []Reference
	add := func(source, url string, offset int) {
		asset, local := p.store.Lookup(url)
		refs = append(refs, Reference{
			Document:   doc.Path,
			Source:     source,
			URL:        url,
			Offset:     offset,
			PublicPath: asset.PublicPath,
			Local:      local,
		})
	}
	for _, key := range p.cfg.Discovery.MetadataKeys {
		for _, url := range extract.FromHeader(doc.Header, []string{key}).Sorted() {
			add("header:"+key, url, 0)
		}
	}
	for _, m := range extract.Matches(doc.Body) {
		add(m.Syntax, m.URL, m.Offset)
	}
	if len(refs) > 0 {
		logger.Debug("scanned document", logging.String(logging.FieldDocument, doc.Path), logging.Int("references", len(refs)))
	}
	return refs
}
