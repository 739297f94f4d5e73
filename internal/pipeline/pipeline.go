// Package pipeline runs documents through extraction, correction, title
// detection, segmentation and chunking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"corpus/internal/chunker"
	"corpus/internal/config"
	"corpus/internal/extract"
	"corpus/internal/logger"
	"corpus/internal/normalize"
	"corpus/internal/structure"
	"corpus/pkg/models"
)

// DocumentExtractor turns a path into a Document.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (*models.Document, error)
}

// Options are the tunables of a run.
type Options struct {
	MinWords        int
	MaxWords        int
	SectionMinWords int
	DefaultChapter  string
	Workers         int
}

// DefaultOptions matches the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MinWords:        chunker.DefaultMinWords,
		MaxWords:        chunker.DefaultMaxWords,
		SectionMinWords: 50,
		DefaultChapter:  structure.DefaultChapter,
		Workers:         1,
	}
}

// OptionsFromConfig copies the pipeline settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinWords:        cfg.MinWords,
		MaxWords:        cfg.MaxWords,
		SectionMinWords: cfg.SectionMinWords,
		DefaultChapter:  cfg.DefaultChapter,
		Workers:         cfg.Workers,
	}
}

// Report summarizes a run.
type Report struct {
	Documents       int
	Processed       int
	Skipped         int
	DroppedSections int
	// DiscardedRuns counts the sentence runs the chunker dropped for falling
	// outside the word bounds.
	DiscardedRuns int
}

// Pipeline processes batches of documents.
type Pipeline struct {
	extractor  DocumentExtractor
	normalizer normalize.Table
	opts       Options
	log        zerolog.Logger
}

// New creates a Pipeline. A nil normalizer uses normalize.DefaultTable.
func New(extractor DocumentExtractor, normalizer normalize.Table, opts Options) *Pipeline {
	if normalizer == nil {
		normalizer = normalize.DefaultTable
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		extractor:  extractor,
		normalizer: normalizer,
		opts:       opts,
		log:        logger.WithComponent("pipeline"),
	}
}

// outcome is the result of one document.
type outcome struct {
	sections  []models.Section
	chunks    []models.Chunk
	dropped   int
	discarded int
	err       error
}

// ProcessFlat produces the sections of every document in flat mode, keeping
// only sections of at least SectionMinWords words. Sections of a document
// follow those of the documents before it in paths.
func (p *Pipeline) ProcessFlat(ctx context.Context, paths []string) ([]models.Section, Report, error) {
	results := p.run(ctx, paths, p.flat)

	var sections []models.Section
	report := Report{Documents: len(paths)}
	for _, r := range results {
		if !p.tally(&report, r) {
			continue
		}
		sections = append(sections, r.sections...)
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	return sections, report, nil
}

// ProcessChapters produces the paragraph chunks of every document in chapter
// mode, in document order.
func (p *Pipeline) ProcessChapters(ctx context.Context, paths []string) ([]models.Chunk, Report, error) {
	results := p.run(ctx, paths, p.chapters)

	var chunks []models.Chunk
	report := Report{Documents: len(paths)}
	for _, r := range results {
		if !p.tally(&report, r) {
			continue
		}
		chunks = append(chunks, r.chunks...)
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	return chunks, report, nil
}

func (p *Pipeline) tally(report *Report, r outcome) bool {
	if r.err != nil {
		report.Skipped++
		return false
	}
	report.Processed++
	report.DroppedSections += r.dropped
	report.DiscardedRuns += r.discarded
	return true
}

// run processes paths with a pool of workers. results[i] belongs to paths[i]
// whatever the completion order.
func (p *Pipeline) run(ctx context.Context, paths []string, process func(context.Context, *models.Document) outcome) []outcome {
	type job struct {
		index int
		path  string
	}

	jobs := make(chan job, len(paths))
	results := make([]outcome, len(paths))

	workers := p.opts.Workers
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results[j.index] = outcome{err: err}
					continue
				}
				p.log.Debug().
					Int("worker", workerID).
					Int("index", j.index+1).
					Str("file", j.path).
					Msg("Worker processing document")
				results[j.index] = p.document(ctx, j.path, process)
			}
		}(w)
	}

	for i, path := range paths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Pipeline) document(ctx context.Context, path string, process func(context.Context, *models.Document) outcome) outcome {
	log := logger.WithDocument(p.log, filepath.Base(path))

	doc, err := p.extractor.Extract(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrDocumentNotFound):
			log.Warn().Str("file", path).Msg("Document not found, skipping")
		case errors.Is(err, extract.ErrNoContent):
			log.Warn().Str("file", path).Msg("Document has no extractable content, skipping")
		default:
			log.Error().Err(err).Str("file", path).Msg("Extraction failed, skipping")
		}
		return outcome{err: fmt.Errorf("%s: %w", path, err)}
	}

	r := process(ctx, doc)

	log.Info().
		Int("sections", len(r.sections)).
		Int("chunks", len(r.chunks)).
		Int("dropped_sections", r.dropped).
		Int("discarded_runs", r.discarded).
		Msg("Document processed")

	return r
}

// correct applies the substitution table and logs how many fixes it made.
func (p *Pipeline) correct(doc *models.Document) string {
	clean, stats := p.normalizer.ApplyWithStats(doc.RawText)
	total := 0
	for _, n := range stats {
		total += n
	}
	if total > 0 {
		p.log.Debug().
			Str("document", doc.Name).
			Int("replacements", total).
			Msg("Mis-encoded characters corrected")
	}
	return clean
}

func (p *Pipeline) flat(ctx context.Context, doc *models.Document) outcome {
	clean := p.correct(doc)
	titles := structure.NewNumberedDetector().Detect(clean)
	sections := structure.SegmentFlat(clean, titles)

	kept, dropped := structure.KeepMinWords(sections, p.opts.SectionMinWords)
	for _, s := range dropped {
		p.log.Debug().
			Str("document", doc.Name).
			Str("title", s.Heading()).
			Int("words", s.WordCount()).
			Msg("Section below minimum length dropped")
	}

	return outcome{sections: kept, dropped: len(dropped)}
}

func (p *Pipeline) chapters(ctx context.Context, doc *models.Document) outcome {
	clean := p.correct(doc)
	titles := structure.NewGenericDetector().Detect(clean)
	sections := structure.SegmentChapters(clean, titles, p.opts.DefaultChapter)

	c := chunker.New(p.opts.MinWords, p.opts.MaxWords)
	var r outcome
	for _, s := range sections {
		chunks, discarded := c.ForSection(doc.Name, s)
		r.chunks = append(r.chunks, chunks...)
		r.discarded += len(discarded)
		if len(discarded) > 0 {
			p.log.Debug().
				Str("document", doc.Name).
				Str("chapter", s.Chapter).
				Str("title", s.Heading()).
				Int("discarded", len(discarded)).
				Msg("Sentence runs outside word bounds discarded")
		}
	}
	return r
}
